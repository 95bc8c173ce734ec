package usecase

import (
	"context"
	"errors"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPulse/internal/domain/models"
	"CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
)

func TestIngestRawReportsPerItem(t *testing.T) {
	ing := &recordingIngestor{errs: map[string]error{"ETH": errors.New("clickhouse timeout")}}
	items := []json.RawMessage{
		json.RawMessage(`{"symbol":"BTC","percent_change_24h":-6.2}`),
		json.RawMessage(`{"symbol":"ETH","percent_change_24h":2}`),
		json.RawMessage(`{"symbol":"SOL"}`),
	}

	report := IngestRaw(context.Background(), ing, models.KindPrice, items)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, "clickhouse timeout", report.Errors["1:ETH:price"])
	assert.Contains(t, report.Errors["2::price"], "percent_change_24h")
	require.Len(t, ing.Observations(), 1)
	assert.Equal(t, "BTC", ing.Observations()[0].AssetSymbol)
}

func TestObservationsHandler(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		errs    map[string]error
		wantErr bool
		wantObs int
	}{
		{"valid envelope", `{"kind":"sentiment","payload":{"symbol":"eth","sentiment_score":0.4}}`, nil, false, 1},
		{"broken envelope is dropped", `{"kind":`, nil, false, 0},
		{"unknown kind is dropped", `{"kind":"volume","payload":{}}`, nil, false, 0},
		{"malformed payload is dropped", `{"kind":"price","payload":{"symbol":"BTC"}}`, nil, false, 0},
		{"pipeline failure is returned", `{"kind":"price","payload":{"symbol":"BTC","percent_change_24h":3}}`, map[string]error{"BTC": errors.New("append failed")}, true, 0},
		{"malformed from pipeline is dropped", `{"kind":"price","payload":{"symbol":"BTC","percent_change_24h":3}}`, map[string]error{"BTC": &models.MalformedInputError{Reason: "bad"}}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := &recordingIngestor{errs: tt.errs}
			h := NewObservationsHandler("observations", ing, metrics.Noop{}, logger.NewNop())

			err := h.Handle(context.Background(), []byte(tt.msg))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, ing.Observations(), tt.wantObs)
			assert.Equal(t, "observations", h.Topic())
		})
	}
}
