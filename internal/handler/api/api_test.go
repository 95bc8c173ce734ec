package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/service"
	"CoinPulse/internal/repository"
	"CoinPulse/internal/service/ratelimit"
	"CoinPulse/internal/usecase"
	xhttp "CoinPulse/pkg/http"
	"CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
)

type capturePush struct {
	sent []models.DeliveryMessage
}

func (c *capturePush) Name() string { return models.ChannelPush }

func (c *capturePush) Send(_ context.Context, _ string, msg models.DeliveryMessage) error {
	c.sent = append(c.sent, msg)
	return nil
}

type apiEnv struct {
	srv        *xhttp.Server
	watchlists *repository.MemoryWatchlistStore
	push       *capturePush
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	l := logger.NewNop()
	m := metrics.Noop{}
	rules := repository.NewMemoryRuleStore()
	notes := repository.NewMemoryNotificationStore()
	watchlists := repository.NewMemoryWatchlistStore()
	push := &capturePush{}

	resolver := usecase.NewResolver(rules, time.Second, m, l)
	sink := usecase.NewSink(notes, usecase.NewDirectDeliverer([]service.Channel{push}, time.Second, m), m, l)
	pipeline := usecase.NewPipeline(
		usecase.NewScorer(),
		resolver,
		usecase.NewThrottler(repository.NewMemoryWindowStore(), time.Second, m, l),
		sink,
		repository.NewMemorySignalStore(),
		watchlists,
		nil,
		m,
		l,
		usecase.PipelineConfig{},
	)

	handlers := []xhttp.Handler{
		NewSignalsHandler(pipeline, pipeline, ratelimit.New(0, 0), l),
		NewRulesHandler(usecase.NewRuleService(rules, resolver, time.Second), l),
		NewNotificationsHandler(sink, l),
		NewUsersHandler(usecase.NewWatchlistService(watchlists, time.Second), usecase.NewContactService(repository.NewMemoryContactStore(), time.Second), l),
	}
	reg := prometheus.NewRegistry()
	srv := xhttp.NewServer(l, handlers, xhttp.WithMetricsRegistry(reg, reg))
	return &apiEnv{srv: srv, watchlists: watchlists, push: push}
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func (e *apiEnv) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Echo().ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestObservationFlowsToNotification(t *testing.T) {
	e := newAPIEnv(t)

	code, _ := e.do(t, http.MethodPost, "/api/users/u1/watchlist", `{"asset":"btc"}`)
	require.Equal(t, http.StatusOK, code)

	code, env := e.do(t, http.MethodPost, "/api/observations/price", `{"symbol":"BTC","percent_change_24h":-6.2}`)
	require.Equal(t, http.StatusCreated, code)
	res := decode[models.ProcessResult](t, env.Data)
	assert.Equal(t, 62, res.Signal.Strength)
	require.Len(t, res.Outcomes, 1)
	assert.True(t, res.Outcomes[0].Admitted)
	assert.Len(t, e.push.sent, 1)

	code, env = e.do(t, http.MethodGet, "/api/users/u1/notifications", "")
	require.Equal(t, http.StatusOK, code)
	page := decode[models.NotificationPage](t, env.Data)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.Unread)
	id := page.Items[0].ID

	code, env = e.do(t, http.MethodPost, "/api/users/u1/notifications/"+id+"/read", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.StateRead, decode[models.Notification](t, env.Data).State)

	code, _ = e.do(t, http.MethodPost, "/api/users/u2/notifications/"+id+"/read", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, env = e.do(t, http.MethodGet, "/api/signals?assets=btc,eth&limit=10", "")
	require.Equal(t, http.StatusOK, code)
	list := decode[xhttp.ListDataResponse](t, env.Data)
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 10, list.Limit)
	assert.False(t, list.HasMore)
}

func TestObservationErrors(t *testing.T) {
	e := newAPIEnv(t)

	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{"unknown kind", "/api/observations/volume", `{}`, http.StatusBadRequest},
		{"missing field", "/api/observations/price", `{"symbol":"BTC"}`, http.StatusBadRequest},
		{"broken json", "/api/observations/sentiment", `{"symbol":`, http.StatusBadRequest},
		{"batch must be an array", "/api/observations/price/batch", `{"symbol":"BTC"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := e.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestMalformedObservationCode(t *testing.T) {
	e := newAPIEnv(t)

	code, env := e.do(t, http.MethodPost, "/api/observations/price", `{"symbol":"BTC"}`)
	require.Equal(t, http.StatusBadRequest, code)
	errs := decode[[]xhttp.AppError](t, env.Data)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_MALFORMED_INPUT", errs[0].Code)
	assert.Equal(t, "percent_change_24h", errs[0].Field)
}

func TestObservationBatchReport(t *testing.T) {
	e := newAPIEnv(t)

	code, env := e.do(t, http.MethodPost, "/api/observations/sentiment/batch",
		`[{"symbol":"ETH","sentiment_score":-0.7},{"symbol":"BTC"},{"symbol":"SOL","sentiment_score":0.9}]`)
	require.Equal(t, http.StatusOK, code)

	report := decode[models.BatchReport](t, env.Data)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Errors, "1::sentiment")
}

func TestRuleEndpoints(t *testing.T) {
	e := newAPIEnv(t)

	code, env := e.do(t, http.MethodGet, "/api/users/u1/rules/global", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.DefaultAlertRule("u1"), decode[models.AlertRule](t, env.Data))

	code, _ = e.do(t, http.MethodPut, "/api/users/u1/rules/global", `{"price_change_threshold":5,"frequency":"daily"}`)
	require.Equal(t, http.StatusOK, code)

	code, env = e.do(t, http.MethodPut, "/api/users/u1/rules/btc", `{"price_change_threshold":2}`)
	require.Equal(t, http.StatusOK, code)
	btc := decode[models.AlertRule](t, env.Data)
	assert.Equal(t, "BTC", btc.AssetSymbol)
	assert.Equal(t, models.FrequencyDaily, btc.Frequency)

	code, env = e.do(t, http.MethodGet, "/api/users/u1/rules/BTC/effective", "")
	require.Equal(t, http.StatusOK, code)
	eff := decode[models.EffectiveRule](t, env.Data)
	assert.Equal(t, models.OriginAsset, eff.Origin)
	assert.Equal(t, 2.0, eff.Rule.PriceChangeThreshold)

	code, env = e.do(t, http.MethodGet, "/api/users/u1/rules/ETH/effective", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.OriginGlobal, decode[models.EffectiveRule](t, env.Data).Origin)

	code, env = e.do(t, http.MethodGet, "/api/users/u1/rules", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(2), decode[xhttp.ListDataResponse](t, env.Data).Total)

	code, env = e.do(t, http.MethodDelete, "/api/users/u1/rules/global", "")
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "ERR_GLOBAL_RULE_UNDELETABLE", decode[[]xhttp.AppError](t, env.Data)[0].Code)

	code, _ = e.do(t, http.MethodDelete, "/api/users/u1/rules/BTC", "")
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = e.do(t, http.MethodGet, "/api/users/u1/rules/BTC", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, env = e.do(t, http.MethodPost, "/api/users/u1/rules/global/reset", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.FrequencyImmediate, decode[models.AlertRule](t, env.Data).Frequency)
}

func TestRuleValidation(t *testing.T) {
	e := newAPIEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"sentiment too high", `{"sentiment_threshold":101}`},
		{"price too low", `{"price_change_threshold":0.01}`},
		{"price too high", `{"price_change_threshold":51}`},
		{"bad frequency", `{"frequency":"monthly"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := e.do(t, http.MethodPut, "/api/users/u1/rules/global", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
		})
	}
}

func TestWatchlistAndContacts(t *testing.T) {
	e := newAPIEnv(t)

	code, _ := e.do(t, http.MethodPost, "/api/users/u1/watchlist", `{"asset":"not a symbol"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := e.do(t, http.MethodPost, "/api/users/u1/watchlist", `{"asset":"sol"}`)
	require.Equal(t, http.StatusOK, code)
	list := decode[xhttp.ListDataResponse](t, env.Data)
	assert.Equal(t, int64(1), list.Total)

	watchers, err := e.watchlists.Watchers(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, watchers)

	code, _ = e.do(t, http.MethodDelete, "/api/users/u1/watchlist/SOL", "")
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = e.do(t, http.MethodDelete, "/api/users/u1/watchlist/SOL", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = e.do(t, http.MethodGet, "/api/users/u1/contacts", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = e.do(t, http.MethodPut, "/api/users/u1/contacts", `{"email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = e.do(t, http.MethodPut, "/api/users/u1/contacts", `{"email":"u1@example.com","telegram_chat_id":99}`)
	require.Equal(t, http.StatusOK, code)
	contact := decode[models.Contact](t, env.Data)
	assert.Equal(t, int64(99), contact.TelegramChatID)
}
