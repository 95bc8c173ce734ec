package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlertRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *AlertRule)
		wantErr bool
	}{
		{"defaults", func(*AlertRule) {}, false},
		{"missing owner", func(r *AlertRule) { r.OwnerUserID = "" }, true},
		{"sentiment above range", func(r *AlertRule) { r.SentimentThreshold = 101 }, true},
		{"price at lower bound", func(r *AlertRule) { r.PriceChangeThreshold = MinPriceChangeThreshold }, false},
		{"price below range", func(r *AlertRule) { r.PriceChangeThreshold = 0.05 }, true},
		{"price NaN", func(r *AlertRule) { r.PriceChangeThreshold = math.NaN() }, true},
		{"price infinite", func(r *AlertRule) { r.PriceChangeThreshold = math.Inf(1) }, true},
		{"unknown frequency", func(r *AlertRule) { r.Frequency = "monthly" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultAlertRule("u1")
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRule)
				return
			}
			assert.NoError(t, err)
		})
	}
}
