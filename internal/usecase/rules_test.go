package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/repository"
	"CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
)

func newRuleService() (*RuleService, *repository.MemoryRuleStore) {
	store := repository.NewMemoryRuleStore()
	resolver := NewResolver(store, time.Second, metrics.Noop{}, logger.NewNop())
	return NewRuleService(store, resolver, time.Second), store
}

func ptr[T any](v T) *T { return &v }

func TestUpsertAssetCopiesGlobal(t *testing.T) {
	svc, _ := newRuleService()
	ctx := context.Background()

	_, err := svc.UpdateGlobal(ctx, "u1", models.RulePatch{
		SentimentThreshold: ptr(35),
		Frequency:          ptr(models.FrequencyDaily),
		EmailEnabled:       ptr(true),
	})
	require.NoError(t, err)

	btc, err := svc.UpsertAsset(ctx, "u1", "btc", models.RulePatch{PriceChangeThreshold: ptr(2.0)})
	require.NoError(t, err)

	assert.Equal(t, "BTC", btc.AssetSymbol)
	assert.Equal(t, 2.0, btc.PriceChangeThreshold)
	assert.Equal(t, 35, btc.SentimentThreshold, "unpatched fields come from the global rule")
	assert.Equal(t, models.FrequencyDaily, btc.Frequency)
	assert.True(t, btc.Channels.Email)

	global, err := svc.Global(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPriceChangeThreshold, global.PriceChangeThreshold, "global rule is untouched")

	_, err = svc.UpdateGlobal(ctx, "u1", models.RulePatch{SentimentThreshold: ptr(80)})
	require.NoError(t, err)
	again, err := svc.Asset(ctx, "u1", "BTC")
	require.NoError(t, err)
	assert.Equal(t, 35, again.SentimentThreshold, "asset rules are copies, not references")
}

func TestUpsertAssetWithoutGlobalStartsFromDefaults(t *testing.T) {
	svc, _ := newRuleService()

	eth, err := svc.UpsertAsset(context.Background(), "u1", "ETH", models.RulePatch{PriceEnabled: ptr(false)})
	require.NoError(t, err)

	want := models.DefaultAlertRule("u1")
	want.AssetSymbol = "ETH"
	want.Enabled.Price = false
	want.UpdatedAt = eth.UpdatedAt
	assert.Equal(t, want, eth)
}

func TestGlobalRuleCannotBeDeleted(t *testing.T) {
	svc, _ := newRuleService()
	ctx := context.Background()

	assert.ErrorIs(t, svc.DeleteGlobal(ctx, "u1"), models.ErrGlobalRuleUndeletable)
	assert.ErrorIs(t, svc.DeleteAsset(ctx, "u1", " "), models.ErrGlobalRuleUndeletable)
}

func TestResetGlobalRestoresDefaults(t *testing.T) {
	svc, _ := newRuleService()
	ctx := context.Background()

	_, err := svc.UpdateGlobal(ctx, "u1", models.RulePatch{SentimentThreshold: ptr(90)})
	require.NoError(t, err)

	reset, err := svc.ResetGlobal(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSentimentThreshold, reset.SentimentThreshold)

	eff := svc.Effective(ctx, "u1", "BTC")
	assert.Equal(t, models.OriginGlobal, eff.Origin)
}

func TestRuleValidationRanges(t *testing.T) {
	tests := []struct {
		name  string
		patch models.RulePatch
		ok    bool
	}{
		{"sentiment lower bound", models.RulePatch{SentimentThreshold: ptr(0)}, true},
		{"sentiment upper bound", models.RulePatch{SentimentThreshold: ptr(100)}, true},
		{"sentiment above range", models.RulePatch{SentimentThreshold: ptr(101)}, false},
		{"sentiment below range", models.RulePatch{SentimentThreshold: ptr(-1)}, false},
		{"price lower bound", models.RulePatch{PriceChangeThreshold: ptr(0.1)}, true},
		{"price upper bound", models.RulePatch{PriceChangeThreshold: ptr(50.0)}, true},
		{"price below range", models.RulePatch{PriceChangeThreshold: ptr(0.05)}, false},
		{"price above range", models.RulePatch{PriceChangeThreshold: ptr(50.5)}, false},
		{"unknown frequency", models.RulePatch{Frequency: ptr(models.Frequency("monthly"))}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newRuleService()
			ctx := context.Background()

			_, err := svc.UpdateGlobal(ctx, "u1", tt.patch)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, models.ErrInvalidRule)
			_, err = store.Get(ctx, "u1", "")
			assert.ErrorIs(t, err, models.ErrNotFound, "invalid rules are not stored")
		})
	}
}

func TestDeleteAssetRule(t *testing.T) {
	svc, _ := newRuleService()
	ctx := context.Background()

	_, err := svc.UpsertAsset(ctx, "u1", "BTC", models.RulePatch{})
	require.NoError(t, err)
	assert.Equal(t, models.OriginAsset, svc.Effective(ctx, "u1", "btc").Origin)

	require.NoError(t, svc.DeleteAsset(ctx, "u1", "btc"))
	assert.Equal(t, models.OriginDefault, svc.Effective(ctx, "u1", "BTC").Origin)
	assert.ErrorIs(t, svc.DeleteAsset(ctx, "u1", "BTC"), models.ErrNotFound)

	rules, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestWatchlistServiceNormalizes(t *testing.T) {
	store := repository.NewMemoryWatchlistStore()
	svc := NewWatchlistService(store, time.Second)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "u1", " btc"))
	require.NoError(t, svc.Add(ctx, "u1", "BTC"))
	require.NoError(t, svc.Add(ctx, "u1", "eth"))

	assets, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"BTC", "ETH"}, assets)

	watchers, err := store.Watchers(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, watchers)

	require.NoError(t, svc.Remove(ctx, "u1", "Btc"))
	assets, err = svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ETH"}, assets)
}

func TestContactServiceStampsUpdate(t *testing.T) {
	svc := NewContactService(repository.NewMemoryContactStore(), time.Second)
	ctx := context.Background()

	_, err := svc.Get(ctx, "u1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	saved, err := svc.Put(ctx, models.Contact{UserID: "u1", Email: "a@example.com", TelegramChatID: 42})
	require.NoError(t, err)
	assert.False(t, saved.UpdatedAt.IsZero())

	got, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Email)
	assert.Equal(t, int64(42), got.TelegramChatID)
}
