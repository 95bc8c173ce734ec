package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/service"
	"CoinPulse/internal/repository"
	"CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
)

func TestProcessPriceDropNotifiesWatcher(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.watchlists.Add(ctx, "u1", "BTC"))

	res, err := f.pipeline.Process(ctx, models.Observation{AssetSymbol: "btc", Kind: models.KindPrice, Magnitude: -6.2})
	require.NoError(t, err)

	require.NotNil(t, res.Signal)
	assert.Equal(t, "BTC", res.Signal.AssetSymbol)
	assert.Equal(t, 62, res.Signal.Strength)
	assert.False(t, res.Signal.Timestamp.IsZero())

	require.Len(t, res.Outcomes, 1)
	out := res.Outcomes[0]
	assert.Equal(t, models.OriginDefault, out.Origin)
	assert.Equal(t, models.ReasonThresholdMet, out.Reason)
	assert.True(t, out.Admitted)
	assert.NotEmpty(t, out.NotificationID)
	assert.NoError(t, out.Err)
	assert.Equal(t, 1, res.Notified())

	n, err := f.notes.Get(ctx, "u1", out.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, models.StateUnread, n.State)
	require.Len(t, f.push.Sent(), 1)
	assert.Equal(t, n.ID, f.push.Sent()[0].NotificationID)

	stored, total, err := f.signals.Query(ctx, models.SignalQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, res.Signal.ID, stored[0].ID)
}

func TestProcessWeakSentimentDoesNotFire(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.watchlists.Add(ctx, "u1", "ETH"))

	res, err := f.pipeline.Process(ctx, models.Observation{AssetSymbol: "ETH", Kind: models.KindSentiment, Magnitude: 15})
	require.NoError(t, err)

	assert.Equal(t, 15, res.Signal.Strength)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, models.ReasonBelowThreshold, res.Outcomes[0].Reason)
	assert.False(t, res.Outcomes[0].Admitted)
	assert.Empty(t, res.Outcomes[0].NotificationID)
	assert.Empty(t, f.push.Sent())

	_, total, err := f.signals.Query(ctx, models.SignalQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "signals persist whether or not they fire")
}

func TestProcessAppliesPerUserRules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for _, u := range []string{"u1", "u2", "u3"} {
		require.NoError(t, f.watchlists.Add(ctx, u, "BTC"))
	}

	hourly := models.DefaultAlertRule("u2")
	hourly.Frequency = models.FrequencyHourly
	require.NoError(t, f.rules.Put(ctx, &hourly))

	strict := models.DefaultAlertRule("u3")
	strict.AssetSymbol = "BTC"
	strict.PriceChangeThreshold = 10
	require.NoError(t, f.rules.Put(ctx, &strict))

	first, err := f.pipeline.Process(ctx, models.Observation{AssetSymbol: "BTC", Kind: models.KindPrice, Magnitude: 7})
	require.NoError(t, err)
	second, err := f.pipeline.Process(ctx, models.Observation{AssetSymbol: "BTC", Kind: models.KindPrice, Magnitude: 8})
	require.NoError(t, err)

	byUser := func(res *models.ProcessResult) map[string]models.UserOutcome {
		m := make(map[string]models.UserOutcome)
		for _, o := range res.Outcomes {
			m[o.UserID] = o
		}
		return m
	}
	a, b := byUser(first), byUser(second)

	assert.True(t, a["u1"].Admitted)
	assert.True(t, b["u1"].Admitted, "immediate frequency never throttles")

	assert.Equal(t, models.OriginGlobal, a["u2"].Origin)
	assert.True(t, a["u2"].Admitted)
	assert.False(t, b["u2"].Admitted, "hourly window suppresses the second fire")
	assert.Equal(t, models.ReasonThresholdMet, b["u2"].Reason)

	assert.Equal(t, models.OriginAsset, a["u3"].Origin)
	assert.Equal(t, models.ReasonBelowThreshold, a["u3"].Reason)

	assert.Len(t, f.push.Sent(), 3)
}

func TestProcessRejectsMalformed(t *testing.T) {
	f := newFixture()
	_, err := f.pipeline.Process(context.Background(), models.Observation{AssetSymbol: " ", Kind: models.KindPrice, Magnitude: 1})
	assert.True(t, models.IsMalformed(err))
}

func TestProcessSignalAppendFailure(t *testing.T) {
	f := newFixture()
	f.build(flakySignalStore{MemorySignalStore: repository.NewMemorySignalStore(), failFor: map[string]bool{"ETH": true}})

	_, err := f.pipeline.Process(context.Background(), models.Observation{AssetSymbol: "ETH", Kind: models.KindPrice, Magnitude: 9})
	assert.ErrorIs(t, err, errStoreDown)
}

func TestProcessWindowFailureIsPerUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.watchlists.Add(ctx, "u1", "BTC"))
	hourly := models.DefaultAlertRule("u1")
	hourly.Frequency = models.FrequencyHourly
	require.NoError(t, f.rules.Put(ctx, &hourly))

	f.pipeline.throttler = NewThrottler(brokenWindowStore{}, time.Second, f.pipeline.metrics, f.pipeline.log)

	res, err := f.pipeline.Process(ctx, models.Observation{AssetSymbol: "BTC", Kind: models.KindPrice, Magnitude: 9})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.False(t, res.Outcomes[0].Admitted)
	assert.ErrorIs(t, res.Outcomes[0].Err, errStoreDown)
	assert.NotEmpty(t, res.Outcomes[0].Error)
	assert.Empty(t, f.push.Sent())
}

func TestProcessBatchPartialFailure(t *testing.T) {
	f := newFixture()
	f.build(flakySignalStore{MemorySignalStore: f.signals, failFor: map[string]bool{"ETH": true}})

	report := f.pipeline.ProcessBatch(context.Background(), []models.Observation{
		{AssetSymbol: "BTC", Kind: models.KindPrice, Magnitude: 3},
		{AssetSymbol: "ETH", Kind: models.KindPrice, Magnitude: 3},
		{AssetSymbol: "", Kind: models.KindPrice, Magnitude: 3},
		{AssetSymbol: "SOL", Kind: models.KindNarrative, Magnitude: 0.7},
	})

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, report.Failed)
	assert.Len(t, report.Results, 2)
	assert.Contains(t, report.Errors, "1:ETH:price")
	assert.Contains(t, report.Errors, "2::price")

	_, total, err := f.signals.Query(context.Background(), models.SignalQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestSignalsNewestFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, asset := range []string{"BTC", "ETH", "BTC"} {
		_, err := f.pipeline.Process(ctx, models.Observation{
			AssetSymbol: asset,
			Kind:        models.KindPrice,
			Magnitude:   float64(i + 1),
			OccurredAt:  base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	rows, total, err := f.pipeline.Signals(ctx, models.SignalQuery{Assets: []string{"BTC"}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, rows, 2)
	assert.Equal(t, 3.0, rows[0].Magnitude)
	assert.Equal(t, 1.0, rows[1].Magnitude)
}

func TestProcessNotificationFailureReopensWindow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.watchlists.Add(ctx, "u1", "BTC"))
	hourly := models.DefaultAlertRule("u1")
	hourly.Frequency = models.FrequencyHourly
	require.NoError(t, f.rules.Put(ctx, &hourly))

	notes := &flakyNotificationStore{MemoryNotificationStore: f.notes, failures: 1}
	f.pipeline.sink = NewSink(notes, NewDirectDeliverer([]service.Channel{f.push, f.email}, time.Second, metrics.Noop{}), metrics.Noop{}, logger.NewNop())

	observation := models.Observation{AssetSymbol: "BTC", Kind: models.KindPrice, Magnitude: -8}

	first, err := f.pipeline.Process(ctx, observation)
	require.NoError(t, err)
	require.Len(t, first.Outcomes, 1)
	assert.ErrorIs(t, first.Outcomes[0].Err, errStoreDown)
	assert.Empty(t, first.Outcomes[0].NotificationID)

	second, err := f.pipeline.Process(ctx, observation)
	require.NoError(t, err)
	require.Len(t, second.Outcomes, 1)
	assert.True(t, second.Outcomes[0].Admitted)
	assert.NotEmpty(t, second.Outcomes[0].NotificationID)

	third, err := f.pipeline.Process(ctx, observation)
	require.NoError(t, err)
	require.Len(t, third.Outcomes, 1)
	assert.False(t, third.Outcomes[0].Admitted, "the recorded fire holds the window")

	page, err := f.notes.List(ctx, "u1", models.NotificationQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}
