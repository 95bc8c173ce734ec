package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPulse/internal/domain/models"
	"CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
)

type flakyIngestor struct {
	mu       sync.Mutex
	failures int
	calls    int
	ok       []models.Observation
}

func (f *flakyIngestor) Process(_ context.Context, obs models.Observation) (*models.ProcessResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("signal store down")
	}
	f.ok = append(f.ok, obs)
	return &models.ProcessResult{Signal: &models.Signal{AssetSymbol: obs.AssetSymbol}}, nil
}

func (f *flakyIngestor) succeeded() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ok)
}

func obs(asset string, kind models.Kind) models.Observation {
	return models.Observation{AssetSymbol: asset, Kind: kind, Magnitude: 1}
}

func TestIngestGateRejectsMalformed(t *testing.T) {
	next := &flakyIngestor{}
	g := NewIngestGate(next, metrics.Noop{}, logger.NewNop())

	_, err := g.Process(context.Background(), models.Observation{Kind: models.KindPrice})
	assert.True(t, models.IsMalformed(err))
	assert.Zero(t, next.calls)
}

func TestIngestGateThrottlesPerAssetAndKind(t *testing.T) {
	next := &flakyIngestor{}
	g := NewIngestGate(next, metrics.Noop{}, logger.NewNop(), WithMaxRPS(2))
	ctx := context.Background()

	var accepted int
	for i := 0; i < 5; i++ {
		res, err := g.Process(ctx, obs("BTC", models.KindPrice))
		require.NoError(t, err)
		if res != nil {
			accepted++
		}
	}
	assert.Equal(t, 2, accepted)

	res, err := g.Process(ctx, obs("BTC", models.KindSentiment))
	require.NoError(t, err)
	assert.NotNil(t, res, "other kinds have their own budget")

	res, err = g.Process(ctx, obs("ETH", models.KindPrice))
	require.NoError(t, err)
	assert.NotNil(t, res)
}

func TestIngestGateReturnsFailuresWithoutBuffering(t *testing.T) {
	next := &flakyIngestor{failures: 1}
	g := NewIngestGate(next, metrics.Noop{}, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g.Start(ctx)
	defer g.Stop()

	o := obs("BTC", models.KindPrice)
	_, err := g.Process(ctx, o)
	require.Error(t, err)
	assert.Zero(t, g.Buffered())

	// the caller resubmits, as the Kafka consumer does on error
	res, err := g.Process(ctx, o)
	require.NoError(t, err)
	assert.NotNil(t, res)

	assert.Never(t, func() bool { return next.succeeded() > 1 }, 200*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, 1, next.succeeded())
}

func TestIngestGateRetryingBuffersFailures(t *testing.T) {
	next := &flakyIngestor{failures: 2}
	g := NewIngestGate(next, metrics.Noop{}, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g.Start(ctx)
	defer g.Stop()

	res, err := g.Retrying().Process(ctx, obs("BTC", models.KindPrice))
	require.NoError(t, err, "buffered observations are accepted")
	assert.Nil(t, res)

	assert.Eventually(t, func() bool { return next.succeeded() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return next.succeeded() > 1 }, 200*time.Millisecond, 10*time.Millisecond)
	assert.Zero(t, g.Buffered())
}

func TestIngestGateRetryingFullBufferReturnsError(t *testing.T) {
	next := &flakyIngestor{failures: 10}
	g := NewIngestGate(next, metrics.Noop{}, logger.NewNop(), WithBufferSize(1))
	ctx := context.Background()
	r := g.Retrying()

	_, err := r.Process(ctx, obs("BTC", models.KindPrice))
	require.NoError(t, err)
	_, err = r.Process(ctx, obs("ETH", models.KindPrice))
	require.Error(t, err)
	assert.Equal(t, 1, g.Buffered())
}

func TestIngestGateRetryingPassesMalformed(t *testing.T) {
	next := &flakyIngestor{}
	g := NewIngestGate(next, metrics.Noop{}, logger.NewNop())

	_, err := g.Retrying().Process(context.Background(), models.Observation{Kind: models.KindPrice})
	assert.True(t, models.IsMalformed(err))
	assert.Zero(t, g.Buffered())
}

func TestIngestGateStopIsIdempotent(t *testing.T) {
	g := NewIngestGate(&flakyIngestor{}, metrics.Noop{}, logger.NewNop())
	g.Start(context.Background())
	g.Stop()
	g.Stop()
}
