package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/repository"
	"CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
)

func newTestThrottler() *Throttler {
	return NewThrottler(repository.NewMemoryWindowStore(), time.Second, metrics.Noop{}, logger.NewNop())
}

func TestAdmitHourlyWindow(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		gap  time.Duration
		want []bool
	}{
		{"second fire inside the hour", 10 * time.Minute, []bool{true, false}},
		{"second fire after the hour", 61 * time.Minute, []bool{true, true}},
		{"exactly at window end", time.Hour, []bool{true, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := newTestThrottler()
			ctx := context.Background()

			var got []bool
			for i := range tt.want {
				ok, err := th.Admit(ctx, "u1", "BTC", models.KindPrice, models.FrequencyHourly, base.Add(time.Duration(i)*tt.gap))
				require.NoError(t, err)
				got = append(got, ok)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdmitImmediateAlwaysPasses(t *testing.T) {
	th := newTestThrottler()
	now := time.Now()
	for i := 0; i < 3; i++ {
		ok, err := th.Admit(context.Background(), "u1", "BTC", models.KindPrice, models.FrequencyImmediate, now)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestAdmitKeysAreIndependent(t *testing.T) {
	th := newTestThrottler()
	ctx := context.Background()
	now := time.Now()

	for _, k := range []struct {
		user, asset string
		kind        models.Kind
	}{
		{"u1", "BTC", models.KindPrice},
		{"u1", "BTC", models.KindSentiment},
		{"u1", "ETH", models.KindPrice},
		{"u2", "BTC", models.KindPrice},
	} {
		ok, err := th.Admit(ctx, k.user, k.asset, k.kind, models.FrequencyDaily, now)
		require.NoError(t, err)
		assert.True(t, ok, "%s %s %s", k.user, k.asset, k.kind)
	}
}

func TestAdmitConcurrentSingleWinner(t *testing.T) {
	th := newTestThrottler()
	now := time.Now()

	const n = 64
	var (
		wins  atomic.Int32
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := th.Admit(context.Background(), "u1", "BTC", models.KindPrice, models.FrequencyHourly, now)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestAdmitStoreFailureDenies(t *testing.T) {
	th := NewThrottler(brokenWindowStore{}, time.Second, metrics.Noop{}, logger.NewNop())

	ok, err := th.Admit(context.Background(), "u1", "BTC", models.KindPrice, models.FrequencyHourly, time.Now())
	assert.False(t, ok)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestReserveReleaseReopensWindow(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		prior bool
	}{
		{"first fire for the key", false},
		{"window existed before", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windows := repository.NewMemoryWindowStore()
			th := NewThrottler(windows, time.Second, metrics.Noop{}, logger.NewNop())
			ctx := context.Background()
			now := base
			if tt.prior {
				ok, err := th.Admit(ctx, "u1", "BTC", models.KindPrice, models.FrequencyHourly, base)
				require.NoError(t, err)
				require.True(t, ok)
				now = base.Add(2 * time.Hour)
			}

			ok, release, err := th.Reserve(ctx, "u1", "BTC", models.KindPrice, models.FrequencyHourly, now)
			require.NoError(t, err)
			require.True(t, ok)
			require.NoError(t, release(ctx))

			w, err := windows.Get(ctx, models.WindowKey{UserID: "u1", AssetSymbol: "BTC", Kind: models.KindPrice})
			require.NoError(t, err)
			assert.False(t, w.Open(now))

			ok, err = th.Admit(ctx, "u1", "BTC", models.KindPrice, models.FrequencyHourly, now.Add(time.Minute))
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestReleaseLeavesNewerWindowAlone(t *testing.T) {
	windows := repository.NewMemoryWindowStore()
	th := NewThrottler(windows, time.Second, metrics.Noop{}, logger.NewNop())
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	key := models.WindowKey{UserID: "u1", AssetSymbol: "BTC", Kind: models.KindPrice}

	ok, release, err := th.Reserve(ctx, "u1", "BTC", models.KindPrice, models.FrequencyHourly, now)
	require.NoError(t, err)
	require.True(t, ok)

	w, err := windows.Get(ctx, key)
	require.NoError(t, err)
	later := models.DispatchWindow{LastFiredAt: now.Add(2 * time.Hour), WindowEnd: now.Add(3 * time.Hour), Version: w.Version + 1}
	swapped, err := windows.CompareAndSwap(ctx, key, w.Version, later)
	require.NoError(t, err)
	require.True(t, swapped)

	require.NoError(t, release(ctx))

	got, err := windows.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, later.Version, got.Version)
	assert.True(t, got.WindowEnd.Equal(later.WindowEnd))
}

func TestReserveImmediateReleaseIsNoop(t *testing.T) {
	th := newTestThrottler()
	ok, release, err := th.Reserve(context.Background(), "u1", "BTC", models.KindPrice, models.FrequencyImmediate, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, release(context.Background()))
}
