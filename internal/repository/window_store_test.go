package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPulse/internal/domain/models"
)

func TestMemoryWindowStoreCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryWindowStore()
	key := models.WindowKey{UserID: "u1", AssetSymbol: "BTC", Kind: models.KindPrice}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	w, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, w)

	first := models.DispatchWindow{LastFiredAt: now, WindowEnd: now.Add(time.Hour), Version: 1}
	ok, err := s.CompareAndSwap(ctx, key, 0, first)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CompareAndSwap(ctx, key, 0, first)
	require.NoError(t, err)
	assert.False(t, ok, "stale version must lose")

	w, err = s.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, int64(1), w.Version)
	assert.Equal(t, key, w.Key)
	assert.True(t, w.WindowEnd.Equal(now.Add(time.Hour)))

	other := models.WindowKey{UserID: "u1", AssetSymbol: "BTC", Kind: models.KindSentiment}
	w, err = s.Get(ctx, other)
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestMemoryWindowStoreSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryWindowStore()
	key := models.WindowKey{UserID: "u1", AssetSymbol: "ETH", Kind: models.KindPrice}

	var (
		wins  atomic.Int32
		start sync.WaitGroup
		done  sync.WaitGroup
	)
	start.Add(1)
	for i := 0; i < 50; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			start.Wait()
			ok, err := s.CompareAndSwap(ctx, key, 0, models.DispatchWindow{Version: 1})
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	start.Done()
	done.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
