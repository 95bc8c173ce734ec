package repository

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPulse/internal/domain/models"
)

func newRedisWindowStore(t *testing.T) (*RedisWindowStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisWindowStore(client, "test"), mr
}

func TestRedisWindowStoreCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisWindowStore(t)
	key := models.WindowKey{UserID: "u1", AssetSymbol: "BTC", Kind: models.KindPrice}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	w, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, w, "absent key reads as no window")

	first := models.DispatchWindow{LastFiredAt: now, WindowEnd: now.Add(time.Hour), Version: 1}

	tests := []struct {
		name     string
		expected int64
		next     models.DispatchWindow
		want     bool
	}{
		{"absent key swaps at version 0", 0, first, true},
		{"stale version loses", 0, first, false},
		{"ahead of stored version loses", 5, models.DispatchWindow{LastFiredAt: now, WindowEnd: now.Add(time.Hour), Version: 6}, false},
		{"current version swaps", 1, models.DispatchWindow{LastFiredAt: now.Add(2 * time.Hour), WindowEnd: now.Add(3 * time.Hour), Version: 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := s.CompareAndSwap(ctx, key, tt.expected, tt.next)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	w, err = s.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, key, w.Key)
	assert.Equal(t, int64(2), w.Version)
	assert.True(t, w.LastFiredAt.Equal(now.Add(2*time.Hour)))
	assert.True(t, w.WindowEnd.Equal(now.Add(3*time.Hour)))

	stored := s.key(key)
	assert.Equal(t, "2", mr.HGet(stored, "version"))
	assert.Equal(t, strconv.FormatInt(now.Add(3*time.Hour).UnixMilli(), 10), mr.HGet(stored, "window_end"))
	assert.Equal(t, time.Hour, mr.TTL(stored))
}

func TestRedisWindowStoreExpiryResetsVersion(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisWindowStore(t)
	key := models.WindowKey{UserID: "u1", AssetSymbol: "ETH", Kind: models.KindSentiment}
	now := time.Now().UTC()

	ok, err := s.CompareAndSwap(ctx, key, 0, models.DispatchWindow{LastFiredAt: now, WindowEnd: now.Add(time.Hour), Version: 1})
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(time.Hour + time.Second)

	w, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, w)

	ok, err = s.CompareAndSwap(ctx, key, 0, models.DispatchWindow{LastFiredAt: now, WindowEnd: now.Add(time.Hour), Version: 1})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisWindowStoreRestoredZeroWindow(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisWindowStore(t)
	key := models.WindowKey{UserID: "u2", AssetSymbol: "SOL", Kind: models.KindNarrative}
	now := time.Now().UTC()

	ok, err := s.CompareAndSwap(ctx, key, 0, models.DispatchWindow{LastFiredAt: now, WindowEnd: now.Add(time.Hour), Version: 1})
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.CompareAndSwap(ctx, key, 1, models.DispatchWindow{Version: 2})
	require.NoError(t, err)
	require.True(t, ok)

	w, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, int64(2), w.Version)
	assert.False(t, w.Open(now))
}

func TestRedisWindowStoreGetRejectsCorruptHash(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
	}{
		{"bad version", []string{"version", "x", "last_fired_at", "1", "window_end", "2"}},
		{"missing window end", []string{"version", "1", "last_fired_at", "1"}},
		{"bad last fired", []string{"version", "1", "last_fired_at", "soon", "window_end", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mr := newRedisWindowStore(t)
			key := models.WindowKey{UserID: "u1", AssetSymbol: "BTC", Kind: models.KindPrice}
			mr.HSet(s.key(key), tt.fields...)

			_, err := s.Get(context.Background(), key)
			assert.Error(t, err)
		})
	}
}
