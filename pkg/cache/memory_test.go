package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rulePayload struct {
	Asset     string  `json:"asset"`
	Threshold float64 `json:"threshold"`
}

func TestMemoryCacheRoundTripsStructs(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "rules:u1:BTC", rulePayload{Asset: "BTC", Threshold: 2}, time.Minute))

	var got rulePayload
	require.NoError(t, mc.Get(ctx, "rules:u1:BTC", &got))
	assert.Equal(t, rulePayload{Asset: "BTC", Threshold: 2}, got)

	var s string
	require.NoError(t, mc.Set(ctx, "plain", "value", 0))
	require.NoError(t, mc.Get(ctx, "plain", &s))
	assert.Equal(t, "value", s)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "k", 1, time.Second))
	var v int
	require.NoError(t, mc.Get(ctx, "k", &v))

	now = now.Add(time.Second)
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryCleanup(0))
	defer mc.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { now = now.Add(time.Millisecond); return now }

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v)) // touch a so b is the oldest

	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))
	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &v))
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	for _, k := range []string{"rules:u1:*", "rules:u1:BTC", "rules:u2:BTC"} {
		require.NoError(t, mc.Set(ctx, k, 1, time.Minute))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("rules:u1:")))

	var v int
	assert.ErrorIs(t, mc.Get(ctx, "rules:u1:BTC", &v), ErrCacheMiss)
	assert.ErrorIs(t, mc.Get(ctx, "rules:u1:*", &v), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "rules:u2:BTC", &v))
}

func TestMemoryCacheTryLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "poller", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "poller", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "poller"))
	ok, err = mc.TryLock(ctx, "poller", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLayeredCacheFallsBackToL2(t *testing.T) {
	ctx := context.Background()
	l2 := NewMemoryCache(WithMemoryCleanup(0))
	defer l2.Close()
	lc := NewLayeredCache(l2)
	defer lc.Close()

	require.NoError(t, l2.Set(ctx, "k", rulePayload{Asset: "ETH"}, time.Minute))

	var got rulePayload
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "ETH", got.Asset)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
}
