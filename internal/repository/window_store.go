package repository

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
)

const windowShards = 64

// MemoryWindowStore is a sharded arena of dispatch windows. Each shard has
// its own lock; CAS happens entirely under it.
type MemoryWindowStore struct {
	shards [windowShards]windowShard
}

type windowShard struct {
	mu      sync.Mutex
	windows map[models.WindowKey]models.DispatchWindow
}

func NewMemoryWindowStore() *MemoryWindowStore {
	s := &MemoryWindowStore{}
	for i := range s.shards {
		s.shards[i].windows = make(map[models.WindowKey]models.DispatchWindow)
	}
	return s
}

func (s *MemoryWindowStore) shard(key models.WindowKey) *windowShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.String()))
	return &s.shards[h.Sum32()%windowShards]
}

func (s *MemoryWindowStore) Get(_ context.Context, key models.WindowKey) (*models.DispatchWindow, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	w, ok := sh.windows[key]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *MemoryWindowStore) CompareAndSwap(_ context.Context, key models.WindowKey, expected int64, next models.DispatchWindow) (bool, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var current int64
	if w, ok := sh.windows[key]; ok {
		current = w.Version
	}
	if current != expected {
		return false, nil
	}
	next.Key = key
	sh.windows[key] = next
	return true, nil
}

// casWindowScript swaps the window hash only when the stored version matches
// ARGV[1] (0 meaning the key is absent).
var casWindowScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if not current then current = '0' end
if current ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[2], 'last_fired_at', ARGV[3], 'window_end', ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// RedisWindowStore keeps one hash per window key. Keys expire once the
// window has passed, which resets the version to absent.
type RedisWindowStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisWindowStore(client redis.UniversalClient, prefix string) *RedisWindowStore {
	if prefix == "" {
		prefix = "coinpulse"
	}
	return &RedisWindowStore{client: client, prefix: prefix + ":window"}
}

func (s *RedisWindowStore) key(k models.WindowKey) string {
	return s.prefix + ":" + k.String()
}

func (s *RedisWindowStore) Get(ctx context.Context, key models.WindowKey) (*models.DispatchWindow, error) {
	vals, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}

	version, err := strconv.ParseInt(vals["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse window version: %w", err)
	}
	last, err := strconv.ParseInt(vals["last_fired_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse window last_fired_at: %w", err)
	}
	end, err := strconv.ParseInt(vals["window_end"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse window window_end: %w", err)
	}
	return &models.DispatchWindow{
		Key:         key,
		LastFiredAt: time.UnixMilli(last).UTC(),
		WindowEnd:   time.UnixMilli(end).UTC(),
		Version:     version,
	}, nil
}

func (s *RedisWindowStore) CompareAndSwap(ctx context.Context, key models.WindowKey, expected int64, next models.DispatchWindow) (bool, error) {
	ttl := next.WindowEnd.Sub(next.LastFiredAt)
	if ttl < time.Second {
		ttl = time.Second
	}

	res, err := casWindowScript.Run(ctx, s.client, []string{s.key(key)},
		strconv.FormatInt(expected, 10),
		strconv.FormatInt(next.Version, 10),
		strconv.FormatInt(next.LastFiredAt.UnixMilli(), 10),
		strconv.FormatInt(next.WindowEnd.UnixMilli(), 10),
		ttl.Milliseconds(),
	).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("redis window cas: %w", err)
	}
	return res == 1, nil
}

var (
	_ domrepo.WindowStore = (*MemoryWindowStore)(nil)
	_ domrepo.WindowStore = (*RedisWindowStore)(nil)
)
