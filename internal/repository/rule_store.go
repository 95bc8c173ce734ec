package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/pkg/cache"
)

const globalRuleField = "_global"

// RedisRuleStore keeps every rule of a user in one hash, one field per asset.
type RedisRuleStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRuleStore(client redis.UniversalClient, prefix string) *RedisRuleStore {
	if prefix == "" {
		prefix = "coinpulse"
	}
	return &RedisRuleStore{client: client, prefix: prefix + ":rules"}
}

func (s *RedisRuleStore) key(userID string) string { return s.prefix + ":" + userID }

func ruleField(asset string) string {
	if asset == "" {
		return globalRuleField
	}
	return asset
}

func (s *RedisRuleStore) Get(ctx context.Context, userID, asset string) (*models.AlertRule, error) {
	raw, err := s.client.HGet(ctx, s.key(userID), ruleField(asset)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("redis hget rule: %w", err)
	}
	var r models.AlertRule
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}
	return &r, nil
}

func (s *RedisRuleStore) List(ctx context.Context, userID string) ([]models.AlertRule, error) {
	vals, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall rules: %w", err)
	}
	out := make([]models.AlertRule, 0, len(vals))
	for field, raw := range vals {
		var r models.AlertRule
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode rule %s: %w", field, err)
		}
		out = append(out, r)
	}
	sortRules(out)
	return out, nil
}

func (s *RedisRuleStore) Put(ctx context.Context, rule *models.AlertRule) error {
	raw, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("encode rule: %w", err)
	}
	if err := s.client.HSet(ctx, s.key(rule.OwnerUserID), ruleField(rule.AssetSymbol), raw).Err(); err != nil {
		return fmt.Errorf("redis hset rule: %w", err)
	}
	return nil
}

func (s *RedisRuleStore) Delete(ctx context.Context, userID, asset string) error {
	if asset == "" {
		return models.ErrGlobalRuleUndeletable
	}
	n, err := s.client.HDel(ctx, s.key(userID), ruleField(asset)).Result()
	if err != nil {
		return fmt.Errorf("redis hdel rule: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CachedRuleStore is a read-through cache over a RuleStore. Misses are
// cached too; writes invalidate the user's entries.
type CachedRuleStore struct {
	next  domrepo.RuleStore
	cache cache.Service
	ttl   time.Duration
}

type cachedRule struct {
	Found bool              `json:"found"`
	Rule  *models.AlertRule `json:"rule,omitempty"`
}

func NewCachedRuleStore(next domrepo.RuleStore, c cache.Service, ttl time.Duration) *CachedRuleStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedRuleStore{next: next, cache: c, ttl: ttl}
}

func (s *CachedRuleStore) userPrefix(userID string) string {
	return cache.GenerateKeyWithParams("rules", userID)
}

func (s *CachedRuleStore) Get(ctx context.Context, userID, asset string) (*models.AlertRule, error) {
	key := cache.GenerateKeyWithParams(s.userPrefix(userID), ruleField(asset))

	var hit cachedRule
	if err := s.cache.Get(ctx, key, &hit); err == nil {
		if !hit.Found {
			return nil, models.ErrNotFound
		}
		return hit.Rule, nil
	}

	rule, err := s.next.Get(ctx, userID, asset)
	switch {
	case err == nil:
		_ = s.cache.Set(ctx, key, cachedRule{Found: true, Rule: rule}, s.ttl)
	case errors.Is(err, models.ErrNotFound):
		_ = s.cache.Set(ctx, key, cachedRule{}, s.ttl)
	}
	return rule, err
}

func (s *CachedRuleStore) List(ctx context.Context, userID string) ([]models.AlertRule, error) {
	return s.next.List(ctx, userID)
}

func (s *CachedRuleStore) Put(ctx context.Context, rule *models.AlertRule) error {
	if err := s.next.Put(ctx, rule); err != nil {
		return err
	}
	return s.invalidate(ctx, rule.OwnerUserID)
}

func (s *CachedRuleStore) Delete(ctx context.Context, userID, asset string) error {
	if err := s.next.Delete(ctx, userID, asset); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

func (s *CachedRuleStore) invalidate(ctx context.Context, userID string) error {
	if err := s.cache.DeleteByPattern(ctx, cache.BuildPattern(s.userPrefix(userID)+":")); err != nil {
		return fmt.Errorf("invalidate rule cache: %w", err)
	}
	return nil
}

var (
	_ domrepo.RuleStore = (*RedisRuleStore)(nil)
	_ domrepo.RuleStore = (*CachedRuleStore)(nil)
)
