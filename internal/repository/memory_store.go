package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
)

// In-memory stores for development and tests. All are safe for concurrent use.

type MemorySignalStore struct {
	mu      sync.RWMutex
	signals []models.Signal
}

func NewMemorySignalStore() *MemorySignalStore {
	return &MemorySignalStore{}
}

func (s *MemorySignalStore) Append(_ context.Context, sig *models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, *sig)
	return nil
}

func (s *MemorySignalStore) Query(_ context.Context, q models.SignalQuery) ([]models.Signal, int64, error) {
	want := make(map[string]struct{}, len(q.Assets))
	for _, a := range q.Assets {
		want[a] = struct{}{}
	}

	s.mu.RLock()
	matched := make([]models.Signal, 0, len(s.signals))
	for i := len(s.signals) - 1; i >= 0; i-- {
		sig := s.signals[i]
		if len(want) > 0 {
			if _, ok := want[sig.AssetSymbol]; !ok {
				continue
			}
		}
		matched = append(matched, sig)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	return page(matched, q.Offset, q.Limit), int64(len(matched)), nil
}

func (s *MemorySignalStore) Close() error { return nil }

type ruleKey struct {
	userID string
	asset  string
}

type MemoryRuleStore struct {
	mu    sync.RWMutex
	rules map[ruleKey]models.AlertRule
}

func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{rules: make(map[ruleKey]models.AlertRule)}
}

func (s *MemoryRuleStore) Get(_ context.Context, userID, asset string) (*models.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[ruleKey{userID, asset}]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &r, nil
}

// List returns the global rule first, then asset rules by symbol.
func (s *MemoryRuleStore) List(_ context.Context, userID string) ([]models.AlertRule, error) {
	s.mu.RLock()
	out := make([]models.AlertRule, 0)
	for k, r := range s.rules {
		if k.userID == userID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sortRules(out)
	return out, nil
}

func (s *MemoryRuleStore) Put(_ context.Context, rule *models.AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[ruleKey{rule.OwnerUserID, rule.AssetSymbol}] = *rule
	return nil
}

func (s *MemoryRuleStore) Delete(_ context.Context, userID, asset string) error {
	if asset == "" {
		return models.ErrGlobalRuleUndeletable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := ruleKey{userID, asset}
	if _, ok := s.rules[k]; !ok {
		return models.ErrNotFound
	}
	delete(s.rules, k)
	return nil
}

func sortRules(rules []models.AlertRule) {
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].AssetSymbol < rules[j].AssetSymbol
	})
}

type MemoryNotificationStore struct {
	mu    sync.RWMutex
	byID  map[string]*models.Notification
	order []string // insertion order
}

func NewMemoryNotificationStore() *MemoryNotificationStore {
	return &MemoryNotificationStore{byID: make(map[string]*models.Notification)}
}

func (s *MemoryNotificationStore) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.byID[n.ID] = &cp
	s.order = append(s.order, n.ID)
	return nil
}

func (s *MemoryNotificationStore) Get(_ context.Context, userID, id string) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, err := s.ownedLocked(userID, id)
	if err != nil {
		return nil, err
	}
	cp := *n
	return &cp, nil
}

func (s *MemoryNotificationStore) LatestGroup(_ context.Context, userID, asset string, since time.Time) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		n := s.byID[s.order[i]]
		if n.OwnerUserID != userID || n.AssetSymbol != asset {
			continue
		}
		if n.SentAt.Before(since) {
			return "", false, nil
		}
		return n.GroupID, true, nil
	}
	return "", false, nil
}

func (s *MemoryNotificationStore) MarkRead(_ context.Context, userID, id string, at time.Time) (*models.Notification, error) {
	return s.update(userID, id, func(n *models.Notification) { n.MarkRead(at) })
}

func (s *MemoryNotificationStore) Archive(_ context.Context, userID, id string, at time.Time) (*models.Notification, error) {
	return s.update(userID, id, func(n *models.Notification) { n.Archive(at) })
}

func (s *MemoryNotificationStore) MarkAllRead(_ context.Context, userID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.byID {
		if n.OwnerUserID == userID && n.MarkRead(at) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryNotificationStore) List(_ context.Context, userID string, q models.NotificationQuery) (*models.NotificationPage, error) {
	s.mu.RLock()
	var (
		items  []models.Notification
		unread int64
	)
	for i := len(s.order) - 1; i >= 0; i-- {
		n := s.byID[s.order[i]]
		if n.OwnerUserID != userID {
			continue
		}
		if n.State == models.StateUnread {
			unread++
		}
		if n.State == models.StateArchived && !q.IncludeArchived {
			continue
		}
		items = append(items, *n)
	}
	s.mu.RUnlock()

	return &models.NotificationPage{
		Items:  page(items, q.Offset, q.Limit),
		Total:  int64(len(items)),
		Unread: unread,
	}, nil
}

func (s *MemoryNotificationStore) update(userID, id string, fn func(*models.Notification)) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.ownedLocked(userID, id)
	if err != nil {
		return nil, err
	}
	fn(n)
	cp := *n
	return &cp, nil
}

func (s *MemoryNotificationStore) ownedLocked(userID, id string) (*models.Notification, error) {
	n, ok := s.byID[id]
	if !ok || n.OwnerUserID != userID {
		return nil, models.ErrNotFound
	}
	return n, nil
}

type MemoryWatchlistStore struct {
	mu     sync.RWMutex
	byUser map[string]map[string]struct{}
}

func NewMemoryWatchlistStore() *MemoryWatchlistStore {
	return &MemoryWatchlistStore{byUser: make(map[string]map[string]struct{})}
}

func (s *MemoryWatchlistStore) Watchers(_ context.Context, asset string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0)
	for user, assets := range s.byUser {
		if _, ok := assets[asset]; ok {
			out = append(out, user)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryWatchlistStore) List(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byUser[userID]))
	for a := range s.byUser[userID] {
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryWatchlistStore) Add(_ context.Context, userID, asset string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byUser[userID] == nil {
		s.byUser[userID] = make(map[string]struct{})
	}
	s.byUser[userID][asset] = struct{}{}
	return nil
}

func (s *MemoryWatchlistStore) Remove(_ context.Context, userID, asset string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUser[userID][asset]; !ok {
		return models.ErrNotFound
	}
	delete(s.byUser[userID], asset)
	return nil
}

type MemoryContactStore struct {
	mu       sync.RWMutex
	contacts map[string]models.Contact
}

func NewMemoryContactStore() *MemoryContactStore {
	return &MemoryContactStore{contacts: make(map[string]models.Contact)}
}

func (s *MemoryContactStore) Get(_ context.Context, userID string) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &c, nil
}

func (s *MemoryContactStore) Put(_ context.Context, c *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[c.UserID] = *c
	return nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

var (
	_ domrepo.SignalStore       = (*MemorySignalStore)(nil)
	_ domrepo.RuleStore         = (*MemoryRuleStore)(nil)
	_ domrepo.NotificationStore = (*MemoryNotificationStore)(nil)
	_ domrepo.WatchlistStore    = (*MemoryWatchlistStore)(nil)
	_ domrepo.ContactStore      = (*MemoryContactStore)(nil)
)
