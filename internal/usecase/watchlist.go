package usecase

import (
	"context"
	"time"

	domrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/pkg/util"
)

type WatchlistService struct {
	store   domrepo.WatchlistStore
	timeout time.Duration
}

func NewWatchlistService(store domrepo.WatchlistStore, timeout time.Duration) *WatchlistService {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &WatchlistService{store: store, timeout: timeout}
}

func (s *WatchlistService) List(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.List(ctx, userID)
}

// Add is idempotent.
func (s *WatchlistService) Add(ctx context.Context, userID, asset string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Add(ctx, userID, util.NormalizeSymbol(asset))
}

func (s *WatchlistService) Remove(ctx context.Context, userID, asset string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Remove(ctx, userID, util.NormalizeSymbol(asset))
}
