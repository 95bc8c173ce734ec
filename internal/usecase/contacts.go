package usecase

import (
	"context"
	"time"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
)

// ContactService manages where a user's email and Telegram deliveries go.
type ContactService struct {
	store   domrepo.ContactStore
	timeout time.Duration
	now     func() time.Time
}

func NewContactService(store domrepo.ContactStore, timeout time.Duration) *ContactService {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ContactService{store: store, timeout: timeout, now: time.Now}
}

func (s *ContactService) Get(ctx context.Context, userID string) (*models.Contact, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Get(ctx, userID)
}

func (s *ContactService) Put(ctx context.Context, c models.Contact) (*models.Contact, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	c.UpdatedAt = s.now().UTC()
	if err := s.store.Put(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
