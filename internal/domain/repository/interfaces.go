package repository

import (
	"context"
	"time"

	"CoinPulse/internal/domain/models"
)

// SignalStore is the append-only signal log.
type SignalStore interface {
	Append(ctx context.Context, s *models.Signal) error
	// Query returns signals newest first along with the total match count.
	Query(ctx context.Context, q models.SignalQuery) ([]models.Signal, int64, error)
	Close() error
}

// RuleStore keeps alert rules. An empty asset addresses the global rule.
// Missing rules are reported as models.ErrNotFound.
type RuleStore interface {
	Get(ctx context.Context, userID, asset string) (*models.AlertRule, error)
	List(ctx context.Context, userID string) ([]models.AlertRule, error)
	Put(ctx context.Context, rule *models.AlertRule) error
	Delete(ctx context.Context, userID, asset string) error
}

// NotificationStore persists notifications. Lookups scoped to a user never
// see another user's rows; those surface as models.ErrNotFound.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	Get(ctx context.Context, userID, id string) (*models.Notification, error)
	// LatestGroup returns the group of the newest notification for (user, asset)
	// sent at or after since.
	LatestGroup(ctx context.Context, userID, asset string, since time.Time) (string, bool, error)
	MarkRead(ctx context.Context, userID, id string, at time.Time) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
	Archive(ctx context.Context, userID, id string, at time.Time) (*models.Notification, error)
	List(ctx context.Context, userID string, q models.NotificationQuery) (*models.NotificationPage, error)
}

// WindowStore is the keyed arena behind the throttler.
type WindowStore interface {
	// Get returns nil, nil when the key has no window.
	Get(ctx context.Context, key models.WindowKey) (*models.DispatchWindow, error)
	// CompareAndSwap stores next only if the current version equals
	// expected (0 meaning absent) and reports whether it did.
	CompareAndSwap(ctx context.Context, key models.WindowKey, expected int64, next models.DispatchWindow) (bool, error)
}

type WatchlistStore interface {
	Watchers(ctx context.Context, asset string) ([]string, error)
	List(ctx context.Context, userID string) ([]string, error)
	Add(ctx context.Context, userID, asset string) error
	Remove(ctx context.Context, userID, asset string) error
}

// ContactStore keeps per-user delivery addresses.
type ContactStore interface {
	Get(ctx context.Context, userID string) (*models.Contact, error)
	Put(ctx context.Context, c *models.Contact) error
}

// EventPublisher fans domain events out to other services.
type EventPublisher interface {
	PublishSignal(ctx context.Context, s *models.Signal) error
	PublishNotification(ctx context.Context, n *models.Notification) error
	Close() error
}

type Metrics interface {
	RecordObservation(kind, result string)
	RecordSignal(kind string)
	RecordDecision(kind, reason string)
	RecordThrottle(result string)
	RecordDelivery(channel, result string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
