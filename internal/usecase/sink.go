package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/internal/domain/service"
	"CoinPulse/pkg/logger"
)

// Sink persists notifications and hands them to live subscribers, the event
// stream and the delivery channels. Only the persist step can fail a dispatch.
type Sink struct {
	store       domrepo.NotificationStore
	deliverer   service.Deliverer
	broadcaster service.Broadcaster
	events      domrepo.EventPublisher
	metrics     domrepo.Metrics
	log         *logger.Logger

	groupWindow time.Duration
	timeout     time.Duration
	now         func() time.Time
	newID       func() string
}

type SinkOption func(*Sink)

func WithBroadcaster(b service.Broadcaster) SinkOption {
	return func(s *Sink) { s.broadcaster = b }
}

func WithEventPublisher(p domrepo.EventPublisher) SinkOption {
	return func(s *Sink) { s.events = p }
}

func WithGroupWindow(d time.Duration) SinkOption {
	return func(s *Sink) {
		if d > 0 {
			s.groupWindow = d
		}
	}
}

func WithStoreTimeout(d time.Duration) SinkOption {
	return func(s *Sink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewSink(store domrepo.NotificationStore, deliverer service.Deliverer, metrics domrepo.Metrics, log *logger.Logger, opts ...SinkOption) *Sink {
	s := &Sink{
		store:       store,
		deliverer:   deliverer,
		metrics:     metrics,
		log:         log,
		groupWindow: 5 * time.Minute,
		timeout:     2 * time.Second,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch creates an unread notification for the signal and fans it out.
func (s *Sink) Dispatch(ctx context.Context, userID string, sig models.Signal, rule models.AlertRule) (*models.Notification, error) {
	now := s.now().UTC()

	n := &models.Notification{
		ID:          s.newID(),
		OwnerUserID: userID,
		SignalID:    sig.ID,
		AssetSymbol: sig.AssetSymbol,
		Kind:        sig.Type,
		Title:       notificationTitle(sig),
		Message:     sig.Description,
		Priority:    models.PriorityForStrength(sig.Strength),
		State:       models.StateUnread,
		SentAt:      now,
		GroupID:     s.groupFor(ctx, userID, sig.AssetSymbol, now),
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.store.Create(sctx, n)
	cancel()
	if err != nil {
		s.metrics.RecordError("notification_persist")
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(userID, n)
	}
	if s.events != nil {
		if err := s.events.PublishNotification(ctx, n); err != nil {
			s.metrics.RecordError("notification_publish")
			s.log.Warn("publish notification event failed", logger.String("notification_id", n.ID), logger.Error(err))
		}
	}

	for _, err := range s.deliverer.Deliver(ctx, n, rule.Channels) {
		var chErr *models.DeliveryChannelError
		channel := "unknown"
		if errors.As(err, &chErr) {
			channel = chErr.Channel
		}
		s.log.Warn("notification delivery failed",
			logger.String("notification_id", n.ID),
			logger.String("user_id", userID),
			logger.String("channel", channel),
			logger.Error(err))
	}

	return n, nil
}

// groupFor reuses the latest group of (user, asset) inside the group window.
func (s *Sink) groupFor(ctx context.Context, userID, asset string, now time.Time) string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	group, ok, err := s.store.LatestGroup(ctx, userID, asset, now.Add(-s.groupWindow))
	if err != nil {
		s.log.Warn("lookup notification group failed", logger.String("user_id", userID), logger.Error(err))
		return s.newID()
	}
	if ok && group != "" {
		return group
	}
	return s.newID()
}

func notificationTitle(sig models.Signal) string {
	kind := string(sig.Type)
	if kind != "" {
		kind = strings.ToUpper(kind[:1]) + kind[1:]
	}
	return fmt.Sprintf("%s %s alert", sig.AssetSymbol, kind)
}

func (s *Sink) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.MarkRead(ctx, userID, id, s.now().UTC())
}

// MarkAllRead returns how many notifications moved from unread to read.
func (s *Sink) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.MarkAllRead(ctx, userID, s.now().UTC())
}

func (s *Sink) Archive(ctx context.Context, userID, id string) (*models.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Archive(ctx, userID, id, s.now().UTC())
}

func (s *Sink) List(ctx context.Context, userID string, q models.NotificationQuery) (*models.NotificationPage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.List(ctx, userID, q)
}
