package service

import (
	"context"

	"CoinPulse/internal/domain/models"
)

// Channel sends a notification over one medium (push, email).
type Channel interface {
	Name() string
	Send(ctx context.Context, userID string, msg models.DeliveryMessage) error
}

// Deliverer routes a persisted notification to the channels a rule enables.
// It returns one error per failed channel.
type Deliverer interface {
	Deliver(ctx context.Context, n *models.Notification, channels models.Channels) []error
}

// Broadcaster pushes notifications to live subscribers.
type Broadcaster interface {
	Broadcast(userID string, n *models.Notification)
}

type PriceFeed interface {
	FetchPrices(ctx context.Context, symbols []string) ([]models.PriceTick, error)
}

type SentimentFeed interface {
	FetchSentiment(ctx context.Context, symbols []string) ([]models.SentimentSample, error)
}

type NarrativeFeed interface {
	FetchNarratives(ctx context.Context, symbols []string) ([]models.NarrativeItem, error)
}
