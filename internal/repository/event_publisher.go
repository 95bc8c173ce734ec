package repository

import (
	"context"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	pkgkafka "CoinPulse/pkg/kafka"
)

// KafkaEventPublisher emits signal and notification events. Signals are
// keyed by asset and notifications by user to keep per-key ordering.
type KafkaEventPublisher struct {
	producer           *pkgkafka.Producer
	signalTopic        string
	notificationsTopic string
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, signalTopic, notificationsTopic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, signalTopic: signalTopic, notificationsTopic: notificationsTopic}
}

func (p *KafkaEventPublisher) PublishSignal(ctx context.Context, s *models.Signal) error {
	return p.producer.PublishBatch(ctx, p.signalTopic, []pkgkafka.Message{{
		Key:     []byte(s.AssetSymbol),
		Value:   s,
		Headers: map[string]string{"event": "signal.created", "kind": string(s.Type)},
	}})
}

func (p *KafkaEventPublisher) PublishNotification(ctx context.Context, n *models.Notification) error {
	return p.producer.PublishBatch(ctx, p.notificationsTopic, []pkgkafka.Message{{
		Key:     []byte(n.OwnerUserID),
		Value:   n,
		Headers: map[string]string{"event": "notification.created", "priority": string(n.Priority)},
	}})
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopEventPublisher is used when Kafka is disabled.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishSignal(context.Context, *models.Signal) error             { return nil }
func (NopEventPublisher) PublishNotification(context.Context, *models.Notification) error { return nil }
func (NopEventPublisher) Close() error                                                    { return nil }

var (
	_ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)
	_ domrepo.EventPublisher = NopEventPublisher{}
)
