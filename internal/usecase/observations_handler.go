package usecase

import (
	"context"
	"time"

	json "github.com/goccy/go-json"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	pkgkafka "CoinPulse/pkg/kafka"
	"CoinPulse/pkg/logger"
)

// ObservationsHandler consumes observation envelopes {kind, payload} from Kafka.
// Malformed messages are dropped; pipeline failures are returned so the
// consumer retries and eventually dead-letters them.
type ObservationsHandler struct {
	topic   string
	ingest  Ingestor
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewObservationsHandler(topic string, ingest Ingestor, metrics domrepo.Metrics, log *logger.Logger) *ObservationsHandler {
	return &ObservationsHandler{topic: topic, ingest: ingest, metrics: metrics, log: log}
}

func (h *ObservationsHandler) Topic() string { return h.topic }

func (h *ObservationsHandler) Handle(ctx context.Context, b []byte) error {
	var env models.ObservationEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		h.drop("", &models.MalformedInputError{Reason: "envelope: " + err.Error()})
		return nil
	}

	obs, err := Normalize(env.Payload, env.Kind)
	if err != nil {
		h.drop(env.Kind, err)
		return nil
	}
	if !obs.OccurredAt.IsZero() {
		h.metrics.RecordLatency("ingest_e2e", time.Since(obs.OccurredAt).Seconds())
	}

	if _, err := h.ingest.Process(ctx, obs); err != nil {
		if models.IsMalformed(err) {
			h.drop(env.Kind, err)
			return nil
		}
		return err
	}
	return nil
}

func (h *ObservationsHandler) drop(kind models.Kind, err error) {
	h.metrics.RecordObservation(string(kind), "malformed")
	h.log.Warn("dropping malformed observation",
		logger.String("topic", h.topic),
		logger.String("kind", string(kind)),
		logger.Error(err))
}

var _ pkgkafka.MessageHandler = (*ObservationsHandler)(nil)
