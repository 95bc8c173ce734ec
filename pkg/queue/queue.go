package queue

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

type QueueConfig struct {
	Workers        int           // concurrent consumers
	RetryLimit     int           // retries before the DLQ
	RetryDelay     time.Duration // delay before a failed message is retried
	PollInterval   time.Duration // how often due retries are moved back
	ProcessTimeout time.Duration // per-message handler deadline
	EnableDLQ      bool
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
	LastError string          `json:"last_error,omitempty"`
}

// ParsePayload decodes a job payload into T.
func ParsePayload[T any](payload json.RawMessage) (*T, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &out, nil
}
