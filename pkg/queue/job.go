package queue

import (
	"context"

	json "github.com/goccy/go-json"
)

// Job handles one message type.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type the job consumes.
	Type() string

	// Handle processes a payload. A returned error schedules a retry.
	Handle(ctx context.Context, payload json.RawMessage) error
}
