// Package queue hands long-running work, such as model retraining, to
// background workers either in-process or through Redis.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueueService accepts work for a registered job type.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// Job handles every message of one type.
type Job interface {
	Name() string
	Type() string
	// Handle receives the published payload, or its JSON form when the
	// message went through Redis. Decode it with ParsePayload.
	Handle(ctx context.Context, payload interface{}) error
}

// QueueConfig sizes a queue and its retry policy.
type QueueConfig struct {
	Workers    int
	QueueSize  int
	RetryLimit int
	// RetryDelay is the first backoff; it doubles on each further attempt.
	RetryDelay time.Duration
}

// Stats is a snapshot of queue depth.
type Stats struct {
	Pending  int64 `json:"pending"`
	InFlight int64 `json:"in_flight"`
	Retrying int64 `json:"retrying"`
	Dead     int64 `json:"dead"`
}

// Message is one unit of queued work.
type Message struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Payload    any       `json:"payload"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ParsePayload recovers a T from a job payload: a T or *T passes through,
// anything else is round-tripped through JSON.
func ParsePayload[T any](payload interface{}) (*T, error) {
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	}

	var raw []byte
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("payload %T: %w", payload, err)
		}
		raw = b
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("payload %T into %T: %w", payload, out, err)
	}
	return &out, nil
}

// backoff is the wait before retry number attempt (1-based).
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 10 {
		attempt = 10
	}
	return base << (attempt - 1)
}
