package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueueService is the producer-side surface handlers depend on.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// QueueConfig tunes the consumer side of the queue.
type QueueConfig struct {
	Workers    int
	QueueSize  int
	RetryLimit int
	RetryDelay time.Duration
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string
	Type      string
	Payload   interface{}
	Attempts  int
	Timestamp time.Time
}

// ParsePayload converts a dequeued payload back into T. Payloads travel
// through JSON, so a published struct usually arrives as a map or as raw
// JSON depending on the path it took.
func ParsePayload[T any](payload interface{}) (*T, error) {
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		var out T
		if err := json.Unmarshal(p, &out); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &out, nil
	case map[string]interface{}, []interface{}:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		var out T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &out, nil
	default:
		return nil, fmt.Errorf("unsupported payload type: %T", payload)
	}
}
