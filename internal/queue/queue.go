// Package queue provides the buffered hand-off between the chat path and the
// audit shipper, with two interchangeable backends:
//
// 1. Memory Queue (in-memory, channel-based):
//   - No persistence, records are lost on restart
//   - Zero external dependencies
//   - Default for single-instance deployments
//
// 2. Redis Queue (Redis list-based):
//   - Survives restarts of the chat server
//   - Lets several chat servers feed one shipper
//
// Architecture:
//
//	┌──────────────┐
//	│   Resolver   │  one ResolutionRecord per reply
//	└──────┬───────┘
//	       ▼
//	┌──────────────┐
//	│ Audit Queue  │  memory or redis
//	└──────┬───────┘
//	       ▼
//	┌──────────────┐
//	│   Shipper    │  batches up to BatchSize or BatchTimeout
//	└──────┬───────┘
//	       │ (retry with backoff)
//	       ├──────────────┐
//	       ▼              ▼
//	 ┌──────────┐     ┌─────┐
//	 │ S3 JSONL │     │ DLQ │
//	 └──────────┘     └─────┘
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Queue defines the interface for message queuing
type Queue interface {
	// Enqueue adds an item to the queue
	Enqueue(ctx context.Context, item any) error

	// Dequeue retrieves items from the queue (up to maxItems)
	// Blocks until at least one item is available or context is cancelled
	Dequeue(ctx context.Context, maxItems int) ([]any, error)

	// DequeueWithTimeout retrieves items with a timeout
	// Returns items if available before timeout, empty slice otherwise
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]any, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully
	Close() error
}

// DeadLetterQueue defines the interface for handling failed items
type DeadLetterQueue interface {
	// Add adds a failed item to the dead letter queue with error info
	Add(ctx context.Context, item any, err error) error

	// List retrieves items from the dead letter queue
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	// Remove removes an item from the dead letter queue
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue
	Close() error
}

// DeadLetterItem represents an item in the dead letter queue
type DeadLetterItem struct {
	ID        string    `json:"id"`
	Item      any       `json:"item"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	Retries   int       `json:"retries"`
}

// Config holds queue configuration
type Config struct {
	// BatchSize is the maximum number of items to process in a batch
	BatchSize int

	// BatchTimeout is how long to wait before processing a partial batch
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries
	RetryBackoff time.Duration

	// UseRedis indicates whether to use Redis or in-memory queue
	UseRedis bool

	// RedisAddr is the Redis server address (if UseRedis is true)
	RedisAddr string

	// RedisPassword is the Redis password (if UseRedis is true)
	RedisPassword string

	// RedisDB is the Redis database number (if UseRedis is true)
	RedisDB int

	// QueueName is the name/key for the queue
	QueueName string
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		UseRedis:     false,
		QueueName:    queueName,
	}
}

// New creates the queue and dead letter queue selected by config.UseRedis
func New(config *Config) (Queue, DeadLetterQueue, error) {
	if config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	if !config.UseRedis {
		return NewMemoryQueue(config), NewMemoryDeadLetterQueue(), nil
	}

	q, err := NewRedisQueue(config)
	if err != nil {
		return nil, nil, err
	}
	dlq, err := NewRedisDeadLetterQueue(config)
	if err != nil {
		q.Close()
		return nil, nil, err
	}
	return q, dlq, nil
}

// Decode converts a dequeued item back into T. Memory queues return the
// enqueued value itself, Redis queues return json.RawMessage.
func Decode[T any](item any) (T, error) {
	var out T
	switch v := item.(type) {
	case T:
		return v, nil
	case *T:
		if v == nil {
			return out, fmt.Errorf("nil item")
		}
		return *v, nil
	case json.RawMessage:
		err := json.Unmarshal(v, &out)
		return out, err
	case []byte:
		err := json.Unmarshal(v, &out)
		return out, err
	default:
		data, err := json.Marshal(item)
		if err != nil {
			return out, fmt.Errorf("failed to marshal item: %w", err)
		}
		err = json.Unmarshal(data, &out)
		return out, err
	}
}
