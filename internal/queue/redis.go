package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue using Redis lists
type RedisQueue struct {
	client    *redis.Client
	config    *Config
	qKey      string
	ownClient bool
}

func dialRedis(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisQueue creates a new Redis-backed queue with its own connection
func NewRedisQueue(config *Config) (*RedisQueue, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	client, err := dialRedis(config)
	if err != nil {
		return nil, err
	}

	q := NewRedisQueueFromClient(client, config)
	q.ownClient = true
	return q, nil
}

// NewRedisQueueFromClient creates a queue on an existing connection.
// Close leaves a shared client open.
func NewRedisQueueFromClient(client *redis.Client, config *Config) *RedisQueue {
	if config == nil {
		config = DefaultConfig("redis")
	}
	return &RedisQueue{
		client: client,
		config: config,
		qKey:   fmt.Sprintf("queue:%s", config.QueueName),
	}
}

// Enqueue adds an item to the queue
func (q *RedisQueue) Enqueue(ctx context.Context, item any) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	if err := q.client.RPush(ctx, q.qKey, data).Err(); err != nil {
		return fmt.Errorf("failed to push to Redis: %w", err)
	}

	return nil
}

// Dequeue retrieves items from the queue
func (q *RedisQueue) Dequeue(ctx context.Context, maxItems int) ([]any, error) {
	// Block until at least one item is available
	result, err := q.client.BLPop(ctx, 0, q.qKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to pop from Redis: %w", err)
	}

	// result[0] is the key, result[1] is the value
	return q.fill(ctx, []any{json.RawMessage(result[1])}, maxItems), nil
}

// DequeueWithTimeout retrieves items with a timeout
func (q *RedisQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]any, error) {
	// Block until item is available or timeout
	result, err := q.client.BLPop(ctx, timeout, q.qKey).Result()
	if errors.Is(err, redis.Nil) {
		return []any{}, nil // Timeout, no items
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop from Redis: %w", err)
	}

	return q.fill(ctx, []any{json.RawMessage(result[1])}, maxItems), nil
}

// fill pops more items without blocking
func (q *RedisQueue) fill(ctx context.Context, items []any, maxItems int) []any {
	for len(items) < maxItems {
		result, err := q.client.LPop(ctx, q.qKey).Result()
		if err != nil {
			// redis.Nil means empty; other errors return what we have so far
			break
		}
		items = append(items, json.RawMessage(result))
	}
	return items
}

// Length returns the current queue length
func (q *RedisQueue) Length(ctx context.Context) (int, error) {
	length, err := q.client.LLen(ctx, q.qKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return int(length), nil
}

// Close shuts down the queue
func (q *RedisQueue) Close() error {
	if !q.ownClient {
		return nil
	}
	return q.client.Close()
}

// RedisDeadLetterQueue implements DeadLetterQueue using Redis hashes
type RedisDeadLetterQueue struct {
	client    *redis.Client
	dlKey     string
	ownClient bool
}

// NewRedisDeadLetterQueue creates a new Redis-backed dead letter queue
func NewRedisDeadLetterQueue(config *Config) (*RedisDeadLetterQueue, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	client, err := dialRedis(config)
	if err != nil {
		return nil, err
	}

	q := NewRedisDeadLetterQueueFromClient(client, config)
	q.ownClient = true
	return q, nil
}

// NewRedisDeadLetterQueueFromClient creates a dead letter queue on an existing connection
func NewRedisDeadLetterQueueFromClient(client *redis.Client, config *Config) *RedisDeadLetterQueue {
	if config == nil {
		config = DefaultConfig("redis")
	}
	return &RedisDeadLetterQueue{
		client: client,
		dlKey:  fmt.Sprintf("dlq:%s", config.QueueName),
	}
}

// Add adds a failed item to the dead letter queue
func (q *RedisDeadLetterQueue) Add(ctx context.Context, item any, err error) error {
	dlItem := newDeadLetterItem(item, err)

	data, marshalErr := json.Marshal(dlItem)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal dead letter item: %w", marshalErr)
	}

	if err := q.client.HSet(ctx, q.dlKey, dlItem.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to add to dead letter queue: %w", err)
	}

	return nil
}

// List retrieves items from the dead letter queue
func (q *RedisDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	results, err := q.client.HGetAll(ctx, q.dlKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letter items: %w", err)
	}

	items := make([]DeadLetterItem, 0, len(results))
	for _, data := range results {
		var dlItem DeadLetterItem
		if err := json.Unmarshal([]byte(data), &dlItem); err != nil {
			continue // Skip malformed items
		}
		items = append(items, dlItem)

		if maxItems > 0 && len(items) >= maxItems {
			break
		}
	}

	return items, nil
}

// Remove removes an item from the dead letter queue
func (q *RedisDeadLetterQueue) Remove(ctx context.Context, id string) error {
	n, err := q.client.HDel(ctx, q.dlKey, id).Result()
	if err != nil {
		return fmt.Errorf("failed to remove from dead letter queue: %w", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

// Close shuts down the dead letter queue
func (q *RedisDeadLetterQueue) Close() error {
	if !q.ownClient {
		return nil
	}
	return q.client.Close()
}
