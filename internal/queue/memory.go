package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue implements Queue using a buffered channel
type MemoryQueue struct {
	items     chan any
	done      chan struct{}
	closeOnce sync.Once
	config    *Config
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(config *Config) *MemoryQueue {
	if config == nil {
		config = DefaultConfig("memory")
	}

	return &MemoryQueue{
		items:  make(chan any, config.BatchSize*10), // Buffer for 10 batches
		done:   make(chan struct{}),
		config: config,
	}
}

func (q *MemoryQueue) isClosed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// Enqueue adds an item to the queue, waiting for room if the buffer is full
func (q *MemoryQueue) Enqueue(ctx context.Context, item any) error {
	if q.isClosed() {
		return ErrQueueClosed
	}

	select {
	case q.items <- item:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryEnqueue adds an item without waiting
func (q *MemoryQueue) TryEnqueue(item any) error {
	if q.isClosed() {
		return ErrQueueClosed
	}

	select {
	case q.items <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue retrieves items from the queue
func (q *MemoryQueue) Dequeue(ctx context.Context, maxItems int) ([]any, error) {
	var items []any

	// Block until we get at least one item
	select {
	case item := <-q.items:
		items = append(items, item)
	case <-q.done:
		return q.drain(maxItems)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return q.fill(items, maxItems), nil
}

// DequeueWithTimeout retrieves items with a timeout
func (q *MemoryQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]any, error) {
	items := []any{}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// Try to get first item with timeout
	select {
	case item := <-q.items:
		items = append(items, item)
	case <-q.done:
		return q.drain(maxItems)
	case <-timer.C:
		return items, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return q.fill(items, maxItems), nil
}

// fill tops up items without blocking
func (q *MemoryQueue) fill(items []any, maxItems int) []any {
	for len(items) < maxItems {
		select {
		case item := <-q.items:
			items = append(items, item)
		default:
			return items
		}
	}
	return items
}

// drain hands out whatever was buffered before Close, then reports closure
func (q *MemoryQueue) drain(maxItems int) ([]any, error) {
	items := q.fill(nil, maxItems)
	if len(items) == 0 {
		return nil, ErrQueueClosed
	}
	return items, nil
}

// Length returns the current queue length
func (q *MemoryQueue) Length(ctx context.Context) (int, error) {
	return len(q.items), nil
}

// Close stops accepting items. Buffered items can still be dequeued.
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}

// MemoryDeadLetterQueue implements DeadLetterQueue using in-memory storage
type MemoryDeadLetterQueue struct {
	items  []DeadLetterItem
	mu     sync.RWMutex
	closed bool
}

// NewMemoryDeadLetterQueue creates a new in-memory dead letter queue
func NewMemoryDeadLetterQueue() *MemoryDeadLetterQueue {
	return &MemoryDeadLetterQueue{
		items: make([]DeadLetterItem, 0),
	}
}

// Add adds a failed item to the dead letter queue
func (q *MemoryDeadLetterQueue) Add(ctx context.Context, item any, err error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, newDeadLetterItem(item, err))
	return nil
}

// List retrieves items from the dead letter queue
func (q *MemoryDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	if maxItems <= 0 || maxItems > len(q.items) {
		maxItems = len(q.items)
	}

	result := make([]DeadLetterItem, maxItems)
	copy(result, q.items[:maxItems])
	return result, nil
}

// Remove removes an item from the dead letter queue
func (q *MemoryDeadLetterQueue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}

	return ErrItemNotFound
}

// Close shuts down the dead letter queue
func (q *MemoryDeadLetterQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
	return nil
}

func newDeadLetterItem(item any, err error) DeadLetterItem {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return DeadLetterItem{
		ID:        uuid.NewString(),
		Item:      item,
		Error:     msg,
		Timestamp: time.Now(),
	}
}
