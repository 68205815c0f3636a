package logging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"travelmate/internal/queue"
	"travelmate/internal/utils"
)

const shutdownFlushTimeout = 10 * time.Second

// ShipperStats counts what the shipper has done since it started
type ShipperStats struct {
	Batches      int64 `json:"batches"`
	Shipped      int64 `json:"shipped"`
	DeadLettered int64 `json:"dead_lettered"`
}

// Shipper drains the audit queue in batches and hands them to a BatchWriter.
// Batches that keep failing are moved to the dead letter queue.
type Shipper struct {
	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	writer      BatchWriter
	config      *queue.Config
	logger      *utils.Logger
	stopChan    chan struct{}
	stoppedChan chan struct{}
	startOnce   sync.Once
	stopOnce    sync.Once
	started     atomic.Bool

	batches      atomic.Int64
	shipped      atomic.Int64
	deadLettered atomic.Int64
}

// NewShipper creates a shipper. A nil config uses queue.DefaultConfig("audit").
func NewShipper(q queue.Queue, dlq queue.DeadLetterQueue, writer BatchWriter, config *queue.Config) *Shipper {
	if config == nil {
		config = queue.DefaultConfig("audit")
	}

	return &Shipper{
		queue:       q,
		dlq:         dlq,
		writer:      writer,
		config:      config,
		logger:      utils.NewLogger("audit-shipper"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine. Dead letters from a previous run are
// re-enqueued first.
func (s *Shipper) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.started.Store(true)
		if n, err := s.RetryDeadLetters(ctx); err != nil {
			s.logger.Warn("Failed to replay dead letters", "error", err)
		} else if n > 0 {
			s.logger.Info("Replayed dead letters", "count", n)
		}
		go s.run(ctx)
	})
}

// Stop signals the worker, waits for it to flush the queue and exit
func (s *Shipper) Stop() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	if s.started.Load() {
		<-s.stoppedChan
	}
	return nil
}

// Stats returns the current counters
func (s *Shipper) Stats() ShipperStats {
	return ShipperStats{
		Batches:      s.batches.Load(),
		Shipped:      s.shipped.Load(),
		DeadLettered: s.deadLettered.Load(),
	}
}

func (s *Shipper) run(ctx context.Context) {
	defer close(s.stoppedChan)

	for {
		select {
		case <-s.stopChan:
			s.logger.Info("Audit shipper stopping")
			s.flush()
			return
		case <-ctx.Done():
			s.logger.Info("Audit shipper context cancelled")
			s.flush()
			return
		default:
		}

		items, err := s.queue.DequeueWithTimeout(ctx, s.config.BatchSize, s.config.BatchTimeout)
		if errors.Is(err, queue.ErrQueueClosed) {
			s.logger.Info("Audit queue closed")
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			s.logger.Error("Failed to dequeue audit records", "error", err)
			s.sleep(ctx, time.Second)
			continue
		}

		s.processBatch(ctx, items)
	}
}

// flush ships whatever is still queued, bounded by shutdownFlushTimeout
func (s *Shipper) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer cancel()

	for {
		n, err := s.queue.Length(ctx)
		if err != nil || n == 0 {
			return
		}
		items, err := s.queue.Dequeue(ctx, s.config.BatchSize)
		if err != nil {
			return
		}
		s.processBatch(ctx, items)
	}
}

// processBatch decodes a batch and writes it with retries
func (s *Shipper) processBatch(ctx context.Context, items []any) {
	if len(items) == 0 {
		return
	}

	records := make([]*ResolutionRecord, 0, len(items))
	for _, item := range items {
		rec, err := queue.Decode[ResolutionRecord](item)
		if err != nil {
			s.logger.Error("Failed to decode audit record", "error", err)
			s.deadLetter(ctx, item, err)
			continue
		}
		records = append(records, &rec)
	}
	if len(records) == 0 {
		return
	}

	s.logger.Debug("Shipping audit batch", "count", len(records))
	s.batches.Add(1)

	key, err := s.writeWithRetry(ctx, records)
	if err != nil {
		for _, rec := range records {
			s.deadLetter(ctx, rec, err)
		}
		return
	}

	s.shipped.Add(int64(len(records)))
	s.logger.Debug("Audit batch shipped", "key", key, "count", len(records))
}

func (s *Shipper) writeWithRetry(ctx context.Context, records []*ResolutionRecord) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := s.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			s.logger.Debug("Retrying audit batch", "attempt", attempt, "backoff", backoff)
			if !s.sleep(ctx, backoff) {
				break
			}
		}

		key, err := s.writer.WriteBatch(ctx, records)
		if err == nil {
			return key, nil
		}
		lastErr = err
		s.logger.Error("Failed to write audit batch", "attempt", attempt, "error", err)
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return "", fmt.Errorf("%w: %v", queue.ErrMaxRetriesExceeded, lastErr)
}

func (s *Shipper) deadLetter(ctx context.Context, item any, cause error) {
	if s.dlq == nil {
		return
	}
	// The batch context may already be cancelled during shutdown
	addCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.dlq.Add(addCtx, item, cause); err != nil {
		s.logger.Error("Failed to add to dead letter queue", "error", err)
		return
	}
	s.deadLettered.Add(1)
	s.logger.Warn("Audit record moved to DLQ", "error", cause)
}

// sleep waits for d; it returns false when interrupted by ctx
func (s *Shipper) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// GetDeadLetterItems returns items from the dead letter queue
func (s *Shipper) GetDeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	if s.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return s.dlq.List(ctx, maxItems)
}

// RetryDeadLetters re-enqueues every dead letter and removes it from the DLQ.
// Returns how many items were moved.
func (s *Shipper) RetryDeadLetters(ctx context.Context) (int, error) {
	if s.dlq == nil {
		return 0, nil
	}

	items, err := s.dlq.List(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list dead letter items: %w", err)
	}

	moved := 0
	for _, dlItem := range items {
		if err := s.queue.Enqueue(ctx, dlItem.Item); err != nil {
			return moved, fmt.Errorf("failed to re-enqueue item: %w", err)
		}
		if err := s.dlq.Remove(ctx, dlItem.ID); err != nil {
			return moved, fmt.Errorf("failed to remove from DLQ: %w", err)
		}
		moved++
	}
	return moved, nil
}
