package logging

import (
	"context"
	"time"

	"travelmate/internal/queue"
)

// Resolution sources
const (
	SourceRemote  = "remote"
	SourceLocal   = "local"
	SourceDefault = "default"
)

// ResolutionRecord is the audit entry written for every resolved chat message.
// It never carries message text, only sizes.
type ResolutionRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id"`
	SessionID    string    `json:"session_id,omitempty"`
	Enabled      bool      `json:"ai_enabled"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model,omitempty"`
	Source       string    `json:"source"`
	Category     string    `json:"category,omitempty"`
	MessageChars int       `json:"message_chars"`
	ReplyChars   int       `json:"reply_chars"`
	HistoryTurns int       `json:"history_turns"`
	LatencyMs    int64     `json:"latency_ms"`
	Error        string    `json:"error,omitempty"`
}

// Sink receives resolution records from the resolver.
type Sink interface {
	Enqueue(rec *ResolutionRecord) error
	Shutdown(ctx context.Context) error
}

// NoopSink discards records.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Enqueue(rec *ResolutionRecord) error {
	return nil
}

func (s *NoopSink) Shutdown(ctx context.Context) error {
	return nil
}

// QueueSink hands records to the audit queue without waiting. A full queue
// drops the record so the chat path never blocks on auditing.
type QueueSink struct {
	queue   queue.Queue
	timeout time.Duration
	shipper *Shipper
}

// DefaultEnqueueTimeout bounds a single enqueue on a remote queue
const DefaultEnqueueTimeout = 250 * time.Millisecond

// NewQueueSink creates a sink on q. When shipper is non-nil, Shutdown stops it
// before the queue is closed so buffered records are flushed.
func NewQueueSink(q queue.Queue, shipper *Shipper) *QueueSink {
	return &QueueSink{
		queue:   q,
		timeout: DefaultEnqueueTimeout,
		shipper: shipper,
	}
}

// Enqueue adds rec to the queue
func (s *QueueSink) Enqueue(rec *ResolutionRecord) error {
	if rec == nil {
		return nil
	}
	if mq, ok := s.queue.(*queue.MemoryQueue); ok {
		return mq.TryEnqueue(rec)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.queue.Enqueue(ctx, rec)
}

// Shutdown waits for the shipper to flush what is left, then closes the queue
func (s *QueueSink) Shutdown(ctx context.Context) error {
	if s.shipper == nil {
		return s.queue.Close()
	}

	done := make(chan error, 1)
	go func() { done <- s.shipper.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		return s.queue.Close()
	case <-ctx.Done():
		return ctx.Err()
	}
}
