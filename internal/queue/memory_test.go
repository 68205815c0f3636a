package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditItem struct {
	RequestID string `json:"request_id"`
	Source    string `json:"source"`
}

func TestMemoryQueue_EnqueueDequeue(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, &auditItem{RequestID: "req-1", Source: "local"}))

	items, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)

	rec, err := Decode[auditItem](items[0])
	require.NoError(t, err)
	assert.Equal(t, "req-1", rec.RequestID)
}

func TestMemoryQueue_MultipleBatch(t *testing.T) {
	config := DefaultConfig("test")
	config.BatchSize = 5
	q := NewMemoryQueue(config)
	defer q.Close()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(ctx, i))
	}

	items, err := q.Dequeue(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.Equal(t, 0, items[0])

	items, err = q.Dequeue(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, items, 5)
}

func TestMemoryQueue_DequeueWithTimeout(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()

	start := time.Now()
	items, err := q.DequeueWithTimeout(ctx, 1, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	require.NoError(t, q.Enqueue(ctx, "test"))
	items, err = q.DequeueWithTimeout(ctx, 1, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestMemoryQueue_Length(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, i))
	}

	n, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMemoryQueue_TryEnqueueFull(t *testing.T) {
	config := DefaultConfig("test")
	config.BatchSize = 1 // buffer of 10
	q := NewMemoryQueue(config)
	defer q.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, q.TryEnqueue(i))
	}
	assert.ErrorIs(t, q.TryEnqueue(10), ErrQueueFull)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(ctx, 10), context.DeadlineExceeded)
}

func TestMemoryQueue_Concurrent(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()
	const producers, perProducer = 10, 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, q.Enqueue(ctx, i))
			}
		}()
	}

	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for received < producers*perProducer {
			items, err := q.DequeueWithTimeout(ctx, 20, time.Second)
			if err != nil {
				return
			}
			received += len(items)
		}
	}()

	wg.Wait()
	<-done
	assert.Equal(t, producers*perProducer, received)
}

func TestMemoryQueue_ClosedQueue(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "buffered"))
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Enqueue(ctx, "late"), ErrQueueClosed)

	// Buffered items survive Close so the shipper can drain them
	items, err := q.DequeueWithTimeout(ctx, 10, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []any{"buffered"}, items)

	_, err = q.Dequeue(ctx, 10)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestMemoryQueue_CloseUnblocksDequeue(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background(), 1)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after Close")
	}
}

func TestMemoryDeadLetterQueue(t *testing.T) {
	dlq := NewMemoryDeadLetterQueue()
	ctx := context.Background()

	require.NoError(t, dlq.Add(ctx, auditItem{RequestID: "a"}, errors.New("s3 down")))
	require.NoError(t, dlq.Add(ctx, auditItem{RequestID: "b"}, ErrMaxRetriesExceeded))

	items, err := dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "s3 down", items[0].Error)
	assert.NotEqual(t, items[0].ID, items[1].ID)

	limited, err := dlq.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, dlq.Remove(ctx, items[0].ID))
	assert.ErrorIs(t, dlq.Remove(ctx, items[0].ID), ErrItemNotFound)

	items, _ = dlq.List(ctx, 0)
	assert.Len(t, items, 1)

	require.NoError(t, dlq.Close())
	assert.ErrorIs(t, dlq.Add(ctx, "x", nil), ErrQueueClosed)
	_, err = dlq.List(ctx, 0)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDecode(t *testing.T) {
	want := auditItem{RequestID: "r", Source: "remote"}

	tests := []struct {
		name string
		item any
	}{
		{"value", want},
		{"pointer", &want},
		{"raw json", []byte(`{"request_id":"r","source":"remote"}`)},
		{"generic map", map[string]any{"request_id": "r", "source": "remote"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode[auditItem](tt.item)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err := Decode[auditItem]((*auditItem)(nil))
	assert.Error(t, err)
}

func TestNew_Memory(t *testing.T) {
	q, dlq, err := New(DefaultConfig("audit"))
	require.NoError(t, err)
	assert.IsType(t, &MemoryQueue{}, q)
	assert.IsType(t, &MemoryDeadLetterQueue{}, dlq)

	_, _, err = New(nil)
	assert.Error(t, err)
}
