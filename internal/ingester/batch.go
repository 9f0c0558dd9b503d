package ingester

import (
	"context"
	"sync"
	"time"
)

// BatchQueue coalesces items into bounded batches: a flush fires when
// maxItems accumulate or maxWait elapses since the first pending item,
// whichever comes first. Multi-producer, single flush goroutine.
//
// A flush error fails the whole batch; the error is retained and surfaced
// by Drain so callers never lose writes silently.
type BatchQueue[T any] struct {
	mu       sync.Mutex
	pending  []T
	timer    *time.Timer
	maxItems int
	maxWait  time.Duration
	flush    func(context.Context, []T) error

	flushMu sync.Mutex // serializes flushes
	lastErr error
}

// NewBatchQueue creates a queue that calls flush with each batch.
func NewBatchQueue[T any](maxItems int, maxWait time.Duration, flush func(context.Context, []T) error) *BatchQueue[T] {
	if maxItems <= 0 {
		maxItems = 800
	}
	if maxWait <= 0 {
		maxWait = 120 * time.Millisecond
	}
	return &BatchQueue[T]{
		maxItems: maxItems,
		maxWait:  maxWait,
		flush:    flush,
	}
}

// Add enqueues an item and returns immediately. The flush happens on the
// queue's own schedule; call Drain to force it and observe errors.
func (q *BatchQueue[T]) Add(item T) {
	q.mu.Lock()
	q.pending = append(q.pending, item)
	n := len(q.pending)
	if n == 1 && q.timer == nil {
		q.timer = time.AfterFunc(q.maxWait, func() { q.flushNow(context.Background()) })
	}
	q.mu.Unlock()

	if n >= q.maxItems {
		q.flushNow(context.Background())
	}
}

// take swaps out the pending batch under the mutex.
func (q *BatchQueue[T]) take() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	batch := q.pending
	q.pending = nil
	return batch
}

func (q *BatchQueue[T]) flushNow(ctx context.Context) {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	batch := q.take()
	if len(batch) == 0 {
		return
	}
	if err := q.flush(ctx, batch); err != nil {
		q.mu.Lock()
		q.lastErr = err
		q.mu.Unlock()
	}
}

// Drain flushes everything pending and returns the first error since the
// last Drain, clearing it.
func (q *BatchQueue[T]) Drain(ctx context.Context) error {
	q.flushNow(ctx)

	q.mu.Lock()
	defer q.mu.Unlock()
	err := q.lastErr
	q.lastErr = nil
	return err
}

// Len reports the number of items waiting for the next flush.
func (q *BatchQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
