package ingester

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBatchQueue_FlushOnMaxItems(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var batches [][]int
	q := NewBatchQueue(3, time.Hour, func(_ context.Context, batch []int) error {
		mu.Lock()
		defer mu.Unlock()
		cp := make([]int, len(batch))
		copy(cp, batch)
		batches = append(batches, cp)
		return nil
	})

	for i := 0; i < 7; i++ {
		q.Add(i)
	}

	mu.Lock()
	got := len(batches)
	mu.Unlock()
	if got != 2 {
		t.Fatalf("expected 2 full batches, got %d", got)
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 pending item, got %d", q.Len())
	}

	if err := q.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 3 || len(batches[2]) != 1 {
		t.Fatalf("drain did not flush the remainder: %v", batches)
	}
}

func TestBatchQueue_FlushOnTimer(t *testing.T) {
	t.Parallel()

	flushed := make(chan []string, 1)
	q := NewBatchQueue(100, 20*time.Millisecond, func(_ context.Context, batch []string) error {
		flushed <- batch
		return nil
	})

	q.Add("a")
	q.Add("b")

	select {
	case batch := <-flushed:
		if len(batch) != 2 {
			t.Fatalf("expected 2 items, got %d", len(batch))
		}
	case <-time.After(time.Second):
		t.Fatal("timer flush never fired")
	}
	if q.Len() != 0 {
		t.Fatalf("queue not empty after timer flush: %d", q.Len())
	}
}

func TestBatchQueue_DrainSurfacesFlushError(t *testing.T) {
	t.Parallel()

	boom := errors.New("insert failed")
	q := NewBatchQueue(1, time.Hour, func(_ context.Context, _ []int) error {
		return boom
	})

	q.Add(1) // maxItems=1 flushes immediately and fails

	if err := q.Drain(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("drain err = %v, want %v", err, boom)
	}
	// Error is cleared once observed.
	if err := q.Drain(context.Background()); err != nil {
		t.Fatalf("second drain err = %v, want nil", err)
	}
}

func TestBatchQueue_EmptyDrainIsNoop(t *testing.T) {
	t.Parallel()

	calls := 0
	q := NewBatchQueue(10, time.Hour, func(_ context.Context, _ []int) error {
		calls++
		return nil
	})
	if err := q.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if calls != 0 {
		t.Fatalf("flush called %d times on empty queue", calls)
	}
}
