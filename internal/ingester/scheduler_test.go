package ingester

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunWithConcurrency_Limit(t *testing.T) {
	t.Parallel()

	var running, peak int32
	var mu sync.Mutex

	tasks := make([]Task, 20)
	for i := range tasks {
		tasks[i] = Task{Label: "fetch", Run: func(ctx context.Context) error {
			n := atomic.AddInt32(&running, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		}}
	}

	if err := RunWithConcurrency(context.Background(), tasks, 4, nil, "fetch"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > 4 {
		t.Fatalf("peak concurrency %d exceeded limit 4", peak)
	}
}

func TestRunWithConcurrency_FailureIsolation(t *testing.T) {
	t.Parallel()

	boom := errors.New("task 3 failed")
	var completed int32

	tasks := make([]Task, 10)
	for i := range tasks {
		i := i
		tasks[i] = Task{Label: "work", Run: func(ctx context.Context) error {
			if i == 3 {
				return boom
			}
			atomic.AddInt32(&completed, 1)
			return nil
		}}
	}

	timer := NewTaskTimer()
	err := RunWithConcurrency(context.Background(), tasks, 2, timer, "work")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	// One failure never cancels siblings.
	if got := atomic.LoadInt32(&completed); got != 9 {
		t.Fatalf("completed = %d, want 9", got)
	}

	failures := timer.Failures()
	if len(failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(failures))
	}
	if failures[0].Name != "work#3" {
		t.Errorf("failure name = %q", failures[0].Name)
	}
}

func TestTaskTimer_Summary(t *testing.T) {
	t.Parallel()

	timer := NewTaskTimer()
	timer.record("a#0", 10*time.Millisecond, nil)
	timer.record("a#1", 5*time.Millisecond, errors.New("x"))

	got := timer.Summary()
	want := "2 tasks, 1 failed, 15ms task-time"
	if got != want {
		t.Fatalf("Summary() = %q, want %q", got, want)
	}
}
