package ingester

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Task is one unit of work scheduled within a block.
type Task struct {
	Label string
	Run   func(ctx context.Context) error
}

// TaskTimer collects per-task timing spans and failures for one height.
type TaskTimer struct {
	mu    sync.Mutex
	spans []TaskSpan
}

type TaskSpan struct {
	Name     string
	Duration time.Duration
	Err      error
}

func NewTaskTimer() *TaskTimer {
	return &TaskTimer{}
}

func (t *TaskTimer) record(name string, d time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = append(t.spans, TaskSpan{Name: name, Duration: d, Err: err})
}

// Failures returns the spans that ended in error.
func (t *TaskTimer) Failures() []TaskSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []TaskSpan
	for _, s := range t.spans {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Summary returns "n tasks, m failed, total wall time".
func (t *TaskTimer) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total time.Duration
	failed := 0
	for _, s := range t.spans {
		total += s.Duration
		if s.Err != nil {
			failed++
		}
	}
	return fmt.Sprintf("%d tasks, %d failed, %s task-time", len(t.spans), failed, total.Round(time.Millisecond))
}

// RunWithConcurrency executes tasks with at most limit running at once and
// returns when all have finished. Tasks are independent: one failure is
// recorded in the timer but never cancels siblings. The returned error is
// the first failure, for callers that treat the whole phase as failed.
func RunWithConcurrency(ctx context.Context, tasks []Task, limit int, timer *TaskTimer, label string) error {
	if limit <= 0 {
		limit = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, limit) // Semaphore for concurrency control

	var errOnce sync.Once
	var firstErr error

	for i, task := range tasks {
		sem <- struct{}{} // Acquire
		wg.Add(1)

		name := fmt.Sprintf("%s#%d", label, i)
		run := task.Run
		go func() {
			defer wg.Done()
			defer func() { <-sem }() // Release

			start := time.Now()
			err := run(ctx)
			if timer != nil {
				timer.record(name, time.Since(start), err)
			}
			if err != nil {
				log.Printf("[Scheduler] %s: %v", name, err)
				errOnce.Do(func() { firstErr = err })
			}
		}()
	}

	wg.Wait()
	return firstErr
}
