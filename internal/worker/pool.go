// Package worker provides the bounded-concurrency executor that fans
// per-object pipeline tasks out and collects their outcomes. One task
// failing never cancels its siblings; every submitted task yields exactly
// one outcome. Collection order is unspecified.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tiervault/tiervault/pkg/types"
)

// Task is one unit of per-key pipeline work.
type Task struct {
	Key string
	Run func(ctx context.Context) types.TaskOutcome
}

// Stats tracks pool execution statistics for one Run call.
type Stats struct {
	Submitted int           `json:"submitted"`
	Completed int           `json:"completed"`
	Panicked  int           `json:"panicked"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Pool executes tasks with bounded parallelism.
type Pool struct {
	maxConcurrency int

	mu    sync.Mutex
	stats Stats
}

// New creates a pool. Non-positive concurrency is clamped to 1.
func New(maxConcurrency int) *Pool {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Pool{maxConcurrency: maxConcurrency}
}

// Run executes all tasks with at most maxConcurrency in flight and returns
// one outcome per task. A canceled context stops dispatching new tasks;
// tasks not started are reported as Skipped, tasks already in flight run
// to completion.
func (p *Pool) Run(ctx context.Context, stage types.Stage, tasks []Task) []types.TaskOutcome {
	start := time.Now()

	outcomes := make(chan types.TaskOutcome, len(tasks))
	semaphore := make(chan struct{}, p.maxConcurrency)

	var wg sync.WaitGroup
	for _, task := range tasks {
		select {
		case <-ctx.Done():
			outcomes <- types.TaskOutcome{
				Key:         task.Key,
				Stage:       stage,
				Status:      types.StatusSkipped,
				ErrorDetail: "run canceled before dispatch",
			}
			continue
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			defer func() { <-semaphore }()

			outcomes <- p.execute(ctx, stage, task)
		}(task)
	}

	wg.Wait()
	close(outcomes)

	collected := make([]types.TaskOutcome, 0, len(tasks))
	for outcome := range outcomes {
		collected = append(collected, outcome)
	}

	p.mu.Lock()
	p.stats.Submitted += len(tasks)
	p.stats.Completed += len(collected)
	p.stats.Elapsed += time.Since(start)
	p.mu.Unlock()

	return collected
}

// execute runs one task, converting a panic into a Failed outcome so a
// single bad object cannot take down the batch.
func (p *Pool) execute(ctx context.Context, stage types.Stage, task Task) (outcome types.TaskOutcome) {
	defer func() {
		if r := recover(); r != nil {
			p.mu.Lock()
			p.stats.Panicked++
			p.mu.Unlock()
			outcome = types.TaskOutcome{
				Key:         task.Key,
				Stage:       stage,
				Status:      types.StatusFailed,
				ErrorDetail: fmt.Sprintf("task panicked: %v", r),
			}
		}
	}()

	started := time.Now()
	outcome = task.Run(ctx)
	if outcome.Key == "" {
		outcome.Key = task.Key
	}
	if outcome.Stage == "" {
		outcome.Stage = stage
	}
	outcome.Duration = time.Since(started)
	return outcome
}

// GetStats returns cumulative pool statistics.
func (p *Pool) GetStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
