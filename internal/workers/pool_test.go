package workers

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func collectResults(t *testing.T, pool *Pool, n int) []Result {
	t.Helper()

	results := make([]Result, 0, n)
	timeout := time.After(5 * time.Second)
	for len(results) < n {
		select {
		case r := <-pool.Results():
			results = append(results, r)
		case <-timeout:
			t.Fatalf("timed out waiting for %d results, got %d", n, len(results))
		}
	}
	return results
}

func TestPoolExecutesTasks(t *testing.T) {
	var executed int32
	pool := NewPool(2, 8, func(ctx context.Context, task Task) error {
		atomic.AddInt32(&executed, 1)
		return nil
	}, testLogger(t))

	pool.Start()
	defer pool.Stop()

	for i := 0; i < 5; i++ {
		pool.Submit(Task{ID: fmt.Sprintf("task_%d", i), Type: "refresh"})
	}

	results := collectResults(t, pool, 5)
	assert.Equal(t, int32(5), atomic.LoadInt32(&executed))
	for _, r := range results {
		assert.NoError(t, r.Error)
		assert.NotEmpty(t, r.TaskID)
	}
}

func TestPoolReportsFailures(t *testing.T) {
	pool := NewPool(1, 4, func(ctx context.Context, task Task) error {
		if task.Type == "bad" {
			return fmt.Errorf("task failed")
		}
		return nil
	}, testLogger(t))

	pool.Start()
	defer pool.Stop()

	pool.Submit(Task{ID: "ok", Type: "refresh"})
	pool.Submit(Task{ID: "broken", Type: "bad"})

	results := collectResults(t, pool, 2)

	byID := make(map[string]Result, 2)
	for _, r := range results {
		byID[r.TaskID] = r
	}
	assert.NoError(t, byID["ok"].Error)
	assert.Error(t, byID["broken"].Error)
}

func TestPoolRecoversFromPanic(t *testing.T) {
	pool := NewPool(1, 4, func(ctx context.Context, task Task) error {
		panic("boom")
	}, testLogger(t))

	pool.Start()
	defer pool.Stop()

	pool.Submit(Task{ID: "panics", Type: "refresh"})

	results := collectResults(t, pool, 1)
	require.Error(t, results[0].Error)
	assert.Contains(t, results[0].Error.Error(), "boom")

	// The worker survives and keeps processing.
	pool.Submit(Task{ID: "after", Type: "refresh"})
	collectResults(t, pool, 1)
}

func TestPoolMetrics(t *testing.T) {
	pool := NewPool(1, 4, func(ctx context.Context, task Task) error {
		if task.Type == "bad" {
			return fmt.Errorf("task failed")
		}
		return nil
	}, testLogger(t))

	pool.Start()

	pool.Submit(Task{ID: "a", Type: "refresh"})
	pool.Submit(Task{ID: "b", Type: "refresh"})
	pool.Submit(Task{ID: "c", Type: "bad"})
	collectResults(t, pool, 3)

	pool.Stop()

	m := pool.Metrics()
	assert.Equal(t, uint64(3), m.TasksSubmitted)
	assert.Equal(t, uint64(2), m.TasksCompleted)
	assert.Equal(t, uint64(1), m.TasksFailed)
}

func TestPoolDefaults(t *testing.T) {
	pool := NewPool(0, 0, func(ctx context.Context, task Task) error { return nil }, testLogger(t))

	assert.Equal(t, DefaultPoolSize, pool.WorkerCount())
	assert.Equal(t, DefaultQueueSize, cap(pool.taskQueue))
}

func TestSubmitWithContextCancelled(t *testing.T) {
	// A full queue with no running workers blocks Submit; the context
	// variant gives up instead.
	pool := NewPool(1, 1, func(ctx context.Context, task Task) error { return nil }, testLogger(t))

	require.NoError(t, pool.SubmitWithContext(context.Background(), Task{ID: "fills-queue"}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := pool.SubmitWithContext(ctx, Task{ID: "blocked"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolStopWaitsForInFlightTasks(t *testing.T) {
	var done int32
	pool := NewPool(1, 4, func(ctx context.Context, task Task) error {
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&done, 1)
		return nil
	}, testLogger(t))

	pool.Start()
	pool.Submit(Task{ID: "slow", Type: "refresh"})

	// Give the worker a moment to pick the task up, then stop.
	time.Sleep(10 * time.Millisecond)
	pool.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&done))
}
