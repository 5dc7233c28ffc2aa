// Package workers provides an async worker pool for background refresh
// execution. Tasks are queued on a buffered channel and results are exposed
// on a channel for monitoring.
package workers

import (
	"context"
	"time"
)

// Task is a unit of refresh work.
type Task struct {
	ID      string          // Unique task identifier
	Type    string          // Task type, e.g. "refresh"
	Dataset string          // Dataset name for forced single-dataset updates; empty means all
	Force   bool            // Bypass hash comparison
	Context context.Context // Task-specific context for cancellation/timeout
}

// Result is the outcome of a task execution.
type Result struct {
	TaskID   string        // ID of the executed task
	Error    error         // Error if execution failed
	Duration time.Duration // Execution duration
}

// Executor runs the task-specific logic.
type Executor func(ctx context.Context, task Task) error

// PoolMetrics tracks execution counters for the pool.
type PoolMetrics struct {
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksFailed    uint64
	TotalDuration  time.Duration
}

// Defaults for pool configuration.
const (
	DefaultPoolSize  = 1
	DefaultQueueSize = 16
)
