package workers

import (
	"context"
	"sync"

	"github.com/zimmerman-team/the-data-explorer-backend/internal/logger"
)

// Pool manages a fixed set of goroutine workers executing refresh tasks.
type Pool struct {
	taskQueue chan Task
	resultCh  chan Result
	workers   int
	executor  Executor
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *logger.Logger

	metricsMu sync.RWMutex
	metrics   PoolMetrics
}

// NewPool creates a worker pool. The executor is invoked for every task.
func NewPool(workers, bufferSize int, executor Executor, log *logger.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultPoolSize
	}
	if bufferSize <= 0 {
		bufferSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		taskQueue: make(chan Task, bufferSize),
		resultCh:  make(chan Result, bufferSize),
		workers:   workers,
		executor:  executor,
		ctx:       ctx,
		cancel:    cancel,
		logger:    log,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	p.logger.Info("starting worker pool",
		logger.Field{Key: "workers", Value: p.workers},
		logger.Field{Key: "buffer_size", Value: cap(p.taskQueue)})

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit queues a task for execution. It blocks if the queue is full.
func (p *Pool) Submit(task Task) {
	p.incrementSubmitted()

	p.logger.Debug("task submitted",
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "task_type", Value: task.Type})

	p.taskQueue <- task
}

// SubmitWithContext queues a task, giving up when ctx is done.
func (p *Pool) SubmitWithContext(ctx context.Context, task Task) error {
	p.incrementSubmitted()

	select {
	case p.taskQueue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns the read-only result channel.
func (p *Pool) Results() <-chan Result {
	return p.resultCh
}

// QueueSize returns the number of tasks waiting in the queue.
func (p *Pool) QueueSize() int {
	return len(p.taskQueue)
}

// WorkerCount returns the number of workers.
func (p *Pool) WorkerCount() int {
	return p.workers
}

// Stop shuts the pool down, waiting for in-flight tasks to finish.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()

	metrics := p.Metrics()
	p.logger.Info("worker pool stopped",
		logger.Field{Key: "tasks_submitted", Value: metrics.TasksSubmitted},
		logger.Field{Key: "tasks_completed", Value: metrics.TasksCompleted},
		logger.Field{Key: "tasks_failed", Value: metrics.TasksFailed})

	close(p.resultCh)
}

// Metrics returns a snapshot of the pool counters.
func (p *Pool) Metrics() PoolMetrics {
	p.metricsMu.RLock()
	defer p.metricsMu.RUnlock()
	return p.metrics
}

func (p *Pool) incrementSubmitted() {
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()
	p.metrics.TasksSubmitted++
}
