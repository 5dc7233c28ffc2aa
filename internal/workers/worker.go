package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/zimmerman-team/the-data-explorer-backend/internal/logger"
)

// worker is the main worker goroutine processing tasks from the queue.
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker panic recovered",
				fmt.Errorf("panic: %v", r),
				logger.Field{Key: "worker_id", Value: id})
		}
	}()

	p.logger.Debug("worker started",
		logger.Field{Key: "worker_id", Value: id})

	for {
		select {
		case task := <-p.taskQueue:
			p.processTask(id, task)

		case <-p.ctx.Done():
			p.logger.Debug("worker stopping",
				logger.Field{Key: "worker_id", Value: id})
			return
		}
	}
}

// processTask runs one task with panic recovery, counters, and result
// delivery.
func (p *Pool) processTask(workerID int, task Task) {
	start := time.Now()

	p.logger.Debug("processing task",
		logger.Field{Key: "worker_id", Value: workerID},
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "task_type", Value: task.Type})

	execCtx := p.ctx
	if task.Context != nil {
		execCtx = task.Context
	}

	err := p.safeExecute(execCtx, task)
	result := Result{
		TaskID:   task.ID,
		Error:    err,
		Duration: time.Since(start),
	}

	p.recordResult(result)

	select {
	case p.resultCh <- result:
	case <-p.ctx.Done():
		p.logger.Warn("failed to send result, pool shutting down",
			logger.Field{Key: "task_id", Value: task.ID})
	}
}

func (p *Pool) safeExecute(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return p.executor(ctx, task)
}

func (p *Pool) recordResult(result Result) {
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()
	if result.Error != nil {
		p.metrics.TasksFailed++
	} else {
		p.metrics.TasksCompleted++
	}
	p.metrics.TotalDuration += result.Duration
}
