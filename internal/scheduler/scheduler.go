// Package scheduler runs the in-process daily dataset refresh. It wraps
// robfig/cron/v3; each firing submits a refresh task to the worker pool.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/config"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/logger"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/workers"
)

// Submitter accepts refresh tasks; satisfied by *workers.Pool.
type Submitter interface {
	Submit(task workers.Task)
}

// Scheduler triggers scheduled refresh runs.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	pool     Submitter
	logger   *logger.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
}

// New creates a scheduler from the refresh configuration. The schedule is
// a standard five-field cron expression; the timezone name must resolve
// via time.LoadLocation ("Local" is accepted).
func New(cfg config.RefreshConfig, pool Submitter, log *logger.Logger) (*Scheduler, error) {
	loc := time.Local
	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid refresh timezone %q: %w", cfg.Timezone, err)
		}
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", cfg.Schedule, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		schedule: cfg.Schedule,
		pool:     pool,
		logger:   log,
	}, nil
}

// Start registers the refresh job and starts the cron loop. It returns
// immediately; the loop stops when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(s.schedule, s.fire); err != nil {
		s.cancel()
		return fmt.Errorf("failed to register refresh job: %w", err)
	}

	s.cron.Start()
	s.started = true
	s.logger.Info("refresh scheduler started",
		logger.Field{Key: "schedule", Value: s.schedule})

	go func() {
		<-s.ctx.Done()
		s.cron.Stop()
		s.logger.Info("refresh scheduler stopped")
	}()

	return nil
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return fmt.Errorf("scheduler not started")
	}

	s.cancel()
	s.started = false
	return nil
}

// IsStarted reports whether the scheduler is running.
func (s *Scheduler) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Next returns when the refresh job fires next; the zero time when the
// scheduler is not running.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// fire submits one refresh task to the pool.
func (s *Scheduler) fire() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled refresh panic recovered",
				fmt.Errorf("panic: %v", r))
		}
	}()

	task := workers.Task{
		ID:      fmt.Sprintf("refresh_%d", time.Now().UnixNano()),
		Type:    "refresh",
		Context: s.ctx,
	}
	s.pool.Submit(task)

	s.logger.Info("scheduled refresh submitted",
		logger.Field{Key: "task_id", Value: task.ID})
}
