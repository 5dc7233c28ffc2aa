package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/config"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/logger"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/workers"
)

type fakePool struct {
	mu    sync.Mutex
	tasks []workers.Task
}

func (f *fakePool) Submit(task workers.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
}

func (f *fakePool) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func TestNewValidatesSchedule(t *testing.T) {
	_, err := New(config.RefreshConfig{Schedule: "not a schedule", Timezone: "Local"}, &fakePool{}, testLogger(t))
	assert.Error(t, err)

	_, err = New(config.RefreshConfig{Schedule: "30 9 * * *", Timezone: "Local"}, &fakePool{}, testLogger(t))
	assert.NoError(t, err)
}

func TestNewValidatesTimezone(t *testing.T) {
	_, err := New(config.RefreshConfig{Schedule: "30 9 * * *", Timezone: "Mars/Olympus"}, &fakePool{}, testLogger(t))
	assert.Error(t, err)

	_, err = New(config.RefreshConfig{Schedule: "30 9 * * *", Timezone: "Europe/Amsterdam"}, &fakePool{}, testLogger(t))
	assert.NoError(t, err)
}

func TestStartAndStop(t *testing.T) {
	s, err := New(config.RefreshConfig{Schedule: "30 9 * * *", Timezone: "Local"}, &fakePool{}, testLogger(t))
	require.NoError(t, err)

	assert.False(t, s.IsStarted())

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsStarted())
	assert.False(t, s.Next().IsZero())

	// Starting twice is an error.
	assert.Error(t, s.Start(context.Background()))

	require.NoError(t, s.Stop())
	assert.False(t, s.IsStarted())

	// Stopping twice is an error.
	assert.Error(t, s.Stop())
}

func TestFireSubmitsRefreshTask(t *testing.T) {
	pool := &fakePool{}
	s, err := New(config.RefreshConfig{Schedule: "30 9 * * *", Timezone: "Local"}, pool, testLogger(t))
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	s.fire()

	require.Equal(t, 1, pool.count())
	task := pool.tasks[0]
	assert.Equal(t, "refresh", task.Type)
	assert.Contains(t, task.ID, "refresh_")
	assert.Empty(t, task.Dataset)
}
