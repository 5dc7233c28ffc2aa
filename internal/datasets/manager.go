package datasets

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/logger"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/metrics"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/registry"
)

// ErrUnknownDataset is returned when a name is not in the catalog.
var ErrUnknownDataset = errors.New("dataset not found in the Global Fund catalog")

// Downloader fetches a dataset payload from its upstream URL.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Manager coordinates dataset refresh runs. At most one run mutates the
// staging directory and store at a time; concurrent triggers queue on the
// mutex.
type Manager struct {
	registry   *registry.Registry
	downloader Downloader
	pre        Preprocessor
	meta       *MetadataStore
	metrics    *metrics.Metrics
	stagingDir string
	log        *logger.Logger

	mu sync.Mutex
}

// NewManager wires a refresh manager.
func NewManager(
	reg *registry.Registry,
	downloader Downloader,
	pre Preprocessor,
	meta *MetadataStore,
	m *metrics.Metrics,
	stagingDir string,
	log *logger.Logger,
) *Manager {
	return &Manager{
		registry:   reg,
		downloader: downloader,
		pre:        pre,
		meta:       meta,
		metrics:    m,
		stagingDir: stagingDir,
		log:        log,
	}
}

// RefreshAll downloads every catalog dataset, preprocessing the ones whose
// payload changed. The run aborts on the first failing dataset and the
// metadata file is only rewritten after a fully successful run.
func (m *Manager) RefreshAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	runID := uuid.NewString()
	start := time.Now()
	log := m.log.With(logger.Field{Key: "run_id", Value: runID})

	log.Info("dataset refresh started",
		logger.Field{Key: "datasets", Value: m.registry.Len()})

	meta := m.meta.Load()
	now := time.Now().Format(time.RFC3339)
	meta.DateTimeUpdated = now

	for _, ds := range m.registry.All() {
		if err := m.refreshOne(ctx, log, meta, ds, now, false); err != nil {
			m.metrics.RecordRun("failure", time.Since(start))
			log.Error("dataset refresh aborted", err,
				logger.Field{Key: "dataset", Value: ds.Name()})
			return fmt.Errorf("refresh failed at %s: %w", ds.Name(), err)
		}
	}

	if err := m.meta.Save(meta); err != nil {
		m.metrics.RecordRun("failure", time.Since(start))
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	m.metrics.RecordRun("success", time.Since(start))
	log.Info("dataset refresh finished",
		logger.Field{Key: "duration", Value: time.Since(start).Round(time.Millisecond).String()})
	return nil
}

// ForceUpdate refreshes a single dataset, bypassing the hash comparison.
// Unknown names return ErrUnknownDataset.
func (m *Manager) ForceUpdate(ctx context.Context, name string) error {
	ds, ok := m.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	runID := uuid.NewString()
	start := time.Now()
	log := m.log.With(logger.Field{Key: "run_id", Value: runID})

	log.Info("forced dataset update started",
		logger.Field{Key: "dataset", Value: ds.Name()})

	meta := m.meta.Load()
	now := time.Now().Format(time.RFC3339)
	meta.DateTimeUpdated = now

	if err := m.refreshOne(ctx, log, meta, ds, now, true); err != nil {
		m.metrics.RecordRun("failure", time.Since(start))
		return fmt.Errorf("forced update failed for %s: %w", ds.Name(), err)
	}

	if err := m.meta.Save(meta); err != nil {
		m.metrics.RecordRun("failure", time.Since(start))
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	m.metrics.RecordRun("success", time.Since(start))
	return nil
}

// refreshOne downloads a dataset, compares its payload hash with the stored
// one, and stages + preprocesses it when changed (or forced). The staged
// file is removed once preprocessing is done with it.
func (m *Manager) refreshOne(ctx context.Context, log *logger.Logger, meta *Metadata, ds registry.Dataset, now string, force bool) error {
	payload, err := m.downloader.Download(ctx, ds.URL)
	if err != nil {
		m.metrics.RecordDatasetUpdate(ds.Name(), metrics.OutcomeFailed)
		return fmt.Errorf("download failed: %w", err)
	}

	sum := md5.Sum(payload)
	newHash := hex.EncodeToString(sum[:])
	oldHash := meta.Datasets[ds.File].Hash

	if oldHash == newHash && !force {
		m.metrics.RecordDatasetUpdate(ds.Name(), metrics.OutcomeSkipped)
		log.Debug("dataset unchanged, skipping",
			logger.Field{Key: "dataset", Value: ds.Name()},
			logger.Field{Key: "hash", Value: newHash})
		return nil
	}

	stagingPath := filepath.Join(m.stagingDir, ds.File)
	if err := os.MkdirAll(m.stagingDir, 0755); err != nil {
		m.metrics.RecordDatasetUpdate(ds.Name(), metrics.OutcomeFailed)
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	if err := os.WriteFile(stagingPath, payload, 0644); err != nil {
		m.metrics.RecordDatasetUpdate(ds.Name(), metrics.OutcomeFailed)
		return fmt.Errorf("failed to stage file: %w", err)
	}

	meta.Datasets[ds.File] = Entry{DateTimeUpdated: now, Hash: newHash}

	log.Info("preprocessing dataset",
		logger.Field{Key: "dataset", Value: ds.Name()},
		logger.Field{Key: "bytes", Value: len(payload)},
		logger.Field{Key: "forced", Value: force})

	preErr := m.pre.Preprocess(ctx, ds, stagingPath, newHash)

	// The staged copy only exists for preprocessing; remove it either way.
	m.removeFile(stagingPath)

	if preErr != nil {
		m.metrics.RecordDatasetUpdate(ds.Name(), metrics.OutcomeFailed)
		return preErr
	}

	m.metrics.RecordDatasetUpdate(ds.Name(), metrics.OutcomeUpdated)
	return nil
}

func (m *Manager) removeFile(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return
	}
	if err := os.Remove(path); err != nil {
		m.log.Error("failed to remove staged file", err,
			logger.Field{Key: "file", Value: path})
		return
	}
	m.log.Debug("removed staged file", logger.Field{Key: "file", Value: path})
}
