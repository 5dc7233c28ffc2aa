package datasets

import (
	"context"
	"fmt"
	"os"

	"github.com/zimmerman-team/the-data-explorer-backend/internal/logger"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/metrics"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/preprocess"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/registry"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/store"
)

// Preprocessor turns a staged dataset file into stored, queryable data.
type Preprocessor interface {
	Preprocess(ctx context.Context, ds registry.Dataset, stagingPath, hash string) error
}

// StorePreprocessor parses a staged CSV file and replaces the dataset in
// the sqlite store. Transform, when set, can rewrite the parsed table
// before it is stored; this is the seam deployments use for custom
// preprocessing steps.
type StorePreprocessor struct {
	store   *store.Store
	metrics *metrics.Metrics
	log     *logger.Logger

	Transform func(ds registry.Dataset, table *preprocess.Table) error
}

// NewStorePreprocessor creates the default preprocessor.
func NewStorePreprocessor(st *store.Store, m *metrics.Metrics, log *logger.Logger) *StorePreprocessor {
	return &StorePreprocessor{
		store:   st,
		metrics: m,
		log:     log,
	}
}

// Preprocess reads the staged file, parses it, and swaps the stored dataset.
func (p *StorePreprocessor) Preprocess(ctx context.Context, ds registry.Dataset, stagingPath, hash string) error {
	payload, err := os.ReadFile(stagingPath)
	if err != nil {
		return fmt.Errorf("failed to read staged file: %w", err)
	}

	table, err := preprocess.ParseCSV(payload)
	if err != nil {
		return fmt.Errorf("failed to preprocess %s: %w", ds.File, err)
	}

	if p.Transform != nil {
		if err := p.Transform(ds, table); err != nil {
			return fmt.Errorf("transform failed for %s: %w", ds.File, err)
		}
	}

	if err := p.store.ReplaceDataset(ctx, ds.Name(), table.Columns, table.Rows, hash); err != nil {
		return fmt.Errorf("failed to store %s: %w", ds.File, err)
	}

	p.metrics.SetDatasetRows(ds.Name(), len(table.Rows))
	p.log.Info("dataset preprocessed",
		logger.Field{Key: "dataset", Value: ds.Name()},
		logger.Field{Key: "columns", Value: len(table.Columns)},
		logger.Field{Key: "rows", Value: len(table.Rows)})

	return nil
}
