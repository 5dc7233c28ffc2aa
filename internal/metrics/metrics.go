// Package metrics exposes prometheus instrumentation for refresh runs and
// stored datasets.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded per dataset update.
const (
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Metrics bundles the collectors registered for the backend.
type Metrics struct {
	registry        prometheus.Registerer
	refreshRuns     *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	datasetUpdates  *prometheus.CounterVec
	datasetRows     *prometheus.GaugeVec
}

// New registers the backend collectors on reg under the given namespace.
// A nil reg falls back to the default registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registry: reg,
		refreshRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_runs_total",
				Help:      "Total number of dataset refresh runs",
			},
			[]string{"status"},
		),
		refreshDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "refresh_run_duration_seconds",
				Help:      "Duration of dataset refresh runs",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"status"},
		),
		datasetUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dataset_updates_total",
				Help:      "Per-dataset update outcomes",
			},
			[]string{"dataset", "outcome"},
		),
		datasetRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_rows",
				Help:      "Number of stored rows per dataset",
			},
			[]string{"dataset"},
		),
	}

	reg.MustRegister(
		m.refreshRuns,
		m.refreshDuration,
		m.datasetUpdates,
		m.datasetRows,
	)

	return m
}

// RecordRun records the outcome and duration of a refresh run.
func (m *Metrics) RecordRun(status string, duration time.Duration) {
	m.refreshRuns.WithLabelValues(status).Inc()
	m.refreshDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordDatasetUpdate records a per-dataset outcome.
func (m *Metrics) RecordDatasetUpdate(dataset, outcome string) {
	m.datasetUpdates.WithLabelValues(dataset, outcome).Inc()
}

// SetDatasetRows records the stored row count of a dataset.
func (m *Metrics) SetDatasetRows(dataset string, rows int) {
	m.datasetRows.WithLabelValues(dataset).Set(float64(rows))
}
