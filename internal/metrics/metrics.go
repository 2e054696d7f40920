// Package metrics provides Prometheus metrics for a warehouse build.
//
// A build is a batch job, so metrics live in a private registry and are
// exported once per run as a node_exporter textfile rather than served.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/mktwh/pkg/core"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mktwh"

// Metrics holds all build metrics.
type Metrics struct {
	TableRows           *prometheus.GaugeVec
	StageDuration       *prometheus.GaugeVec
	ReconciliationDelta *prometheus.GaugeVec
	ChecksTotal         *prometheus.GaugeVec
	RunSuccess          prometheus.Gauge
	LastRunTimestamp    prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.TableRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_rows",
			Help:      "Rows written per warehouse table in the last run",
		},
		[]string{"table"},
	)

	m.StageDuration = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each build stage in the last run",
		},
		[]string{"stage"},
	)

	m.ReconciliationDelta = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconciliation_delta",
			Help:      "Absolute difference between raw and warehouse totals",
		},
		[]string{"table", "column"},
	)

	m.ChecksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Validation checks by status in the last run",
		},
		[]string{"status"},
	)

	m.RunSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_success",
			Help:      "1 if the last run succeeded, 0 otherwise",
		},
	)

	m.LastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the last run finished",
		},
	)

	m.registry.MustRegister(
		m.TableRows,
		m.StageDuration,
		m.ReconciliationDelta,
		m.ChecksTotal,
		m.RunSuccess,
		m.LastRunTimestamp,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordTableRows records the row count of a written table.
func (m *Metrics) RecordTableRows(table string, rows int) {
	if m == nil {
		return
	}
	m.TableRows.WithLabelValues(table).Set(float64(rows))
}

// RecordStageDuration records how long a stage ran.
func (m *Metrics) RecordStageDuration(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Set(d.Seconds())
}

// RecordReconciliation records the raw-versus-warehouse delta for a column.
func (m *Metrics) RecordReconciliation(table, column string, delta float64) {
	if m == nil {
		return
	}
	m.ReconciliationDelta.WithLabelValues(table, column).Set(delta)
}

// RecordChecks tallies validation results by status.
func (m *Metrics) RecordChecks(checks []core.CheckResult) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(string(core.CheckPass)).Set(0)
	m.ChecksTotal.WithLabelValues(string(core.CheckFail)).Set(0)
	for _, c := range checks {
		m.ChecksTotal.WithLabelValues(string(c.Status)).Inc()
	}
}

// RecordRun records the run outcome and completion time.
func (m *Metrics) RecordRun(success bool, finished time.Time) {
	if m == nil {
		return
	}
	if success {
		m.RunSuccess.Set(1)
	} else {
		m.RunSuccess.Set(0)
	}
	m.LastRunTimestamp.Set(float64(finished.Unix()))
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
