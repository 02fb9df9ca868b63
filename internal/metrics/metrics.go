// Package metrics exposes run counters in the Prometheus text format. The CLI
// is a short-lived process, so instead of serving /metrics it writes the
// registry to a node_exporter textfile collector file at the end of a run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the counters of a single run.
type Registry struct {
	reg *prometheus.Registry

	LinesRead      prometheus.Counter
	InvalidCodes   prometheus.Counter
	Duplicates     prometheus.Counter
	Fetched        prometheus.Counter
	Failed         *prometheus.CounterVec
	PendingRetries prometheus.Counter
	ItemsAdded     prometheus.Counter
	LedgerRows     prometheus.Gauge
	LastRun        prometheus.Gauge
	RunDuration    prometheus.Gauge
}

// NewRegistry creates a registry with all run metrics registered.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	m := &Registry{
		reg: r,
		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "receipts_lines_read_total",
			Help: "QR payload lines read from input.",
		}),
		InvalidCodes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "receipts_invalid_codes_total",
			Help: "QR payloads that could not be parsed.",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "receipts_duplicates_total",
			Help: "Receipts skipped because the ledger already has them.",
		}),
		Fetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "receipts_fetched_total",
			Help: "Receipts fetched and added to the ledger.",
		}),
		Failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receipts_failed_total",
			Help: "Receipts the API did not return, by reason.",
		}, []string{"reason"}),
		PendingRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "receipts_pending_retries_total",
			Help: "Fetch attempts repeated because the receipt was pending.",
		}),
		ItemsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "receipts_items_added_total",
			Help: "Line items appended to the ledger.",
		}),
		LedgerRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "receipts_ledger_rows",
			Help: "Rows in the ledger after the run.",
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "receipts_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "receipts_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
	}

	r.MustRegister(
		m.LinesRead, m.InvalidCodes, m.Duplicates, m.Fetched, m.Failed,
		m.PendingRetries, m.ItemsAdded, m.LedgerRows, m.LastRun, m.RunDuration,
	)
	return m
}

// Gatherer returns the underlying registry.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.reg }

// WriteTextfile writes all metrics to path in the text exposition format.
func (m *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
