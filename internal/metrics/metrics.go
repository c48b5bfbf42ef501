// Package metrics provides Prometheus metrics for the warehouse ETL.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds all Prometheus metrics for the ETL stages.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Extract
	RowsExtracted  *prometheus.CounterVec
	ObjectsWritten *prometheus.CounterVec

	// Transform
	RecordsTransformed *prometheus.CounterVec
	RecordsFailed      *prometheus.CounterVec
	RecordsUnmapped    prometheus.Counter

	// Load
	RowsInserted     *prometheus.CounterVec
	RowsSkipped      *prometheus.CounterVec
	RowsCoalesced    *prometheus.CounterVec
	PartitionsFailed *prometheus.CounterVec

	// Runs
	StageRuns     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	Watermark     *prometheus.GaugeVec

	// Errors
	StorageErrors  *prometheus.CounterVec
	DatabaseErrors *prometheus.CounterVec
}

// Config holds metrics configuration.
type Config struct {
	Enabled     bool
	Address     string // Address for metrics HTTP server (e.g., ":9090")
	PushGateway string // Pushgateway URL for one-shot runs, optional
	Job         string
}

// New registers the ETL metrics on a fresh registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "warehouse_etl"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RowsExtracted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_extracted_total",
				Help:      "Total number of source rows extracted",
			},
			[]string{"table"},
		),
		ObjectsWritten: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "objects_written_total",
				Help:      "Total number of objects written to storage",
			},
			[]string{"stage", "table"},
		),
		RecordsTransformed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_transformed_total",
				Help:      "Total number of storage event records transformed",
			},
			[]string{"table"},
		),
		RecordsFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_failed_total",
				Help:      "Total number of storage event records that failed to transform",
			},
			[]string{"table"},
		),
		RecordsUnmapped: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_unmapped_total",
				Help:      "Total number of records for tables with no transformation",
			},
		),
		RowsInserted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_inserted_total",
				Help:      "Total number of rows inserted into the warehouse",
			},
			[]string{"table"},
		),
		RowsSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_skipped_total",
				Help:      "Total number of rows rejected by the warehouse as duplicates",
			},
			[]string{"table"},
		),
		RowsCoalesced: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_coalesced_total",
				Help:      "Total number of identical rows collapsed before insert",
			},
			[]string{"table"},
		),
		PartitionsFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "partitions_failed_total",
				Help:      "Total number of warehouse partitions that failed to load",
			},
			[]string{"table"},
		),
		StageRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_runs_total",
				Help:      "Total number of stage invocations by outcome",
			},
			[]string{"stage", "status"},
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time of one stage invocation",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~400s
			},
			[]string{"stage"},
		),
		Watermark: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "watermark_timestamp_seconds",
				Help:      "Unix time of the last written watermark",
			},
			[]string{"name"},
		),
		StorageErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Total number of object store errors",
			},
			[]string{"stage"},
		),
		DatabaseErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "database_errors_total",
				Help:      "Total number of database errors",
			},
			[]string{"stage"},
		),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics and /health until ctx is cancelled.
func (m *Metrics) StartServer(ctx context.Context, address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Push sends the current values to a Pushgateway.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if job == "" {
		job = "warehouse_etl"
	}
	return push.New(url, job).Gatherer(m.registry).PushContext(ctx)
}

// Labels is a convenience type for metric labels.
type Labels struct {
	Stage  string
	Table  string
	Status string
}

// AddRowsExtracted adds to the extracted rows counter.
func (m *Metrics) AddRowsExtracted(l Labels, n int) {
	if m == nil {
		return
	}
	m.RowsExtracted.WithLabelValues(l.Table).Add(float64(n))
}

// IncObjectsWritten increments the objects written counter.
func (m *Metrics) IncObjectsWritten(l Labels) {
	if m == nil {
		return
	}
	m.ObjectsWritten.WithLabelValues(l.Stage, l.Table).Inc()
}

// IncRecordsTransformed increments the transformed records counter.
func (m *Metrics) IncRecordsTransformed(l Labels) {
	if m == nil {
		return
	}
	m.RecordsTransformed.WithLabelValues(l.Table).Inc()
}

// IncRecordsFailed increments the failed records counter.
func (m *Metrics) IncRecordsFailed(l Labels) {
	if m == nil {
		return
	}
	m.RecordsFailed.WithLabelValues(l.Table).Inc()
}

// IncRecordsUnmapped increments the unmapped records counter.
func (m *Metrics) IncRecordsUnmapped() {
	if m == nil {
		return
	}
	m.RecordsUnmapped.Inc()
}

// AddRowsInserted adds to the inserted rows counter.
func (m *Metrics) AddRowsInserted(l Labels, n int) {
	if m == nil {
		return
	}
	m.RowsInserted.WithLabelValues(l.Table).Add(float64(n))
}

// AddRowsSkipped adds to the duplicate rows counter.
func (m *Metrics) AddRowsSkipped(l Labels, n int) {
	if m == nil {
		return
	}
	m.RowsSkipped.WithLabelValues(l.Table).Add(float64(n))
}

// AddRowsCoalesced adds to the collapsed rows counter.
func (m *Metrics) AddRowsCoalesced(l Labels, n int) {
	if m == nil {
		return
	}
	m.RowsCoalesced.WithLabelValues(l.Table).Add(float64(n))
}

// IncPartitionsFailed increments the failed partitions counter.
func (m *Metrics) IncPartitionsFailed(l Labels) {
	if m == nil {
		return
	}
	m.PartitionsFailed.WithLabelValues(l.Table).Inc()
}

// ObserveStage records one finished stage invocation.
func (m *Metrics) ObserveStage(l Labels, seconds float64) {
	if m == nil {
		return
	}
	m.StageRuns.WithLabelValues(l.Stage, l.Status).Inc()
	m.StageDuration.WithLabelValues(l.Stage).Observe(seconds)
}

// SetWatermark records the time a watermark was advanced to.
func (m *Metrics) SetWatermark(name string, t time.Time) {
	if m == nil {
		return
	}
	m.Watermark.WithLabelValues(name).Set(float64(t.Unix()))
}

// IncStorageErrors increments the storage errors counter.
func (m *Metrics) IncStorageErrors(l Labels) {
	if m == nil {
		return
	}
	m.StorageErrors.WithLabelValues(l.Stage).Inc()
}

// IncDatabaseErrors increments the database errors counter.
func (m *Metrics) IncDatabaseErrors(l Labels) {
	if m == nil {
		return
	}
	m.DatabaseErrors.WithLabelValues(l.Stage).Inc()
}
