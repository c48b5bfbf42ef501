// Package pipeline runs the extract, transform and load stages.
//
// Each stage is one synchronous invocation that returns a short status
// string. Handled failures (a database fault while extracting, a single
// bad storage event record, a failed warehouse partition) are logged and
// reported through the status or LoadReport. Everything else, storage
// faults in particular, is returned as an error so the caller can retry
// on the next invocation.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/withObsrvr/warehouse-etl/internal/logging"
	"github.com/withObsrvr/warehouse-etl/internal/metrics"
	"github.com/withObsrvr/warehouse-etl/internal/objectstore"
	"github.com/withObsrvr/warehouse-etl/internal/tables"
	"github.com/withObsrvr/warehouse-etl/internal/warehouse"
	"github.com/withObsrvr/warehouse-etl/internal/watermark"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

// StatusOK is returned by a stage that finished its work.
const StatusOK = "Successfully ran"

// Stage names used in logs and metrics.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
)

// WatermarkMode decides when the loader advances its watermark.
type WatermarkMode string

const (
	// AdvanceBefore writes the watermark before any partition is loaded.
	// A partition that fails is not retried by the next run.
	AdvanceBefore WatermarkMode = "before"

	// AdvanceAfter writes the watermark only when every partition loaded.
	AdvanceAfter WatermarkMode = "after"
)

// RowSource reads changed rows from the operational database.
type RowSource interface {
	Rows(ctx context.Context, table tables.Source, since watermark.Watermark) ([]json.RawMessage, error)
}

// WarehouseWriter inserts record sets into the warehouse.
type WarehouseWriter interface {
	Insert(ctx context.Context, set tables.RecordSet) (warehouse.InsertResult, error)
	RecordLoad(ctx context.Context, rec warehouse.LoadRecord) error
}

// Deps are the collaborators of one pipeline. A stage only touches the
// ones it needs, so a transform-only run can leave Source and Warehouse nil.
type Deps struct {
	Source     RowSource
	Raw        *objectstore.Store
	Processed  *objectstore.Store
	Watermarks watermark.Store
	Warehouse  WarehouseWriter
	Metrics    *metrics.Metrics // optional
	Log        *slog.Logger     // optional, defaults to the slog default
	Now        func() time.Time // optional, defaults to time.Now
}

// Config holds stage settings.
type Config struct {
	ExtractWatermark string
	LoadWatermark    string
	RawCompression   string // "none" | "zstd"
	Parquet          tables.ParquetConfig
	LoadTables       []tables.Warehouse
	WatermarkMode    WatermarkMode
	SkipLoadLog      bool // skip the _etl_load_log entries written per loaded object
}

// DefaultConfig returns the settings the deployed stages use.
func DefaultConfig() Config {
	return Config{
		ExtractWatermark: "lambda_last_run",
		LoadWatermark:    "load_last_run",
		RawCompression:   "none",
		Parquet:          tables.DefaultParquetConfig(),
		LoadTables:       tables.WarehouseTables,
		WatermarkMode:    AdvanceBefore,
	}
}

// Pipeline runs the stages against one set of collaborators.
type Pipeline struct {
	deps Deps
	cfg  Config
}

// New creates a pipeline. Zero config fields take their defaults.
func New(deps Deps, cfg Config) *Pipeline {
	def := DefaultConfig()
	if cfg.ExtractWatermark == "" {
		cfg.ExtractWatermark = def.ExtractWatermark
	}
	if cfg.LoadWatermark == "" {
		cfg.LoadWatermark = def.LoadWatermark
	}
	if cfg.RawCompression == "" {
		cfg.RawCompression = def.RawCompression
	}
	if cfg.Parquet.Compression == "" {
		cfg.Parquet = def.Parquet
	}
	if len(cfg.LoadTables) == 0 {
		cfg.LoadTables = def.LoadTables
	}
	if cfg.WatermarkMode == "" {
		cfg.WatermarkMode = def.WatermarkMode
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{deps: deps, cfg: cfg}
}

func (p *Pipeline) now() time.Time {
	return p.deps.Now().UTC()
}

func (p *Pipeline) logger(ctx context.Context, stage string) *slog.Logger {
	if p.deps.Log == nil {
		return logging.StageLogger(ctx, stage)
	}
	l := p.deps.Log.With("component", stage)
	if id := logging.RunID(ctx); id != "" {
		l = l.With("run_id", id)
	}
	return l
}

// observe records a finished stage invocation.
func (p *Pipeline) observe(stage string, start time.Time, status string, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case status != StatusOK:
		outcome = "handled_failure"
	}
	p.deps.Metrics.ObserveStage(metrics.Labels{Stage: stage, Status: outcome}, time.Since(start).Seconds())
}
