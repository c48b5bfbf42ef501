package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/withObsrvr/warehouse-etl/internal/config"
	"github.com/withObsrvr/warehouse-etl/internal/database"
	"github.com/withObsrvr/warehouse-etl/internal/logging"
	"github.com/withObsrvr/warehouse-etl/internal/metrics"
	"github.com/withObsrvr/warehouse-etl/internal/objectstore"
	"github.com/withObsrvr/warehouse-etl/internal/pipeline"
	"github.com/withObsrvr/warehouse-etl/internal/source"
	"github.com/withObsrvr/warehouse-etl/internal/tables"
	"github.com/withObsrvr/warehouse-etl/internal/warehouse"
	"github.com/withObsrvr/warehouse-etl/internal/watermark"
)

// needs selects the connections a command opens.
type needs struct {
	source    bool
	warehouse bool
}

var (
	needExtract   = needs{source: true}
	needTransform = needs{}
	needLoad      = needs{warehouse: true}
	needAll       = needs{source: true, warehouse: true}
)

// app holds the collaborators of one command invocation.
type app struct {
	cfg      config.Config
	pipeline *pipeline.Pipeline
	metrics  *metrics.Metrics
	closers  []func()
}

func openApp(ctx context.Context, cfg config.Config, n needs) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()
	log := logging.Component("cli")

	params, closeParams, err := openWatermarks(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeParams)

	if err := cfg.ResolveBuckets(ctx, params); err != nil {
		return nil, err
	}
	a.cfg = cfg

	rawStore, err := objectstore.Open(ctx, storeConfig(cfg.Raw))
	if err != nil {
		return nil, fmt.Errorf("open raw store: %w", err)
	}
	a.closers = append(a.closers, func() { rawStore.Close() })

	processedStore, err := objectstore.Open(ctx, storeConfig(cfg.Processed))
	if err != nil {
		return nil, fmt.Errorf("open processed store: %w", err)
	}
	a.closers = append(a.closers, func() { processedStore.Close() })

	deps := pipeline.Deps{
		Raw:        rawStore,
		Processed:  processedStore,
		Watermarks: params,
	}

	if n.source {
		if cfg.Source.DSN == "" {
			return nil, fmt.Errorf("SOURCE_DSN required")
		}
		pool, err := database.Open(ctx, cfg.Source.DSN)
		if err != nil {
			return nil, fmt.Errorf("open source database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		deps.Source = source.NewPostgresSource(pool)
	}

	if n.warehouse {
		if cfg.Warehouse.DSN == "" {
			return nil, fmt.Errorf("WAREHOUSE_DSN required")
		}
		pool, err := database.Open(ctx, cfg.Warehouse.DSN)
		if err != nil {
			return nil, fmt.Errorf("open warehouse database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		deps.Warehouse = warehouse.NewWriter(pool, logging.Component("warehouse"))
	}

	if cfg.Metrics.Enabled || cfg.Metrics.PushGateway != "" {
		a.metrics = metrics.New(cfg.Metrics.Namespace)
		deps.Metrics = a.metrics
	}

	pcfg, err := pipelineConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.pipeline = pipeline.New(deps, pcfg)

	log.Debug("collaborators ready",
		"raw", rawStore.URI(""),
		"processed", processedStore.URI(""),
		"source", n.source,
		"warehouse", n.warehouse,
	)
	return a, nil
}

// pushMetrics sends the run's metrics to the configured Pushgateway.
func (a *app) pushMetrics(ctx context.Context) {
	if a.cfg.Metrics.PushGateway == "" {
		return
	}
	if err := a.metrics.Push(ctx, a.cfg.Metrics.PushGateway, a.cfg.Metrics.Job); err != nil {
		slog.Warn("failed to push metrics", "url", a.cfg.Metrics.PushGateway, "error", err)
	}
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openWatermarks(ctx context.Context, cfg config.Config) (watermark.Store, func(), error) {
	store, closeFn, err := watermark.Open(ctx, watermark.Config{
		Backend:  cfg.Watermark.Backend,
		Dir:      cfg.Watermark.Dir,
		Region:   cfg.Watermark.Region,
		Endpoint: cfg.Watermark.Endpoint,
		DSN:      cfg.Watermark.DSN,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open watermark store: %w", err)
	}
	return store, closeFn, nil
}

func storeConfig(s config.StorageConfig) objectstore.Config {
	return objectstore.Config{
		Backend:    s.Backend,
		Bucket:     s.Bucket,
		LocalDir:   s.LocalDir,
		S3Endpoint: s.S3Endpoint,
		S3Region:   s.S3Region,
		Prefix:     s.Prefix,
	}
}

func pipelineConfig(cfg config.Config) (pipeline.Config, error) {
	loadTables, err := cfg.LoadTables()
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		ExtractWatermark: cfg.Watermark.ExtractName,
		LoadWatermark:    cfg.Watermark.LoadName,
		RawCompression:   cfg.Extract.Compression,
		Parquet:          tables.ParquetConfig{Compression: strings.ToLower(cfg.Transform.ParquetCompression)},
		LoadTables:       loadTables,
		WatermarkMode:    pipeline.WatermarkMode(cfg.Load.WatermarkMode),
		SkipLoadLog:      !cfg.Load.RecordLoads,
	}, nil
}

// runContext tags ctx with a fresh run id.
func runContext(ctx context.Context) context.Context {
	return logging.WithRunID(ctx, logging.NewRunID())
}
