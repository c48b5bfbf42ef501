package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/withObsrvr/warehouse-etl/internal/logging"
	"github.com/withObsrvr/warehouse-etl/internal/metrics"
	"github.com/withObsrvr/warehouse-etl/internal/objectstore"
	"github.com/withObsrvr/warehouse-etl/internal/tables"
	"github.com/withObsrvr/warehouse-etl/internal/warehouse"
	"github.com/withObsrvr/warehouse-etl/internal/watermark"
)

// PartitionReport is the outcome of loading one warehouse table.
type PartitionReport struct {
	Table     tables.Warehouse
	Files     int // processed objects newer than the watermark
	Rows      int // rows read from those objects
	Coalesced int // identical rows collapsed before insert
	Inserted  int
	Skipped   int // rows the warehouse already held
	Err       error
}

// LoadReport is the outcome of one Load call, in partition order.
type LoadReport struct {
	Watermark  watermark.Watermark // watermark the run read
	Advanced   bool                // whether the run wrote a new watermark
	Partitions []PartitionReport
}

// Failed returns the partitions that did not load.
func (r LoadReport) Failed() []tables.Warehouse {
	var failed []tables.Warehouse
	for _, p := range r.Partitions {
		if p.Err != nil {
			failed = append(failed, p.Table)
		}
	}
	return failed
}

// Inserted returns the total number of inserted rows.
func (r LoadReport) Inserted() int {
	n := 0
	for _, p := range r.Partitions {
		n += p.Inserted
	}
	return n
}

// Load inserts every processed object newer than the load watermark into
// the warehouse, one partition (warehouse table) at a time.
//
// A partition that hits a database fault or an unreadable file is logged
// and reported, and the next partition is still attempted. A storage
// fault aborts the run.
func (p *Pipeline) Load(ctx context.Context) (status string, report LoadReport, err error) {
	began := time.Now()
	defer func() { p.observe(StageLoad, began, status, err) }()

	log := p.logger(ctx, StageLoad)
	start := p.now()

	since, err := watermark.Read(ctx, p.deps.Watermarks, p.cfg.LoadWatermark, watermark.LoadLayout)
	if err != nil {
		return "", report, fmt.Errorf("read load watermark: %w", err)
	}
	report.Watermark = since
	log.Info("started load", "previous_run", since.String(), "watermark_mode", p.cfg.WatermarkMode)

	next := watermark.At(start, watermark.LoadLayout)
	if p.cfg.WatermarkMode != AdvanceAfter {
		if err := p.advanceLoadWatermark(ctx, next); err != nil {
			return "", report, err
		}
		report.Advanced = true
	}

	for _, table := range p.cfg.LoadTables {
		pr, err := p.loadPartition(ctx, table, since, log)
		if err != nil {
			if objectstore.IsStorageError(err) {
				p.deps.Metrics.IncStorageErrors(metrics.Labels{Stage: StageLoad})
				return "", report, fmt.Errorf("load %s: %w", table, err)
			}
			pr.Err = err
			p.deps.Metrics.IncPartitionsFailed(metrics.Labels{Table: string(table)})
			log.Error("failed to load partition",
				"table", table,
				"files", pr.Files,
				"inserted", pr.Inserted,
				"error", err,
			)
		}
		report.Partitions = append(report.Partitions, pr)
	}

	failed := report.Failed()
	if p.cfg.WatermarkMode == AdvanceAfter {
		if len(failed) == 0 {
			if err := p.advanceLoadWatermark(ctx, next); err != nil {
				return "", report, err
			}
			report.Advanced = true
		} else {
			log.Warn("load watermark not advanced", "failed_partitions", len(failed))
		}
	}

	if len(failed) > 0 {
		return fmt.Sprintf("Load finished with %d failed partitions: %v", len(failed), failed), report, nil
	}
	log.Info("load complete", "inserted", report.Inserted())
	return StatusOK, report, nil
}

func (p *Pipeline) advanceLoadWatermark(ctx context.Context, next watermark.Watermark) error {
	if err := watermark.Write(ctx, p.deps.Watermarks, p.cfg.LoadWatermark, watermark.LoadLayout, next); err != nil {
		return fmt.Errorf("advance load watermark: %w", err)
	}
	p.deps.Metrics.SetWatermark(p.cfg.LoadWatermark, next.Time)
	return nil
}

// loadPartition reads the new processed objects of one table, collapses
// identical rows and inserts the rest.
func (p *Pipeline) loadPartition(ctx context.Context, table tables.Warehouse, since watermark.Watermark, log *slog.Logger) (PartitionReport, error) {
	pr := PartitionReport{Table: table}
	labels := metrics.Labels{Stage: StageLoad, Table: string(table)}

	objs, err := p.deps.Processed.List(ctx, string(table)+"/")
	if err != nil {
		return pr, err
	}

	var fresh []objectstore.Object
	for _, obj := range objs {
		if strings.HasSuffix(obj.Key, ".parquet") && since.Admits(obj.ModTime) {
			fresh = append(fresh, obj)
		}
	}
	if len(fresh) == 0 {
		log.Info("found no new files", "table", table)
		return pr, nil
	}
	pr.Files = len(fresh)
	log.Info("found new parquet files", "table", table, "files", len(fresh))

	all, err := tables.Empty(table)
	if err != nil {
		return pr, err
	}
	loads := make([]warehouse.LoadRecord, 0, len(fresh))
	for _, obj := range fresh {
		data, err := p.deps.Processed.Get(ctx, obj.Key)
		if err != nil {
			return pr, err
		}
		checksum := tables.ComputeChecksum(data)
		if err := p.verify(ctx, obj.Key, data); err != nil {
			return pr, err
		}
		set, err := tables.Decode(table, data)
		if err != nil {
			return pr, fmt.Errorf("read %s: %w", obj.Key, err)
		}
		if err := all.Append(set); err != nil {
			return pr, err
		}
		loads = append(loads, warehouse.LoadRecord{
			Table:     table,
			ObjectKey: obj.Key,
			Checksum:  checksum,
			RowCount:  int64(set.Len()),
			RunID:     logging.RunID(ctx),
		})
	}

	pr.Rows = all.Len()
	pr.Coalesced = all.Dedup()
	p.deps.Metrics.AddRowsCoalesced(labels, pr.Coalesced)

	res, err := p.deps.Warehouse.Insert(ctx, all)
	pr.Inserted, pr.Skipped = res.Inserted, res.Skipped
	p.deps.Metrics.AddRowsInserted(labels, res.Inserted)
	p.deps.Metrics.AddRowsSkipped(labels, res.Skipped)
	if err != nil {
		p.deps.Metrics.IncDatabaseErrors(labels)
		return pr, err
	}

	if !p.cfg.SkipLoadLog {
		for _, rec := range loads {
			if err := p.deps.Warehouse.RecordLoad(ctx, rec); err != nil {
				log.Warn("failed to record load", "key", rec.ObjectKey, "error", err)
			}
		}
	}

	log.Info("loaded partition",
		"table", table,
		"rows", pr.Rows,
		"coalesced", pr.Coalesced,
		"inserted", pr.Inserted,
		"skipped", pr.Skipped,
	)
	return pr, nil
}

// verify compares data with the checksum recorded when the object was
// published. Objects written without one are accepted.
func (p *Pipeline) verify(ctx context.Context, key string, data []byte) error {
	md, err := p.deps.Processed.Metadata(ctx, key)
	if err != nil {
		return err
	}
	recorded, ok := md["checksum"]
	if !ok {
		return nil
	}
	if err := tables.VerifyChecksum(data, recorded); err != nil {
		return fmt.Errorf("verify %s: %w", key, err)
	}
	return nil
}
