package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/withObsrvr/warehouse-etl/internal/database"
	"github.com/withObsrvr/warehouse-etl/internal/metrics"
	"github.com/withObsrvr/warehouse-etl/internal/objectstore"
	"github.com/withObsrvr/warehouse-etl/internal/raw"
	"github.com/withObsrvr/warehouse-etl/internal/tables"
	"github.com/withObsrvr/warehouse-etl/internal/watermark"
)

// Extract copies every source row changed since the extract watermark into
// the raw store, one object per table, then advances the watermark to the
// time the run started. It returns the keys it wrote.
//
// A database fault is a handled failure: the status carries the error and
// the watermark stays where it was.
func (p *Pipeline) Extract(ctx context.Context) (status string, keys []string, err error) {
	began := time.Now()
	defer func() { p.observe(StageExtract, began, status, err) }()

	log := p.logger(ctx, StageExtract)
	start := p.now()

	since, err := watermark.Read(ctx, p.deps.Watermarks, p.cfg.ExtractWatermark, watermark.ExtractLayout)
	if err != nil {
		return "", nil, fmt.Errorf("read extract watermark: %w", err)
	}
	log.Info("starting extraction", "previous_run", since.String())

	for _, table := range tables.SourceTables {
		rows, err := p.deps.Source.Rows(ctx, table, since)
		if err != nil {
			if database.IsDatabaseError(err) {
				p.deps.Metrics.IncDatabaseErrors(metrics.Labels{Stage: StageExtract})
				log.Error("Database Error", "table", table, "error", err)
				return "Database Error: " + err.Error(), keys, nil
			}
			return "", keys, fmt.Errorf("extract %s: %w", table, err)
		}
		if len(rows) == 0 {
			log.Info("no new data", "table", table)
			continue
		}

		data, err := raw.Encode(rows, p.cfg.RawCompression)
		if err != nil {
			return "", keys, fmt.Errorf("encode %s: %w", table, err)
		}

		key := raw.Key(table, start, p.cfg.RawCompression)
		if err := p.deps.Raw.Put(ctx, key, data, objectstore.PutOptions{
			ContentType: "application/json",
			Metadata: map[string]string{
				"table":     string(table),
				"row_count": strconv.Itoa(len(rows)),
			},
		}); err != nil {
			p.deps.Metrics.IncStorageErrors(metrics.Labels{Stage: StageExtract})
			return "", keys, fmt.Errorf("write %s: %w", table, err)
		}

		keys = append(keys, key)
		p.deps.Metrics.AddRowsExtracted(metrics.Labels{Table: string(table)}, len(rows))
		p.deps.Metrics.IncObjectsWritten(metrics.Labels{Stage: StageExtract, Table: string(table)})
		log.Info("wrote raw object", "table", table, "rows", len(rows), "key", key)
	}

	next := watermark.At(start, watermark.ExtractLayout)
	if err := watermark.Write(ctx, p.deps.Watermarks, p.cfg.ExtractWatermark, watermark.ExtractLayout, next); err != nil {
		return "", keys, fmt.Errorf("advance extract watermark: %w", err)
	}
	p.deps.Metrics.SetWatermark(p.cfg.ExtractWatermark, next.Time)
	log.Info("extraction complete", "objects", len(keys), "watermark", next.String())

	return StatusOK, keys, nil
}
