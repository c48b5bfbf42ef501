package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/withObsrvr/warehouse-etl/internal/metrics"
	"github.com/withObsrvr/warehouse-etl/internal/objectstore"
	"github.com/withObsrvr/warehouse-etl/internal/tables"
)

// ErrValidation is returned when a record set fails validation.
var ErrValidation = errors.New("record set failed validation")

// PublishResult describes one processed object written to storage.
type PublishResult struct {
	Table     tables.Warehouse
	Key       string
	Checksum  string
	RowCount  int
	ByteSize  int
	Published time.Time
}

// ProcessedKey returns the processed object key for table written at t.
func ProcessedKey(table tables.Warehouse, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s/transformed/%s/%s-%s.parquet", table, t.Format("2006/01/02"), t.Format("15_04"), table)
}

// TableFromProcessedKey returns the warehouse table a processed key
// belongs to.
func TableFromProcessedKey(key string) (tables.Warehouse, bool) {
	prefix, _, _ := strings.Cut(key, "/")
	return tables.ParseWarehouse(prefix)
}

// publish encodes, validates and writes one record set. Keys have minute
// resolution, so a second publish of the same table within a minute
// replaces the first.
func (p *Pipeline) publish(ctx context.Context, set tables.RecordSet, log *slog.Logger) (*PublishResult, error) {
	data, err := set.Encode(p.cfg.Parquet)
	if err != nil {
		return nil, fmt.Errorf("generate parquet: %w", err)
	}
	checksum := tables.ComputeChecksum(data)

	result := ValidateRecordSet(set, data, checksum)
	for _, w := range result.Warnings {
		log.Warn("validation warning", "table", set.Table(), "warning", w)
	}
	if !result.Passed {
		return nil, fmt.Errorf("%w: %s: %s", ErrValidation, set.Table(), strings.Join(result.Errors, "; "))
	}

	now := p.now()
	key := ProcessedKey(set.Table(), now)
	if err := p.deps.Processed.Put(ctx, key, data, objectstore.PutOptions{
		ContentType: "application/vnd.apache.parquet",
		Metadata: map[string]string{
			"table":          string(set.Table()),
			"row_count":      strconv.Itoa(set.Len()),
			"checksum":       checksum,
			"schema_version": tables.SchemaVersion,
			"producer":       "warehouse-etl@" + Version,
		},
	}); err != nil {
		p.deps.Metrics.IncStorageErrors(metrics.Labels{Stage: StageTransform})
		return nil, fmt.Errorf("write parquet %s: %w", set.Table(), err)
	}

	p.deps.Metrics.IncObjectsWritten(metrics.Labels{Stage: StageTransform, Table: string(set.Table())})
	log.Info("wrote table",
		"table", set.Table(),
		"rows", set.Len(),
		"bytes", len(data),
		"checksum", checksum,
		"key", key,
	)

	return &PublishResult{
		Table:     set.Table(),
		Key:       key,
		Checksum:  checksum,
		RowCount:  set.Len(),
		ByteSize:  len(data),
		Published: now,
	}, nil
}
