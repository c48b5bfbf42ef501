package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/withObsrvr/warehouse-etl/internal/metrics"
	"github.com/withObsrvr/warehouse-etl/internal/objectstore"
	"github.com/withObsrvr/warehouse-etl/internal/raw"
	"github.com/withObsrvr/warehouse-etl/internal/transform"
)

// Transform processes every record of ev: it reads the raw object, maps it
// to warehouse record sets and publishes them to the processed store.
//
// A failing record is logged and skipped. A storage fault aborts the
// invocation since every later record would hit it too.
func (p *Pipeline) Transform(ctx context.Context, ev Event) (status string, published []PublishResult, err error) {
	began := time.Now()
	defer func() { p.observe(StageTransform, began, status, err) }()

	log := p.logger(ctx, StageTransform)
	tr := transform.New(transform.NewStoreReader(p.deps.Raw), log)

	for _, rec := range ev.Records {
		results, err := p.transformRecord(ctx, tr, rec, log)
		published = append(published, results...)
		if err == nil {
			continue
		}
		table := raw.TableFromKey(rec.Key())
		if objectstore.IsStorageError(err) {
			p.deps.Metrics.IncStorageErrors(metrics.Labels{Stage: StageTransform})
			log.Error("storage error", "key", rec.Key(), "error", err)
			return "", published, fmt.Errorf("transform %s: %w", rec.Key(), err)
		}
		p.deps.Metrics.IncRecordsFailed(metrics.Labels{Table: table})
		log.Error("error processing record", "key", rec.Key(), "table", table, "error", err)
	}

	log.Info("transform complete", "records", len(ev.Records), "published", len(published))
	return StatusOK, published, nil
}

func (p *Pipeline) transformRecord(ctx context.Context, tr *transform.Transformer, rec EventRecord, log *slog.Logger) ([]PublishResult, error) {
	key := rec.Key()
	if key == "" {
		return nil, errors.New("event record has no object key")
	}
	if b := rec.Bucket(); b != "" && b != p.deps.Raw.Bucket() {
		return nil, fmt.Errorf("event for bucket %q, raw store is %q", b, p.deps.Raw.Bucket())
	}

	data, err := p.deps.Raw.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	batch, err := raw.Decode(key, data)
	if err != nil {
		return nil, err
	}

	table := raw.TableFromKey(key)
	res, err := tr.Transform(ctx, table, batch)
	if err != nil {
		return nil, fmt.Errorf("transform %s: %w", table, err)
	}
	if !res.Mapped() {
		p.deps.Metrics.IncRecordsUnmapped()
		return nil, nil
	}

	var published []PublishResult
	for _, set := range res.Sets {
		pr, err := p.publish(ctx, set, log)
		if err != nil {
			return published, err
		}
		published = append(published, *pr)
	}
	p.deps.Metrics.IncRecordsTransformed(metrics.Labels{Table: table})
	log.Info("processed record", "table", table, "kind", res.Kind, "sets", len(res.Sets))
	return published, nil
}
