package transform

import (
	"context"

	"github.com/withObsrvr/warehouse-etl/internal/objectstore"
	"github.com/withObsrvr/warehouse-etl/internal/raw"
	"github.com/withObsrvr/warehouse-etl/internal/tables"
)

// StoreReader reads reference tables from the raw object store.
type StoreReader struct {
	store *objectstore.Store
}

// NewStoreReader creates a reader over the raw store.
func NewStoreReader(store *objectstore.Store) *StoreReader {
	return &StoreReader{store: store}
}

// ReadAll concatenates every object under the table's prefix in key order.
func (r *StoreReader) ReadAll(ctx context.Context, table tables.Source) (raw.Batch, error) {
	objs, err := r.store.List(ctx, string(table)+"/")
	if err != nil {
		return nil, err
	}

	var all raw.Batch
	for _, obj := range objs {
		data, err := r.store.Get(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		batch, err := raw.Decode(obj.Key, data)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
	}
	return all, nil
}
