package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/withObsrvr/warehouse-etl/internal/objectstore"
	"github.com/withObsrvr/warehouse-etl/internal/raw"
	"github.com/withObsrvr/warehouse-etl/internal/tables"
	"github.com/withObsrvr/warehouse-etl/internal/warehouse"
	"github.com/withObsrvr/warehouse-etl/internal/watermark"
)

// fixedNow is the clock every test pipeline runs on.
var fixedNow = time.Date(2024, 1, 2, 10, 30, 45, 0, time.UTC)

// mockSource implements RowSource for testing
type mockSource struct {
	mu     sync.Mutex
	rows   map[tables.Source][]string
	errs   map[tables.Source]error
	calls  []tables.Source
	sinces []watermark.Watermark
}

func (m *mockSource) Rows(ctx context.Context, table tables.Source, since watermark.Watermark) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, table)
	m.sinces = append(m.sinces, since)
	if err := m.errs[table]; err != nil {
		return nil, err
	}
	var out []json.RawMessage
	for _, r := range m.rows[table] {
		out = append(out, json.RawMessage(r))
	}
	return out, nil
}

// mockWarehouse keeps the first column of each row as its primary key and
// rejects repeats with a unique violation, like the real tables.
type mockWarehouse struct {
	mu      sync.Mutex
	keys    map[tables.Warehouse]map[any]bool
	fail    map[tables.Warehouse]error
	loads   []warehouse.LoadRecord
	inserts int
}

func newMockWarehouse() *mockWarehouse {
	return &mockWarehouse{
		keys: make(map[tables.Warehouse]map[any]bool),
		fail: make(map[tables.Warehouse]error),
	}
}

func (m *mockWarehouse) Insert(ctx context.Context, set tables.RecordSet) (warehouse.InsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res warehouse.InsertResult
	if err := m.fail[set.Table()]; err != nil {
		return res, err
	}
	if m.keys[set.Table()] == nil {
		m.keys[set.Table()] = make(map[any]bool)
	}
	for i := 0; i < set.Len(); i++ {
		m.inserts++
		pk := set.Values(i)[0]
		if m.keys[set.Table()][pk] {
			res.Skipped++
			continue
		}
		m.keys[set.Table()][pk] = true
		res.Inserted++
	}
	return res, nil
}

func (m *mockWarehouse) RecordLoad(ctx context.Context, rec warehouse.LoadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads = append(m.loads, rec)
	return nil
}

func (m *mockWarehouse) count(table tables.Warehouse) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys[table])
}

var dbFault = &pgconn.PgError{Code: "57P01", Message: "terminating connection due to administrator command"}

type testEnv struct {
	pipeline   *Pipeline
	source     *mockSource
	raw        *objectstore.Store
	processed  *objectstore.Store
	watermarks *watermark.MemoryStore
	warehouse  *mockWarehouse
}

func newTestEnv(t *testing.T, cfg Config, params map[string]string) *testEnv {
	t.Helper()
	ctx := context.Background()

	rawStore, err := objectstore.Open(ctx, objectstore.Config{Backend: "mem"})
	if err != nil {
		t.Fatalf("open raw store: %v", err)
	}
	processed, err := objectstore.Open(ctx, objectstore.Config{Backend: "mem"})
	if err != nil {
		t.Fatalf("open processed store: %v", err)
	}
	t.Cleanup(func() {
		rawStore.Close()
		processed.Close()
	})

	env := &testEnv{
		source:     &mockSource{rows: map[tables.Source][]string{}, errs: map[tables.Source]error{}},
		raw:        rawStore,
		processed:  processed,
		watermarks: watermark.NewMemoryStore(params),
		warehouse:  newMockWarehouse(),
	}
	env.pipeline = New(Deps{
		Source:     env.source,
		Raw:        env.raw,
		Processed:  env.processed,
		Watermarks: env.watermarks,
		Warehouse:  env.warehouse,
		Log:        testLogger(),
		Now:        func() time.Time { return fixedNow },
	}, cfg)
	return env
}

// testLogger returns a logger that discards output
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (e *testEnv) putRaw(t *testing.T, table tables.Source, rows ...string) string {
	t.Helper()
	msgs := make([]json.RawMessage, len(rows))
	for i, r := range rows {
		msgs[i] = json.RawMessage(r)
	}
	data, err := raw.Encode(msgs, "none")
	if err != nil {
		t.Fatalf("encode raw: %v", err)
	}
	key := raw.Key(table, fixedNow, "none")
	if err := e.raw.Put(context.Background(), key, data, objectstore.PutOptions{}); err != nil {
		t.Fatalf("put raw: %v", err)
	}
	return key
}

func (e *testEnv) putProcessed(t *testing.T, key string, set tables.RecordSet) {
	t.Helper()
	data, err := set.Encode(tables.DefaultParquetConfig())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := e.processed.Put(context.Background(), key, data, objectstore.PutOptions{}); err != nil {
		t.Fatalf("put processed: %v", err)
	}
}

func (e *testEnv) param(t *testing.T, name string) string {
	t.Helper()
	v, err := e.watermarks.Get(context.Background(), name)
	if err != nil {
		t.Fatalf("get %s: %v", name, err)
	}
	return v
}

const paymentRow = `{"payment_id":1,"created_at":"2022-11-03T14:20:52.186","last_updated":"2022-11-03T15:20:52.186","transaction_id":1,"counterparty_id":1,"payment_amount":42.50,"currency_id":2,"payment_type_id":1,"paid":true,"payment_date":"2022-11-07"}`

const designRow = `{"design_id":8,"created_at":"2022-11-03T14:20:49.962","last_updated":"2022-11-03T14:20:49.962","design_name":"Wooden","file_location":"/usr","file_name":"wooden-20220717-npgz.json"}`

const salesOrderRow = `{"sales_order_id":2,"created_at":"2022-11-03T14:20:52.186","last_updated":"2022-11-03T14:20:52.186","design_id":3,"staff_id":19,"counterparty_id":8,"units_sold":42972,"unit_price":3.94,"currency_id":2,"agreed_delivery_date":"2022-11-07","agreed_payment_date":"2022-11-08","agreed_delivery_location_id":8}`
