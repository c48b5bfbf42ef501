package source

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/withObsrvr/warehouse-etl/internal/tables"
	"github.com/withObsrvr/warehouse-etl/internal/watermark"
)

// fakeRows serves pre-baked JSON rows through the pgx.Rows interface.
type fakeRows struct {
	data   []string
	pos    int
	closed bool
	err    error
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	raw := dest[0].(*json.RawMessage)
	*raw = json.RawMessage(r.data[r.pos-1])
	return nil
}

type mockQuerier struct {
	mu    sync.Mutex
	sql   string
	args  []any
	rows  *fakeRows
	err   error
	calls int
}

func (m *mockQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.sql = sql
	m.args = args
	if m.err != nil {
		return nil, m.err
	}
	return m.rows, nil
}

func TestBuildQuerySentinelHasNoWhere(t *testing.T) {
	query, args, err := BuildQuery(tables.SourceDesign, watermark.None())
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if query != "SELECT row_to_json(design) FROM design" {
		t.Errorf("query = %q", query)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
}

func TestBuildQueryWithWatermark(t *testing.T) {
	since := watermark.At(time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC), watermark.ExtractLayout)
	query, args, err := BuildQuery(tables.SourceSalesOrder, since)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if query != "SELECT row_to_json(sales_order) FROM sales_order WHERE last_updated > $1" {
		t.Errorf("query = %q", query)
	}
	if len(args) != 1 || !args[0].(time.Time).Equal(since.Time) {
		t.Errorf("args = %v, want [%v]", args, since.Time)
	}
}

func TestBuildQueryRejectsUnknownTable(t *testing.T) {
	_, _, err := BuildQuery(tables.Source("users; DROP TABLE staff"), watermark.None())
	if !errors.Is(err, ErrInvalidTable) {
		t.Errorf("err = %v, want ErrInvalidTable", err)
	}
}

func TestRowsCollectsJSON(t *testing.T) {
	db := &mockQuerier{rows: &fakeRows{data: []string{
		`{"currency_id":1,"currency_code":"GBP"}`,
		`{"currency_id":2,"currency_code":"USD"}`,
	}}}

	got, err := NewPostgresSource(db).Rows(context.Background(), tables.SourceCurrency, watermark.None())
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(got) != 2 || string(got[1]) != `{"currency_id":2,"currency_code":"USD"}` {
		t.Errorf("rows = %s", got)
	}
	if !db.rows.closed {
		t.Error("rows were not closed")
	}
}

func TestRowsWrapsQueryErrors(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
	db := &mockQuerier{err: pgErr}

	_, err := NewPostgresSource(db).Rows(context.Background(), tables.SourceStaff, watermark.None())
	var got *pgconn.PgError
	if !errors.As(err, &got) {
		t.Fatalf("err = %v, want wrapped PgError", err)
	}
}

func TestRowsReportsIterationErrors(t *testing.T) {
	db := &mockQuerier{rows: &fakeRows{err: errors.New("conn reset")}}
	if _, err := NewPostgresSource(db).Rows(context.Background(), tables.SourceStaff, watermark.None()); err == nil {
		t.Fatal("expected error")
	}
}
