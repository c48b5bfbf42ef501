// Package warehouse writes record sets into the star-schema warehouse.
package warehouse

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/withObsrvr/warehouse-etl/internal/database"
	"github.com/withObsrvr/warehouse-etl/internal/tables"
)

//go:embed schema.sql
var schemaSQL string

// Execer is the part of a pgx pool or connection the writer needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// InsertResult counts the outcome of one Insert call.
type InsertResult struct {
	Inserted int
	Skipped  int // rows rejected as duplicates
}

// LoadRecord describes one processed object read by the loader.
type LoadRecord struct {
	Table     tables.Warehouse
	ObjectKey string
	Checksum  string
	RowCount  int64
	RunID     string
}

// Writer inserts rows one at a time so a duplicate only costs its own row.
type Writer struct {
	db  Execer
	log *slog.Logger
}

// NewWriter creates a writer on db.
func NewWriter(db Execer, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{db: db, log: log}
}

// EnsureSchema creates the warehouse tables if they don't exist.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	if _, err := w.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	w.log.Info("warehouse schema ready", "tables", len(tables.WarehouseTables))
	return nil
}

// Insert writes every row of set. Unique violations are counted and
// skipped; any other error stops the insert and is returned with the
// counts so far.
func (w *Writer) Insert(ctx context.Context, set tables.RecordSet) (InsertResult, error) {
	var res InsertResult
	if set.Len() == 0 {
		return res, nil
	}

	query := InsertStatement(set.Table(), set.Columns())
	for i := 0; i < set.Len(); i++ {
		_, err := w.db.Exec(ctx, query, NamedArgs(set, i))
		if err == nil {
			res.Inserted++
			continue
		}
		if database.IsUniqueViolation(err) {
			res.Skipped++
			w.log.Debug("duplicate row skipped", "table", set.Table(), "row", i)
			continue
		}
		return res, fmt.Errorf("insert row %d into %s: %w", i, set.Table(), err)
	}
	return res, nil
}

// RecordLoad logs a loaded object in _etl_load_log. Reloading the same
// object replaces its entry.
func (w *Writer) RecordLoad(ctx context.Context, rec LoadRecord) error {
	query := `
		INSERT INTO _etl_load_log (
			table_name, object_key, checksum, row_count, run_id
		)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (table_name, object_key)
		DO UPDATE SET
			checksum = EXCLUDED.checksum,
			row_count = EXCLUDED.row_count,
			run_id = EXCLUDED.run_id,
			loaded_at = NOW()
	`

	var runID *string
	if rec.RunID != "" {
		runID = &rec.RunID
	}

	_, err := w.db.Exec(ctx, query,
		string(rec.Table),
		rec.ObjectKey,
		rec.Checksum,
		rec.RowCount,
		runID,
	)
	if err != nil {
		return fmt.Errorf("record load: %w", err)
	}
	return nil
}

// InsertStatement builds the named-argument insert for table. The table
// name comes from the closed tables.Warehouse enum, never from input.
func InsertStatement(table tables.Warehouse, columns []string) string {
	params := make([]string, len(columns))
	for i, c := range columns {
		params[i] = "@" + c
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(params, ", "))
}

// NamedArgs binds row i of set to its column names.
func NamedArgs(set tables.RecordSet, i int) pgx.NamedArgs {
	cols := set.Columns()
	vals := set.Values(i)
	args := make(pgx.NamedArgs, len(cols))
	for j, c := range cols {
		args[c] = vals[j]
	}
	return args
}
