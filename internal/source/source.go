// Package source reads changed rows from the operational PostgreSQL
// database.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/withObsrvr/warehouse-etl/internal/tables"
	"github.com/withObsrvr/warehouse-etl/internal/watermark"
)

// ErrInvalidTable is returned for a table outside the source enum.
var ErrInvalidTable = errors.New("invalid source table")

// Querier is the part of a pgx pool the source needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource returns rows as JSON objects built by the server.
type PostgresSource struct {
	db Querier
}

// NewPostgresSource creates a source on db.
func NewPostgresSource(db Querier) *PostgresSource {
	return &PostgresSource{db: db}
}

// BuildQuery returns the select for table and its arguments. The sentinel
// watermark selects every row.
func BuildQuery(table tables.Source, since watermark.Watermark) (string, []any, error) {
	if _, ok := tables.ParseSource(string(table)); !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	query := fmt.Sprintf("SELECT row_to_json(%[1]s) FROM %[1]s", table)
	if !since.Set {
		return query, nil, nil
	}
	return query + " WHERE last_updated > $1", []any{since.Time}, nil
}

// Rows returns every row of table updated after since.
func (s *PostgresSource) Rows(ctx context.Context, table tables.Source, since watermark.Watermark) ([]json.RawMessage, error) {
	query, args, err := BuildQuery(table, since)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var row json.RawMessage
		if err := rows.Scan(&row); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return out, nil
}
