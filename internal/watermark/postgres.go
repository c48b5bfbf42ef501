package watermark

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const createParamsTable = `
CREATE TABLE IF NOT EXISTS _etl_watermarks (
    name       TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps parameters in a table of the warehouse database.
type PostgresStore struct {
	db querier
}

// NewPostgresStore ensures the parameter table exists.
func NewPostgresStore(ctx context.Context, db querier) (*PostgresStore, error) {
	if _, err := db.Exec(ctx, createParamsTable); err != nil {
		return nil, fmt.Errorf("create watermark table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Get(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.QueryRow(ctx, `SELECT value FROM _etl_watermarks WHERE name = $1`, name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select watermark: %w", err)
	}
	return value, nil
}

func (s *PostgresStore) Put(ctx context.Context, name, value string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO _etl_watermarks (name, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, name, value)
	if err != nil {
		return fmt.Errorf("upsert watermark: %w", err)
	}
	return nil
}
