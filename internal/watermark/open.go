package watermark

import (
	"context"
	"fmt"

	"github.com/withObsrvr/warehouse-etl/internal/database"
)

// Config configures the parameter store backend.
type Config struct {
	Backend  string // "ssm" | "postgres" | "file" | "memory"
	Dir      string // file backend
	Region   string // ssm backend
	Endpoint string // ssm backend, optional
	DSN      string // postgres backend
}

// Open creates the configured store. The returned close function releases
// any connection the store holds.
func Open(ctx context.Context, cfg Config) (Store, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case "file":
		if cfg.Dir == "" {
			return nil, noop, fmt.Errorf("Dir required for file watermark backend")
		}
		s, err := NewFileStore(cfg.Dir)
		return s, noop, err
	case "ssm":
		s, err := NewSSMStore(ctx, cfg.Region, cfg.Endpoint)
		return s, noop, err
	case "postgres":
		if cfg.DSN == "" {
			return nil, noop, fmt.Errorf("DSN required for postgres watermark backend")
		}
		pool, err := database.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, noop, fmt.Errorf("open watermark database: %w", err)
		}
		s, err := NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		return s, pool.Close, nil
	case "memory":
		return NewMemoryStore(nil), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown watermark backend: %s", cfg.Backend)
	}
}
