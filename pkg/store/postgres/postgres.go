package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

type Settings struct {
	DSN             string
	MaxConns        int32
	MaxConnIdleTime time.Duration
	Migrate         bool
}

func DefaultSettings() Settings {
	return Settings{MaxConns: 10, MaxConnIdleTime: 5 * time.Minute}
}

// NewDB opens a pgx pool and exposes it as *sql.DB so every store in the
// repo runs unchanged on either backend.
func NewDB(ctx context.Context, settings Settings) (*sql.DB, *pgxpool.Pool, error) {
	if settings.DSN == "" {
		return nil, nil, fmt.Errorf("postgres dsn is required")
	}

	cfg, err := pgxpool.ParseConfig(settings.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if settings.MaxConns > 0 {
		cfg.MaxConns = settings.MaxConns
	}
	if settings.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = settings.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	if settings.Migrate {
		if err := Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	return stdlib.OpenDBFromPool(pool), pool, nil
}

// Migrate creates the reporting tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, q := range bootQueries {
		if _, err := pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
