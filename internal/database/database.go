package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// ConnectWithRetry keeps calling Connect with exponential backoff until the
// database answers, maxElapsed passes, or ctx ends. Compose brings postgres up
// alongside the API, so the first attempts usually fail.
func ConnectWithRetry(ctx context.Context, dsn string, maxElapsed time.Duration) (*pgxpool.Pool, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond
	expBackoff.MaxElapsedTime = maxElapsed

	var pool *pgxpool.Pool
	operation := func() error {
		var err error
		pool, err = Connect(ctx, dsn)
		return err
	}
	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		return nil, fmt.Errorf("connect after retries: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the document table backing kv.PostgresStore. Sessions
// and objects share it, separated by the tbl column; seq preserves insertion
// order for scans.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS kv_documents (
	tbl TEXT NOT NULL,
	key TEXT NOT NULL,
	value JSONB NOT NULL,
	seq BIGSERIAL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tbl, key)
);
CREATE INDEX IF NOT EXISTS idx_kv_documents_tbl_seq ON kv_documents(tbl, seq);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
