package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps every table in a single kv_documents relation keyed by
// (tbl, key). The schema is created by database.EnsureSchema.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. Close releases the pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Get(ctx context.Context, table, key string) ([]byte, error) {
	var val []byte
	err := p.pool.QueryRow(ctx, `SELECT value FROM kv_documents WHERE tbl=$1 AND key=$2`, table, key).Scan(&val)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	return val, nil
}

func (p *PostgresStore) Put(ctx context.Context, table string, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range entries {
			batch.Queue(`
				INSERT INTO kv_documents (tbl, key, value, updated_at)
				VALUES ($1,$2,$3,$4)
				ON CONFLICT (tbl, key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at
			`, table, e.Key, e.Value, now)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("insert documents: %w", err)
	}
	return nil
}

func (p *PostgresStore) Update(ctx context.Context, table, key string, fn UpdateFunc) error {
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var cur []byte
		err := tx.QueryRow(ctx, `SELECT value FROM kv_documents WHERE tbl=$1 AND key=$2 FOR UPDATE`, table, key).Scan(&cur)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE kv_documents SET value=$1, updated_at=$2 WHERE tbl=$3 AND key=$4`,
			next, time.Now().UTC(), table, key)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

// Scan visits rows in insertion order.
func (p *PostgresStore) Scan(ctx context.Context, table string, fn func(string, []byte) error) error {
	rows, err := p.pool.Query(ctx, `SELECT key, value FROM kv_documents WHERE tbl=$1 ORDER BY seq`, table)
	if err != nil {
		return fmt.Errorf("scan documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			val []byte
		)
		if err := rows.Scan(&key, &val); err != nil {
			return fmt.Errorf("scan document row: %w", err)
		}
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
