package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"memory-match/matcherrors"
)

const createKVTableSQL = `
CREATE TABLE IF NOT EXISTS kv_store (
	k          TEXT PRIMARY KEY,
	v          BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_kv_store_updated_at ON kv_store(updated_at);
`

// PGKV stores values in Postgres through a pgx pool.
type PGKV struct {
	pool *pgxpool.Pool
}

// NewPGKV connects to Postgres and ensures the kv_store table exists.
func NewPGKV(ctx context.Context, databaseURL string) (*PGKV, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("%w: database_url is empty", matcherrors.ErrStorageUnavailable)
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	for _, q := range strings.Split(strings.TrimSpace(createKVTableSQL), ";") {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, err := pool.Exec(ctx, q); err != nil {
			pool.Close()
			return nil, err
		}
	}
	slog.Info("connected to Postgres", "tag", "storage")
	return &PGKV{pool: pool}, nil
}

func (p *PGKV) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := p.pool.QueryRow(ctx, `SELECT v FROM kv_store WHERE k = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, matcherrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", matcherrors.ErrStorageUnavailable, err)
	}
	return v, nil
}

func (p *PGKV) Put(ctx context.Context, key string, value []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO kv_store (k, v, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v, updated_at = now()`, key, value)
	if err != nil {
		return fmt.Errorf("%w: %w", matcherrors.ErrStorageUnavailable, err)
	}
	return nil
}

func (p *PGKV) Delete(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM kv_store WHERE k = $1`, key); err != nil {
		return fmt.Errorf("%w: %w", matcherrors.ErrStorageUnavailable, err)
	}
	return nil
}

// Close closes the connection pool.
func (p *PGKV) Close() error {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
	return nil
}
