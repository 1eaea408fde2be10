// Package postgres provides a durable core.MemoryStore on PostgreSQL using a
// pgx connection pool. Values are stored as jsonb.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/memory"
)

// DefaultTable is the table used when Options.Table is empty.
const DefaultTable = "kernel_records"

// Options configures the store.
type Options struct {
	Table string
}

// Store is a PostgreSQL-backed MemoryStore.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// Connect creates a pool for dsn and returns a migrated store. The caller owns
// the pool lifetime through Close.
func Connect(ctx context.Context, dsn string, optFns ...func(o *Options)) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	s := NewStore(pool, optFns...)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewStore creates a Store on an existing pool. Call Migrate before use.
func NewStore(pool *pgxpool.Pool, optFns ...func(o *Options)) *Store {
	opts := Options{Table: DefaultTable}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{pool: pool, table: pgx.Identifier{opts.Table}.Sanitize()}
}

// Migrate creates the records table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key        TEXT PRIMARY KEY,
			value      JSONB NOT NULL,
			version    BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, s.table))
	if err != nil {
		return fmt.Errorf("create records table: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (s *Store) Close() { s.pool.Close() }

// Store upserts key; the version bump happens inside one statement.
func (s *Store) Store(ctx context.Context, key string, value any) (uint64, error) {
	raw, err := memory.EncodeValue("store", key, value)
	if err != nil {
		return 0, err
	}
	var version int64
	err = s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %[1]s (key, value, version, updated_at) VALUES ($1, $2::jsonb, 1, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			version = %[1]s.version + 1,
			updated_at = EXCLUDED.updated_at
		RETURNING version`, s.table), key, string(raw)).Scan(&version)
	if err != nil {
		return 0, core.BackendError("store", key, err)
	}
	return uint64(version), nil
}

// Load reads the current record for key.
func (s *Store) Load(ctx context.Context, key string) (core.Record, error) {
	var (
		raw     []byte
		version int64
		at      time.Time
	)
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT value, version, updated_at FROM %s WHERE key = $1`, s.table), key,
	).Scan(&raw, &version, &at)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Record{}, core.NotFoundError("load", key)
	}
	if err != nil {
		return core.Record{}, core.BackendError("load", key, err)
	}
	v, err := memory.DecodeValue("load", key, raw)
	if err != nil {
		return core.Record{}, err
	}
	return core.Record{Key: key, Value: v, Version: uint64(version), UpdatedAt: at.UTC()}, nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table), key)
	if err != nil {
		return core.BackendError("remove", key, err)
	}
	if tag.RowsAffected() == 0 {
		return core.NotFoundError("remove", key)
	}
	return nil
}

// Keys lists every stored key.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT key FROM %s`, s.table))
	if err != nil {
		return nil, core.BackendError("keys", "", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, core.BackendError("keys", "", err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}
