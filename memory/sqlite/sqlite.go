// Package sqlite provides a durable core.MemoryStore on an embedded SQLite
// database (pure Go driver). Values are stored as JSON.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/memory"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	version    INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

const upsert = `
INSERT INTO records (key, value, version, updated_at) VALUES (?, ?, 1, ?)
ON CONFLICT(key) DO UPDATE SET
	value = excluded.value,
	version = records.version + 1,
	updated_at = excluded.updated_at
RETURNING version`

// Store is a SQLite-backed MemoryStore.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a private in-process database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}

	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Store upserts key in a single statement so the version bump is atomic.
func (s *Store) Store(ctx context.Context, key string, value any) (uint64, error) {
	raw, err := memory.EncodeValue("store", key, value)
	if err != nil {
		return 0, err
	}
	var version uint64
	if err := s.db.QueryRowContext(ctx, upsert, key, string(raw), s.now().UnixNano()).Scan(&version); err != nil {
		return 0, core.BackendError("store", key, err)
	}
	return version, nil
}

// Load reads the current record for key.
func (s *Store) Load(ctx context.Context, key string) (core.Record, error) {
	var (
		raw     string
		version uint64
		at      int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, version, updated_at FROM records WHERE key = ?`, key,
	).Scan(&raw, &version, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, core.NotFoundError("load", key)
	}
	if err != nil {
		return core.Record{}, core.BackendError("load", key, err)
	}
	v, err := memory.DecodeValue("load", key, []byte(raw))
	if err != nil {
		return core.Record{}, err
	}
	return core.Record{Key: key, Value: v, Version: version, UpdatedAt: time.Unix(0, at).UTC()}, nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key)
	if err != nil {
		return core.BackendError("remove", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.BackendError("remove", key, err)
	}
	if n == 0 {
		return core.NotFoundError("remove", key)
	}
	return nil
}

// Keys lists every stored key.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM records`)
	if err != nil {
		return nil, core.BackendError("keys", "", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, core.BackendError("keys", "", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, core.BackendError("keys", "", err)
	}
	return keys, nil
}
