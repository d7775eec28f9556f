// Package sqlite implements a key-value bucket in an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"tasktracker/internal/kv/core"
)

var _ core.Bucket = (*Bucket)(nil)

// DefaultPath is used when no path is configured.
const DefaultPath = "tasktracker-kv.db"

// Bucket stores payloads in a single kv table.
type Bucket struct {
	db   *sql.DB
	path string
}

// New opens (creating when needed) the database at path.
func New(ctx context.Context, path string) (*Bucket, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS kv (
		name TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &Bucket{db: db, path: path}, nil
}

// Driver returns the sqlite driver identifier.
func (b *Bucket) Driver() core.Driver { return core.DriverSQLite }

// Get reads the payload stored under key.
func (b *Bucket) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := b.db.QueryRowContext(ctx, `SELECT payload FROM kv WHERE name = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %s: %w", key, err)
	}
	return payload, true, nil
}

// Put upserts the payload for key.
func (b *Bucket) Put(ctx context.Context, key string, value []byte) error {
	if _, err := b.db.ExecContext(ctx,
		`INSERT INTO kv(name,payload) VALUES(?,?) ON CONFLICT(name) DO UPDATE SET payload=excluded.payload`,
		key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Path returns the configured database path.
func (b *Bucket) Path() string { return b.path }

// Close releases the database handle.
func (b *Bucket) Close() error { return b.db.Close() }
