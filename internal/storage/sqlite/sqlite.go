// Package sqlite implements the storage adapter on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/maintsync/maintsync/internal/errs"
	"github.com/maintsync/maintsync/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Adapter stores blobs in a single key/value table. One database file per
// device; ":memory:" works for tests.
type Adapter struct {
	db *sql.DB
}

var _ storage.Adapter = (*Adapter)(nil)

// Open opens (creating if needed) the database at path and applies pending
// embedded migrations.
func Open(ctx context.Context, path string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Adapter{db: db}, nil
}

// Close releases the underlying database handle.
func (a *Adapter) Close() error { return a.db.Close() }

// Load reads the blob stored under key.
func (a *Adapter) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := a.db.QueryRowContext(ctx, "SELECT data FROM blobs WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("blob %q: %w", key, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %q: %w", key, err)
	}
	return data, nil
}

// Save overwrites the blob stored under key.
func (a *Adapter) Save(ctx context.Context, key string, data []byte) error {
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO blobs (key, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP) ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP",
		key, data,
	)
	if err != nil {
		return fmt.Errorf("write blob %q: %w", key, err)
	}
	return nil
}
