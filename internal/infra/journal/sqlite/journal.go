// Package sqlite persists export journal entries in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"catalogcore/internal/journal/core"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const defaultPath = "catalogcore-journal.db"

// Journal writes one row per export.
type Journal struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// New opens (creating if needed) the database at path and ensures the
// exports table exists.
func New(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS exports (
		id TEXT PRIMARY KEY,
		key TEXT NOT NULL,
		source TEXT NOT NULL,
		etag TEXT NOT NULL,
		size INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		warnings INTEGER NOT NULL,
		changes INTEGER NOT NULL,
		recorded_at TIMESTAMP NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create exports table: %w", err)
	}
	return &Journal{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file location.
func (j *Journal) Path() string { return j.path }

func (j *Journal) Driver() core.Driver { return core.DriverSQLite }

// Record inserts entry.
func (j *Journal) Record(ctx context.Context, entry core.Entry) error {
	e := core.Prepare(entry, j.now())
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO exports (id, key, source, etag, size, errors, warnings, changes, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.Key, e.Source, e.ETag, e.Size, e.Errors, e.Warnings, e.Changes, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert export: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first.
func (j *Journal) List(ctx context.Context, limit int) ([]core.Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, key, source, etag, size, errors, warnings, changes, recorded_at
		FROM exports ORDER BY recorded_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select exports: %w", err)
	}
	return core.ScanEntries(rows)
}

func (j *Journal) Close() error { return j.db.Close() }
