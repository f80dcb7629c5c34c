// Package postgres persists export journal entries in Postgres through the
// pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"catalogcore/internal/journal/core"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/catalogcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Journal writes one row per export.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// New connects to dsn (falling back to a local default) and ensures the
// exports table exists.
func New(ctx context.Context, dsn string) (*Journal, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS catalog_exports (
		id UUID PRIMARY KEY,
		key TEXT NOT NULL,
		source TEXT NOT NULL,
		etag TEXT NOT NULL,
		size BIGINT NOT NULL,
		errors INTEGER NOT NULL,
		warnings INTEGER NOT NULL,
		changes INTEGER NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure exports table: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

// OverrideSQLOpen swaps the connection constructor and returns a restore
// function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

func (j *Journal) Driver() core.Driver { return core.DriverPostgres }

// DB exposes the underlying pool for integration hooks.
func (j *Journal) DB() *sql.DB { return j.db }

// Record inserts entry.
func (j *Journal) Record(ctx context.Context, entry core.Entry) error {
	e := core.Prepare(entry, j.now())
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO catalog_exports (id, key, source, etag, size, errors, warnings, changes, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID.String(), e.Key, e.Source, e.ETag, e.Size, e.Errors, e.Warnings, e.Changes, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert export: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first.
func (j *Journal) List(ctx context.Context, limit int) ([]core.Entry, error) {
	query := `SELECT id::text, key, source, etag, size, errors, warnings, changes, recorded_at
		FROM catalog_exports ORDER BY recorded_at DESC`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = j.db.QueryContext(ctx, query+` LIMIT $1`, limit)
	} else {
		rows, err = j.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("select exports: %w", err)
	}
	return core.ScanEntries(rows)
}

func (j *Journal) Close() error { return j.db.Close() }
