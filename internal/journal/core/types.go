// Package core defines the export journal entry and the interface the
// infra/journal drivers implement.
package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Driver identifies a journal backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Entry records one confirmed export.
type Entry struct {
	ID         uuid.UUID `json:"id"`
	Key        string    `json:"key"`
	Source     string    `json:"source"`
	ETag       string    `json:"etag,omitempty"`
	Size       int64     `json:"size_bytes"`
	Errors     int       `json:"errors"`
	Warnings   int       `json:"warnings"`
	Changes    int       `json:"changes"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Journal stores export entries. List returns the newest entries first; a
// limit of zero or less returns all of them.
type Journal interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
	Driver() Driver
	Close() error
}

// Prepare fills a missing ID and timestamp.
func Prepare(entry Entry, now time.Time) Entry {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = now.UTC()
	}
	return entry
}

// ScanEntries reads rows selected in column order id, key, source, etag,
// size, errors, warnings, changes, recorded_at.
func ScanEntries(rows *sql.Rows) ([]Entry, error) {
	defer func() { _ = rows.Close() }()
	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			id string
		)
		if err := rows.Scan(&id, &e.Key, &e.Source, &e.ETag, &e.Size, &e.Errors, &e.Warnings, &e.Changes, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("journal entry id %q: %w", id, err)
		}
		e.ID = parsed
		e.RecordedAt = e.RecordedAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return out, nil
}
