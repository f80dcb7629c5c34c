// Package memory keeps export journal entries in process memory.
package memory

import (
	"context"
	"sync"
	"time"

	"catalogcore/internal/journal/core"
)

// Journal is a mutex guarded in-memory journal.
type Journal struct {
	mu      sync.Mutex
	entries []core.Entry
	now     func() time.Time
}

// New returns an empty journal.
func New() *Journal {
	return &Journal{now: time.Now}
}

func (j *Journal) Driver() core.Driver { return core.DriverMemory }

// Record appends entry.
func (j *Journal) Record(ctx context.Context, entry core.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, core.Prepare(entry, j.now()))
	return nil
}

// List returns up to limit entries, newest first.
func (j *Journal) List(ctx context.Context, limit int) ([]core.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	n := len(j.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]core.Entry, 0, n)
	for i := len(j.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, j.entries[i])
	}
	return out, nil
}

func (j *Journal) Close() error { return nil }
