// Package journal records confirmed exports and selects a journal driver
// from configuration.
package journal

import (
	"context"
	"fmt"

	"catalogcore/internal/config"
	"catalogcore/internal/infra/journal/memory"
	"catalogcore/internal/infra/journal/postgres"
	"catalogcore/internal/infra/journal/sqlite"
	"catalogcore/internal/journal/core"
)

type (
	// Entry records one confirmed export.
	Entry = core.Entry
	// Journal stores export entries.
	Journal = core.Journal
	// Driver identifies a journal backend.
	Driver = core.Driver
)

const (
	DriverMemory   = core.DriverMemory
	DriverSQLite   = core.DriverSQLite
	DriverPostgres = core.DriverPostgres
)

// Open builds the journal selected by cfg.
func Open(ctx context.Context, cfg config.Journal) (Journal, error) {
	switch Driver(cfg.Driver) {
	case DriverMemory, "":
		return memory.New(), nil
	case DriverSQLite:
		return sqlite.New(ctx, cfg.SQLitePath)
	case DriverPostgres:
		return postgres.New(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown journal driver %s", cfg.Driver)
	}
}

// NewMemory returns an empty in-memory journal.
func NewMemory() Journal { return memory.New() }
