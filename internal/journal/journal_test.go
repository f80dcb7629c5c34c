package journal

import (
	"context"
	"path/filepath"
	"testing"

	"catalogcore/internal/config"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	mem, err := Open(ctx, config.Journal{Driver: "memory"})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if mem.Driver() != DriverMemory {
		t.Fatalf("expected memory driver, got %s", mem.Driver())
	}

	lite, err := Open(ctx, config.Journal{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "j.db")})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = lite.Close() })
	if lite.Driver() != DriverSQLite {
		t.Fatalf("expected sqlite driver, got %s", lite.Driver())
	}

	if _, err := Open(ctx, config.Journal{Driver: "etcd"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestMemoryJournalRoundTrip(t *testing.T) {
	ctx := context.Background()
	j := NewMemory()
	for _, e := range []Entry{{Key: "a.json", Changes: 1}, {Key: "b.json", Changes: 2}} {
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("record %s: %v", e.Key, err)
		}
	}

	entries, err := j.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].Key != "b.json" {
		t.Fatalf("expected newest first, got %+v", entries)
	}
	if entries[0].ID == entries[1].ID || entries[0].RecordedAt.IsZero() {
		t.Fatalf("identity not filled: %+v", entries)
	}
}
