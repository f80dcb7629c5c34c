package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"catalogcore/internal/journal/core"
)

func TestRecordFillsIdentity(t *testing.T) {
	j := New()
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	j.now = func() time.Time { return fixed }

	if err := j.Record(context.Background(), core.Entry{Key: "catalog.json"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	entries, err := j.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if entries[0].ID == uuid.Nil {
		t.Fatalf("ID not assigned")
	}
	if !entries[0].RecordedAt.Equal(fixed) || entries[0].RecordedAt.Location() != time.UTC {
		t.Fatalf("expected %v in UTC, got %v", fixed, entries[0].RecordedAt)
	}
}

func TestListLimitAndOrder(t *testing.T) {
	ctx := context.Background()
	j := New()
	for _, key := range []string{"one", "two", "three"} {
		if err := j.Record(ctx, core.Entry{Key: key}); err != nil {
			t.Fatalf("record %s: %v", key, err)
		}
	}
	entries, err := j.List(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].Key != "three" || entries[1].Key != "two" {
		t.Fatalf("expected three, two; got %+v", entries)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	j := New()
	if err := j.Record(ctx, core.Entry{Key: "x"}); err == nil {
		t.Fatalf("record should fail on a cancelled context")
	}
	if _, err := j.List(ctx, 0); err == nil {
		t.Fatalf("list should fail on a cancelled context")
	}
}
