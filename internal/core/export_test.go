package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"catalogcore/internal/journal"
	"catalogcore/internal/source"
	"catalogcore/pkg/domain"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus) bool {
	for _, e := range c.entries {
		if e.Operation == op && e.Status == status {
			return true
		}
	}
	return false
}

type captureMetricsRecorder struct {
	calls map[string][]bool
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	if c.calls == nil {
		c.calls = map[string][]bool{}
	}
	c.calls[op] = append(c.calls[op], success)
}

type captureLogger struct {
	lines []string
}

func (l *captureLogger) add(level string, msg any) {
	l.lines = append(l.lines, level+" "+toString(msg))
}

func toString(msg any) string {
	if s, ok := msg.(string); ok {
		return s
	}
	return ""
}

func (l *captureLogger) Debug(msg any, _ ...any) { l.add("debug", msg) }
func (l *captureLogger) Info(msg any, _ ...any)  { l.add("info", msg) }
func (l *captureLogger) Warn(msg any, _ ...any)  { l.add("warn", msg) }
func (l *captureLogger) Error(msg any, _ ...any) { l.add("error", msg) }

func TestReviewAndConfirmExport(t *testing.T) {
	ctx := context.Background()
	j := journal.NewMemory()
	fixed := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	svc := newLoadedService(t, scenarioA, WithJournal(j), WithClock(ClockFunc(func() time.Time { return fixed })))

	if _, err := svc.Unlink(ctx, domain.EntityGroup, "g1", "w1"); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	review, err := svc.ReviewExport(ctx)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if !review.HasFindings() {
		t.Fatalf("expected the orphan finding")
	}
	if errs, warns := review.Counts(); errs != 0 || warns != 1 {
		t.Fatalf("expected one warning, got %d errors %d warnings", errs, warns)
	}
	if len(review.Changes) != 1 || review.Changes[0].Kind != domain.EntityRelation {
		t.Fatalf("expected one relation change, got %v", review.Changes)
	}
	if !review.ReviewedAt.Equal(fixed) {
		t.Fatalf("unexpected review time %v", review.ReviewedAt)
	}

	sink := source.NewMemory()
	entry, err := svc.ConfirmExport(ctx, review, sink, "catalog.edited.json")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	data, err := source.ReadAll(ctx, sink, "catalog.edited.json")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(data, review.Document) {
		t.Fatalf("written bytes differ from the review")
	}
	if entry.Changes != 1 || entry.Warnings != 1 || entry.Source != "memory" || entry.Size != int64(len(data)) {
		t.Fatalf("unexpected entry %+v", entry)
	}
	recorded, err := j.List(ctx, 0)
	if err != nil || len(recorded) != 1 || recorded[0].ID != entry.ID {
		t.Fatalf("journal not written: %+v %v", recorded, err)
	}
}

func TestConfirmRejectsStaleReview(t *testing.T) {
	ctx := context.Background()
	svc := newLoadedService(t, scenarioA)
	review, err := svc.ReviewExport(ctx)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if _, err := svc.Link(ctx, domain.EntityGroup, "g1", []string{"w9"}); err != nil {
		t.Fatalf("link: %v", err)
	}
	sink := source.NewMemory()
	if _, err := svc.ConfirmExport(ctx, review, sink, "out.json"); !errors.Is(err, ErrStaleReview) {
		t.Fatalf("expected stale review, got %v", err)
	}
	if _, err := svc.ConfirmExport(ctx, ExportReview{}, sink, "out.json"); err == nil {
		t.Fatalf("expected error for empty review")
	}
	if infos, _ := sink.List(ctx, ""); len(infos) != 0 {
		t.Fatalf("nothing should be written, got %+v", infos)
	}
}

func TestObservabilityHooks(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	logger := &captureLogger{}
	var traces bytes.Buffer
	tracer := NewJSONTracer(&traces)

	svc := newLoadedService(t, scenarioA,
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithLogger(logger),
		WithTracer(tracer),
	)
	if _, err := svc.CommitRename(ctx, domain.EntityWidget, "w1", "w1b"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := svc.CommitRename(ctx, domain.EntityWidget, "missing", "x"); err == nil {
		t.Fatalf("expected not found")
	}

	if !audit.has("load", AuditStatusSuccess) || !audit.has("commit_rename", AuditStatusSuccess) || !audit.has("commit_rename", AuditStatusError) {
		t.Fatalf("missing audit entries: %+v", audit.entries)
	}
	if got := metrics.calls["commit_rename"]; len(got) != 2 || !got[0] || got[1] {
		t.Fatalf("unexpected metrics %v", metrics.calls)
	}
	var sawError bool
	for _, line := range logger.lines {
		if line == "error catalog operation failed" {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("failure not logged: %v", logger.lines)
	}
	entries := tracer.Entries()
	if len(entries) != 3 || entries[2].Status != "error" || entries[2].Error == "" {
		t.Fatalf("unexpected spans %+v", entries)
	}
	if strings.Count(traces.String(), "\n") != 3 {
		t.Fatalf("expected three JSON lines, got %q", traces.String())
	}
}

func TestNilOptionsKeepDefaults(t *testing.T) {
	svc, err := NewService(WithClock(nil), WithLogger(nil), WithAuditRecorder(nil), WithMetricsRecorder(nil), WithTracer(nil), WithValidator(nil))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := svc.opts.logger.(noopLogger); !ok {
		t.Fatalf("expected noop logger, got %T", svc.opts.logger)
	}
	if svc.opts.validator == nil {
		t.Fatalf("expected default validator")
	}
	noopLogger{}.Debug("ignored", "k", "v")
}

func TestLogAuditRecorder(t *testing.T) {
	logger := &captureLogger{}
	rec := LogAuditRecorder{Logger: logger}
	rec.Record(context.Background(), AuditEntry{Operation: "link", Status: AuditStatusSuccess})
	rec.Record(context.Background(), AuditEntry{Operation: "link", Status: AuditStatusError, Error: "boom"})
	LogAuditRecorder{}.Record(context.Background(), AuditEntry{Operation: "ignored"})
	if len(logger.lines) != 2 || logger.lines[0] != "debug operation done" || logger.lines[1] != "warn operation failed" {
		t.Fatalf("unexpected lines %v", logger.lines)
	}
}
