package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCountsByStatus(t *testing.T) {
	rec := NewPrometheusRecorder(nil)
	ctx := context.Background()
	rec.Observe(ctx, "load", true, 2*time.Millisecond)
	rec.Observe(ctx, "load", true, time.Millisecond)
	rec.Observe(ctx, "load", false, time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)

	if got := testutil.ToFloat64(rec.operations.WithLabelValues("load", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("load", "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if n := testutil.CollectAndCount(rec.duration); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}
}

func TestUsesSuppliedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)
	if rec.Registry() != reg {
		t.Fatalf("registry not kept")
	}
	rec.Observe(context.Background(), "validate", true, time.Millisecond)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 2 {
		t.Fatalf("expected counter and histogram families, got %d", len(families))
	}
}
