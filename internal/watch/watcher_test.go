package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"catalogcore/internal/core"
	"catalogcore/internal/validate"
	"catalogcore/pkg/domain"
)

const clean = `{"marketplaces":[{"code":"m1","marketplaceGroups":[{"group":"g1","displayOrder":1}]}],"groups":[{"code":"g1","groupWidgets":[{"widget":"w1","displayOrder":1}]}],"widgets":[{"code":"w1","name":"One"}]}`

const dangling = `{"marketplaces":[{"code":"m1","marketplaceGroups":[{"group":"g1","displayOrder":1}]}],"groups":[{"code":"g1","groupWidgets":[{"widget":"w2","displayOrder":1}]}],"widgets":[{"code":"w1","name":"One"}]}`

func newSession(t *testing.T) *core.Service {
	t.Helper()
	svc, err := core.NewService()
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func writeCatalog(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	writeCatalog(t, path, clean)

	w, err := New(path, newSession(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res := w.Check(context.Background())
	if res.Err != nil || !res.Report.Clean() {
		t.Fatalf("expected clean result, got %+v", res)
	}

	writeCatalog(t, path, `{"widgets":[]}`)
	res = w.Check(context.Background())
	if domain.CodeOf(res.Err) != domain.CodeFormat {
		t.Fatalf("expected format error, got %v", res.Err)
	}
}

func TestNewRequiresExistingFile(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing.json"), newSession(t)); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestRunRevalidatesOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	writeCatalog(t, path, clean)

	w, err := New(path, newSession(t), WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results := make(chan Result, 16)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(r Result) { results <- r }) }()

	select {
	case first := <-results:
		if first.Err != nil || !first.Report.Clean() {
			t.Fatalf("expected clean initial check, got %+v", first)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no initial check")
	}

	writeCatalog(t, path, dangling)
	deadline := time.After(5 * time.Second)
	for found := false; !found; {
		select {
		case r := <-results:
			found = r.Err == nil && len(r.Report.ByRule(validate.RuleDanglingWidget)) == 1
		case <-deadline:
			t.Fatal("dangling widget never reported")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
