package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"catalogcore/internal/source/core"
)

func TestStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if store.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
	ctx := context.Background()
	info, err := store.Put(ctx, "nested/catalog.json", strings.NewReader(`{"a":1}`), core.PutOptions{})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 || info.ETag == "" || !strings.HasPrefix(info.ContentType, "application/json") {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "nested/catalog.json", strings.NewReader(`{"a":2}`), core.PutOptions{}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, rc, err := store.Get(ctx, "nested/catalog.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != `{"a":2}` || got.ETag == info.ETag {
		t.Fatalf("expected replaced content, got %q %+v", body, got)
	}
	head, err := store.Head(ctx, "nested/catalog.json")
	if err != nil || head.Size != 7 {
		t.Fatalf("head: %v %+v", err, head)
	}
}

func TestStoreMissingAndInvalidKeys(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	if _, _, err := store.Get(ctx, "absent.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Head(ctx, "absent.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	for _, key := range []string{"", "../escape.json", "/abs.json", "a/../../b"} {
		if _, err := store.Put(ctx, key, bytes.NewReader(nil), core.PutOptions{}); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestStoreListSkipsTempFiles(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"b.json", "a.json", "sub/c.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader("{}"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, tempPrefix+"junk"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].Key != "a.json" || all[2].Key != "sub/c.json" {
		t.Fatalf("unexpected list %+v", all)
	}
	sub, err := store.List(ctx, "sub/")
	if err != nil || len(sub) != 1 {
		t.Fatalf("list prefix: %v %+v", err, sub)
	}
}
