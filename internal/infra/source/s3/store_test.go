package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"catalogcore/internal/source/core"
)

func TestMockRoundTrip(t *testing.T) {
	store := NewMock("catalogs")
	if store.Driver() != core.DriverS3 {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
	ctx := context.Background()
	info, err := store.Put(ctx, "catalog.json", strings.NewReader(`{"marketplaces":[]}`), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"origin": "test"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(`{"marketplaces":[]}`)) || info.ContentType != "application/json" || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "catalog.json", strings.NewReader(`{}`), core.PutOptions{}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, rc, err := store.Get(ctx, "catalog.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	if want := etag([]byte(`{}`)); `"`+got.ETag+`"` != want {
		t.Fatalf("expected ETag %s, got %q", want, got.ETag)
	}
	body, _ := io.ReadAll(rc)
	if string(body) != `{}` {
		t.Fatalf("expected overwritten body, got %q", body)
	}
}

func TestMockNotFound(t *testing.T) {
	store := NewMock("")
	ctx := context.Background()
	if _, _, err := store.Get(ctx, "missing.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found from get, got %v", err)
	}
	if _, err := store.Head(ctx, "missing.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found from head, got %v", err)
	}
}

func TestMockList(t *testing.T) {
	store := NewMock("catalogs")
	ctx := context.Background()
	for _, key := range []string{"b.json", "a.json", "exports/a.edited.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader("{}"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].Key != "a.json" {
		t.Fatalf("unexpected list %+v", all)
	}
	exports, err := store.List(ctx, "exports/")
	if err != nil || len(exports) != 1 || exports[0].Key != "exports/a.edited.json" {
		t.Fatalf("unexpected prefix list %v %+v", err, exports)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
	if _, err := NewMock("b").Put(context.Background(), "", strings.NewReader(""), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
}

func TestDecodeChunked(t *testing.T) {
	body := "5;chunk-signature=abc\r\nhello\r\n6\r\n world\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n"
	out, ok := decodeChunked([]byte(body))
	if !ok || string(out) != "hello world" {
		t.Fatalf("unexpected decode %q %v", out, ok)
	}
	if _, ok := decodeChunked([]byte("zz\r\n")); ok {
		t.Fatalf("expected failure on bad size")
	}
}
