package sqlitestorage

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/discochess/nestcache/internal/cachestorage"
	"github.com/discochess/nestcache/internal/message"
)

func openTestStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Error("Open() expected error for empty path, got nil")
	}
}

func TestPartition_PutMatch(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStorage(t)

	p, err := s.Open(ctx, "tile-cache")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	req := message.MustRequest("", "https://api.maptiler.com/maps/topo-v4/5/10/12.png")
	if _, err := p.Match(ctx, req); !errors.Is(err, cachestorage.ErrNotFound) {
		t.Errorf("Match() before Put error = %v, want ErrNotFound", err)
	}
	if ok, _ := s.Has(ctx, "tile-cache"); ok {
		t.Error("Has() = true before first write")
	}

	resp := &message.Response{URL: req.Key(), Status: 200, StatusText: "200 OK", Header: http.Header{"Content-Type": {"image/png"}}, Body: []byte("png")}
	if err := p.Put(ctx, req, resp); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if ok, _ := s.Has(ctx, "tile-cache"); !ok {
		t.Error("Has() = false after first write")
	}

	got, err := p.Match(ctx, req)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if string(got.Body) != "png" || got.Status != 200 {
		t.Errorf("Match() = %d %q", got.Status, got.Body)
	}
	if got.Header.Get("Content-Type") != "image/png" {
		t.Errorf("Content-Type = %q", got.Header.Get("Content-Type"))
	}

	// Overwrite is last-write-wins.
	resp.Body = []byte("png2")
	if err := p.Put(ctx, req, resp); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}
	got, _ = p.Match(ctx, req)
	if string(got.Body) != "png2" {
		t.Errorf("Match() after overwrite = %q", got.Body)
	}
}

func TestStorage_NamesAndDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStorage(t)
	req := message.MustRequest("", "https://example.com/")

	for _, name := range []string{"shell-v1", "tile-cache", "shell-v2"} {
		p, _ := s.Open(ctx, name)
		if err := p.Put(ctx, req, &message.Response{Status: 200}); err != nil {
			t.Fatalf("Put(%s) error = %v", name, err)
		}
	}

	names, err := s.Names(ctx)
	if err != nil {
		t.Fatalf("Names() error = %v", err)
	}
	if len(names) != 3 || names[0] != "shell-v1" || names[2] != "shell-v2" {
		t.Errorf("Names() = %v", names)
	}

	deleted, err := s.Delete(ctx, "shell-v1")
	if err != nil || !deleted {
		t.Fatalf("Delete() = %v, %v", deleted, err)
	}
	p, _ := s.Open(ctx, "shell-v1")
	if _, err := p.Match(ctx, req); !errors.Is(err, cachestorage.ErrNotFound) {
		t.Errorf("Match() after partition delete error = %v", err)
	}
}

func TestStorage_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStorage(t)
	req := message.MustRequest("", "https://example.com/index.html")

	p, _ := s.Open(ctx, "shell-v2")
	if err := p.Put(ctx, req, &message.Response{Status: 200, Body: []byte("shell")}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() reopen error = %v", err)
	}
	defer reopened.Close()

	resp, err := cachestorage.MatchAll(ctx, reopened, req)
	if err != nil {
		t.Fatalf("MatchAll() error = %v", err)
	}
	if string(resp.Body) != "shell" {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestPartition_DeleteAndKeys(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStorage(t)
	p, _ := s.Open(ctx, "tile-cache")

	a := message.MustRequest("", "https://example.com/a")
	b := message.MustRequest("", "https://example.com/b")
	p.Put(ctx, a, &message.Response{Status: 200})
	p.Put(ctx, b, &message.Response{Status: 200})

	keys, _ := p.Keys(ctx)
	if len(keys) != 2 || keys[0] != a.Key() || keys[1] != b.Key() {
		t.Errorf("Keys() = %v", keys)
	}

	deleted, err := p.Delete(ctx, a)
	if err != nil || !deleted {
		t.Fatalf("Delete() = %v, %v", deleted, err)
	}
	deleted, _ = p.Delete(ctx, a)
	if deleted {
		t.Error("second Delete() = true")
	}
}
