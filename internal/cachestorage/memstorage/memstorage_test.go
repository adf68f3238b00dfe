package memstorage

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/discochess/nestcache/internal/cachestorage"
	"github.com/discochess/nestcache/internal/message"
)

func TestStorage_LazyPartitionCreation(t *testing.T) {
	ctx := context.Background()
	s := New()

	p, err := s.Open(ctx, "tile-cache")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if ok, _ := s.Has(ctx, "tile-cache"); ok {
		t.Error("Has() = true before first write, want false")
	}

	req := message.MustRequest("", "https://example.com/a.png")
	if err := p.Put(ctx, req, &message.Response{Status: 200, Body: []byte("a")}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if ok, _ := s.Has(ctx, "tile-cache"); !ok {
		t.Error("Has() = false after first write, want true")
	}
}

func TestStorage_Open_EmptyName(t *testing.T) {
	_, err := New().Open(context.Background(), " ")
	if !errors.Is(err, cachestorage.ErrInvalidName) {
		t.Errorf("Open() error = %v, want ErrInvalidName", err)
	}
}

func TestPartition_PutMatch(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, _ := s.Open(ctx, "shell-v2")

	req := message.MustRequest("", "https://example.com/index.html")
	resp := &message.Response{Status: 200, Header: http.Header{"Content-Type": {"text/html"}}, Body: []byte("<html>")}
	if err := p.Put(ctx, req, resp); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Caller mutation after Put must not leak into storage.
	resp.Body[0] = 'X'

	got, err := p.Match(ctx, req)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if string(got.Body) != "<html>" {
		t.Errorf("Match() body = %q, want %q", got.Body, "<html>")
	}
	if got.StoredAt.IsZero() {
		t.Error("Match() StoredAt is zero")
	}
}

func TestPartition_Match_IgnoresFragmentAndMethod(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, _ := s.Open(ctx, "shell-v2")

	s.Set("shell-v2", message.MustRequest("", "https://example.com/index.html"), &message.Response{Status: 200})

	if _, err := p.Match(ctx, message.MustRequest("", "https://example.com/index.html#map")); err != nil {
		t.Errorf("Match() with fragment error = %v", err)
	}
	if _, err := p.Match(ctx, message.MustRequest(http.MethodPost, "https://example.com/index.html")); !errors.Is(err, cachestorage.ErrNotFound) {
		t.Errorf("Match() for POST error = %v, want ErrNotFound", err)
	}
}

func TestPartition_Put_RefusesNonGet(t *testing.T) {
	ctx := context.Background()
	p, _ := New().Open(ctx, "tile-cache")

	err := p.Put(ctx, message.MustRequest(http.MethodPost, "https://example.com/"), &message.Response{Status: 200})
	if !errors.Is(err, cachestorage.ErrNotCacheable) {
		t.Errorf("Put() error = %v, want ErrNotCacheable", err)
	}
}

func TestStorage_DeleteAndNames(t *testing.T) {
	ctx := context.Background()
	s := New()
	req := message.MustRequest("", "https://example.com/")

	s.Set("shell-v1", req, &message.Response{Status: 200})
	s.Set("tile-cache", req, &message.Response{Status: 200})
	s.Set("shell-v2", req, &message.Response{Status: 200})

	names, _ := s.Names(ctx)
	want := []string{"shell-v1", "tile-cache", "shell-v2"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	deleted, err := s.Delete(ctx, "shell-v1")
	if err != nil || !deleted {
		t.Fatalf("Delete() = %v, %v; want true, nil", deleted, err)
	}
	deleted, _ = s.Delete(ctx, "shell-v1")
	if deleted {
		t.Error("Delete() of missing partition = true, want false")
	}

	names, _ = s.Names(ctx)
	if len(names) != 2 || names[0] != "tile-cache" {
		t.Errorf("Names() after delete = %v", names)
	}
}

func TestPartition_ConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, _ := s.Open(ctx, "tile-cache")
	req := message.MustRequest("", "https://api.maptiler.com/maps/topo-v4/5/10/12.png")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Put(ctx, req, &message.Response{Status: 200, Body: []byte("tile")})
		}()
	}
	wg.Wait()

	if got := s.Len("tile-cache"); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
	keys, _ := p.Keys(ctx)
	if len(keys) != 1 || keys[0] != req.Key() {
		t.Errorf("Keys() = %v", keys)
	}
}
