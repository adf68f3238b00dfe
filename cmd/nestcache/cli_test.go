package main

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"testing"

	"github.com/discochess/nestcache/internal/cachestorage"
	"github.com/discochess/nestcache/internal/cachestorage/memstorage"
	"github.com/discochess/nestcache/internal/config"
	"github.com/discochess/nestcache/internal/message"
)

func withConfig(t *testing.T, c config.Config) {
	t.Helper()
	saved := cfg
	cfg = c
	t.Cleanup(func() { cfg = saved })
}

func okResponse(body string) *message.Response {
	return &message.Response{Status: http.StatusOK, StatusText: "OK", Header: make(http.Header), Body: []byte(body)}
}

func TestNewCodec(t *testing.T) {
	for _, name := range []string{config.CodecZstd, config.CodecGzip, config.CodecNone} {
		if _, err := newCodec(name); err != nil {
			t.Errorf("newCodec(%q) failed: %v", name, err)
		}
	}
	if _, err := newCodec("brotli"); err == nil {
		t.Error("expected error for unknown codec")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRole(t *testing.T) {
	withConfig(t, config.Config{ShellPartition: "shell-v2", TilePartition: "tile-cache"})

	tests := map[string]string{
		"shell-v2":   "shell",
		"tile-cache": "tiles",
		"shell-v1":   "orphaned",
	}
	for name, want := range tests {
		if got := role(name); got != want {
			t.Errorf("role(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestMatchFirst(t *testing.T) {
	ctx := context.Background()
	st := memstorage.New()
	req := message.MustRequest("GET", "https://nest.example.org/index.html")

	if _, _, err := matchFirst(ctx, st, req); !errors.Is(err, cachestorage.ErrNotFound) {
		t.Fatalf("empty storage: err = %v, want ErrNotFound", err)
	}

	st.Set("shell-v1", req, okResponse("old"))
	st.Set("shell-v2", req, okResponse("new"))

	name, resp, err := matchFirst(ctx, st, req)
	if err != nil {
		t.Fatalf("matchFirst failed: %v", err)
	}
	if name != "shell-v1" || string(resp.Body) != "old" {
		t.Errorf("got %q/%q, want oldest partition shell-v1/old", name, resp.Body)
	}
}

func TestMissingManifestEntries(t *testing.T) {
	withConfig(t, config.Config{
		Origin:         "https://nest.example.org",
		ShellPartition: "shell-v2",
	})

	st := memstorage.New()
	st.Set("shell-v2", message.MustRequest("GET", "https://nest.example.org/"), okResponse("root"))
	st.Set("shell-v2", message.MustRequest("GET", "https://nest.example.org/index.html"), okResponse("index"))
	st.Set("shell-v2", message.MustRequest("GET", "https://nest.example.org/favicon.png"), okResponse("icon"))

	missing, err := missingManifestEntries(context.Background(), st)
	if err != nil {
		t.Fatalf("missingManifestEntries failed: %v", err)
	}
	want := []string{
		"https://unpkg.com/leaflet@1.9.4/dist/leaflet.css",
		"https://unpkg.com/leaflet@1.9.4/dist/leaflet.js",
	}
	if !slices.Equal(missing, want) {
		t.Errorf("missing = %v, want %v", missing, want)
	}
}

func TestVerifyPartition_Keys(t *testing.T) {
	ctx := context.Background()
	st := memstorage.New()
	st.Set("tile-cache", message.MustRequest("GET", "https://api.maptiler.com/maps/topo-v4/1/0/0.png"), okResponse("a"))
	st.Set("tile-cache", message.MustRequest("GET", "https://api.maptiler.com/maps/topo-v4/1/0/1.png"), okResponse("b"))

	p, err := st.Open(ctx, "tile-cache")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	checked, bad, err := verifyPartition(ctx, p)
	if err != nil {
		t.Fatalf("verifyPartition failed: %v", err)
	}
	if checked != 2 || bad != 0 {
		t.Errorf("checked=%d bad=%d, want 2/0", checked, bad)
	}
}
