package shellstrategy

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/discochess/nestcache/internal/cachestorage/memstorage"
	"github.com/discochess/nestcache/internal/fetch"
	"github.com/discochess/nestcache/internal/message"
)

type countingFetcher struct {
	calls atomic.Int64
	err   error
}

func (f *countingFetcher) Fetch(ctx context.Context, req *message.Request) (*message.Response, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &message.Response{URL: req.URL.String(), Status: http.StatusOK, Body: []byte("net")}, nil
}

func TestStrategy_Name(t *testing.T) {
	if got := New(memstorage.New(), &countingFetcher{}).Name(); got != "shell" {
		t.Errorf("Name() = %q, want %q", got, "shell")
	}
}

func TestStrategy_HitInAnyPartition(t *testing.T) {
	tests := []struct {
		name      string
		partition string
	}{
		{"shell partition", "shell-v2"},
		{"orphaned partition", "shell-v1"},
		{"tile partition", "tile-cache"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := memstorage.New()
			req := message.MustRequest(http.MethodGet, "https://nest.example.org/index.html")
			storage.Set(tt.partition, req, &message.Response{Status: http.StatusOK, Body: []byte("cached")})

			fetcher := &countingFetcher{}
			resp, err := New(storage, fetcher).Handle(context.Background(), req)
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if string(resp.Body) != "cached" {
				t.Errorf("Body = %q, want cached", resp.Body)
			}
			if fetcher.calls.Load() != 0 {
				t.Errorf("network calls = %d, want 0", fetcher.calls.Load())
			}
		})
	}
}

func TestStrategy_OldestPartitionWins(t *testing.T) {
	storage := memstorage.New()
	req := message.MustRequest(http.MethodGet, "https://nest.example.org/")
	storage.Set("shell-v1", req, &message.Response{Status: http.StatusOK, Body: []byte("v1")})
	storage.Set("shell-v2", req, &message.Response{Status: http.StatusOK, Body: []byte("v2")})

	resp, err := New(storage, &countingFetcher{}).Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if string(resp.Body) != "v1" {
		t.Errorf("Body = %q, want v1", resp.Body)
	}
}

func TestStrategy_MissFetchesAndNeverWrites(t *testing.T) {
	storage := memstorage.New()
	fetcher := &countingFetcher{}
	s := New(storage, fetcher)
	req := message.MustRequest(http.MethodGet, "https://nest.example.org/app.js")

	for i := 0; i < 2; i++ {
		resp, err := s.Handle(context.Background(), req)
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if string(resp.Body) != "net" {
			t.Errorf("Body = %q, want net", resp.Body)
		}
	}
	if fetcher.calls.Load() != 2 {
		t.Errorf("network calls = %d, want 2", fetcher.calls.Load())
	}
	names, _ := storage.Names(context.Background())
	if len(names) != 0 {
		t.Errorf("partitions = %v, want none", names)
	}
}

func TestStrategy_FailureRepeatsNetworkCall(t *testing.T) {
	fetcher := &countingFetcher{err: fetch.ErrNetwork}
	s := New(memstorage.New(), fetcher)
	req := message.MustRequest(http.MethodGet, "https://nest.example.org/unknown-asset.png")

	for i := 0; i < 2; i++ {
		if _, err := s.Handle(context.Background(), req); !errors.Is(err, fetch.ErrNetwork) {
			t.Fatalf("Handle() error = %v, want ErrNetwork", err)
		}
	}
	if fetcher.calls.Load() != 2 {
		t.Errorf("network calls = %d, want 2", fetcher.calls.Load())
	}
}

func TestStrategy_NonGetBypassesCache(t *testing.T) {
	storage := memstorage.New()
	get := message.MustRequest(http.MethodGet, "https://nest.example.org/api/nest")
	storage.Set("shell-v2", get, &message.Response{Status: http.StatusOK, Body: []byte("cached")})

	fetcher := &countingFetcher{}
	post := message.MustRequest(http.MethodPost, "https://nest.example.org/api/nest")
	resp, err := New(storage, fetcher).Handle(context.Background(), post)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if string(resp.Body) != "net" || fetcher.calls.Load() != 1 {
		t.Errorf("POST served from cache: body=%q calls=%d", resp.Body, fetcher.calls.Load())
	}
}
