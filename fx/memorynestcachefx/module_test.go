package memorynestcachefx

import (
	"context"
	"net/http"
	"testing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/discochess/nestcache"
	"github.com/discochess/nestcache/internal/cachestorage/memstorage"
	"github.com/discochess/nestcache/internal/message"
)

func TestModule(t *testing.T) {
	var (
		ic      *nestcache.Interceptor
		storage *memstorage.Storage
	)

	fetcher := nestcache.FetcherFunc(func(ctx context.Context, req *message.Request) (*message.Response, error) {
		return &message.Response{Status: http.StatusOK, Body: []byte("net")}, nil
	})

	app := fxtest.New(t,
		fx.Supply(zap.NewNop()),
		fx.Provide(func() nestcache.Fetcher { return fetcher }),
		Module,
		fx.Populate(&ic, &storage),
	)
	app.RequireStart()
	defer app.RequireStop()

	ctx := context.Background()
	if err := ic.Install(ctx); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if err := ic.Activate(ctx); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	const tile = "https://api.maptiler.com/maps/topo-v4/1/1/1.png"
	resp, err := ic.Handle(ctx, message.MustRequest(http.MethodGet, tile))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if string(resp.Body) != "net" {
		t.Errorf("Body = %q, want net", resp.Body)
	}
	if storage.Len(nestcache.DefaultTilePartition) != 1 {
		t.Errorf("tile partition size = %d, want 1", storage.Len(nestcache.DefaultTilePartition))
	}
}
