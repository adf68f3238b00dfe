package disknestcachefx

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/discochess/nestcache"
	"github.com/discochess/nestcache/internal/message"
)

func TestModule_InstallsThenResumes(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int64
	fetcher := nestcache.FetcherFunc(func(ctx context.Context, req *message.Request) (*message.Response, error) {
		calls.Add(1)
		return &message.Response{Status: http.StatusOK, Body: []byte(req.Key())}, nil
	})

	start := func() (*fxtest.App, *nestcache.Registration) {
		var reg *nestcache.Registration
		app := fxtest.New(t,
			fx.Supply(zap.NewNop()),
			fx.Supply(Config{DataDir: dir, Origin: "https://nest.example.org"}),
			fx.Provide(func() nestcache.Fetcher { return fetcher }),
			Module,
			fx.Populate(&reg),
		)
		app.RequireStart()
		return app, reg
	}

	app, reg := start()
	if reg.Active() == nil {
		t.Fatal("no active version after start")
	}
	if calls.Load() != 5 {
		t.Errorf("install fetches = %d, want 5", calls.Load())
	}
	app.RequireStop()

	app, reg = start()
	defer app.RequireStop()
	if calls.Load() != 5 {
		t.Errorf("restart fetched %d more resources, want 0", calls.Load()-5)
	}

	resp, err := reg.Handle(context.Background(), message.MustRequest(http.MethodGet, "https://nest.example.org/index.html"))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if string(resp.Body) != "https://nest.example.org/index.html" {
		t.Errorf("Body = %q", resp.Body)
	}
}
