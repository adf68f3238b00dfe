// Package memorynestcachefx provides an fx module for an in-memory nestcache
// interceptor.
// Useful for testing.
package memorynestcachefx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/nestcache"
	"github.com/discochess/nestcache/internal/cachestorage/memstorage"
	"github.com/discochess/nestcache/internal/stats"
	"github.com/discochess/nestcache/internal/stats/logger"
)

// Module provides an in-memory interceptor for testing. The interceptor is
// not installed; tests seed the storage and install it themselves.
// Requires a *zap.Logger to be provided. A nestcache.Fetcher is optional.
var Module = fx.Module("memorynestcache",
	fx.Provide(
		newStatsCollector,
		newMemStorage,
		newInterceptor,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("nestcache.stats"))
}

func newMemStorage() *memstorage.Storage {
	return memstorage.New()
}

// Params holds dependencies for creating the interceptor.
type Params struct {
	fx.In

	Logger    *zap.Logger
	Collector stats.Collector
	Storage   *memstorage.Storage
	Fetcher   nestcache.Fetcher `optional:"true"`
	Lifecycle fx.Lifecycle
}

// Result holds the provided interceptor and storage.
type Result struct {
	fx.Out

	Interceptor *nestcache.Interceptor
	Storage     *memstorage.Storage // Exposed for test setup
}

func newInterceptor(p Params) (Result, error) {
	opts := []nestcache.Option{
		nestcache.WithStorage(p.Storage),
		nestcache.WithManifestAssets(),
		nestcache.WithStats(p.Collector),
		nestcache.WithLogger(p.Logger.Named("nestcache")),
	}
	if p.Fetcher != nil {
		opts = append(opts, nestcache.WithFetcher(p.Fetcher))
	}

	ic, err := nestcache.New(opts...)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return ic.Close()
		},
	})

	return Result{
		Interceptor: ic,
		Storage:     p.Storage,
	}, nil
}
