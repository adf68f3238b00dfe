// Package disknestcachefx provides an fx module for a disk-backed nestcache
// registration.
package disknestcachefx

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/nestcache"
	"github.com/discochess/nestcache/internal/stats"
	"github.com/discochess/nestcache/internal/stats/logger"
)

// Config holds configuration for the disk-backed interceptor.
type Config struct {
	// DataDir is the directory holding the cache partitions.
	DataDir string

	// Origin is the page origin the asset manifest resolves against.
	Origin string

	// MemoryEntries is the number of entries kept in memory.
	// Default is 256.
	MemoryEntries int

	// PrunePrefix enables stale partition pruning on activation.
	PrunePrefix string
}

// Module provides a *nestcache.Registration whose version is installed,
// or resumed when already installed, on start.
// Requires a *zap.Logger and a Config to be provided.
var Module = fx.Module("disknestcache",
	fx.Provide(
		newStatsCollector,
		newRegistration,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("nestcache.stats"))
}

// Params holds dependencies for creating the registration.
type Params struct {
	fx.In

	Config    Config
	Logger    *zap.Logger
	Collector stats.Collector
	Fetcher   nestcache.Fetcher `optional:"true"`
	Lifecycle fx.Lifecycle
}

// Result holds the provided registration and its version.
type Result struct {
	fx.Out

	Registration *nestcache.Registration
	Interceptor  *nestcache.Interceptor
}

func newRegistration(p Params) (Result, error) {
	memoryEntries := p.Config.MemoryEntries
	if memoryEntries <= 0 {
		memoryEntries = 256
	}

	dataDir, err := nestcache.WithDataDir(p.Config.DataDir)
	if err != nil {
		return Result{}, err
	}

	log := p.Logger.Named("nestcache")
	opts := []nestcache.Option{
		dataDir,
		nestcache.WithOrigin(p.Config.Origin),
		nestcache.WithMemoryTier(memoryEntries),
		nestcache.WithStats(p.Collector),
		nestcache.WithLogger(log),
	}
	if p.Fetcher != nil {
		opts = append(opts, nestcache.WithFetcher(p.Fetcher))
	}
	if p.Config.PrunePrefix != "" {
		opts = append(opts, nestcache.WithStalePartitionPruning(p.Config.PrunePrefix))
	}

	ic, err := nestcache.New(opts...)
	if err != nil {
		return Result{}, err
	}

	regOpts := []nestcache.Option{nestcache.WithStats(p.Collector), nestcache.WithLogger(log)}
	if p.Fetcher != nil {
		regOpts = append(regOpts, nestcache.WithFetcher(p.Fetcher))
	}
	reg := nestcache.NewRegistration(regOpts...)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			err := reg.Resume(ctx, ic)
			if errors.Is(err, nestcache.ErrNotInstalled) {
				return reg.Register(ctx, ic)
			}
			return err
		},
		OnStop: func(ctx context.Context) error {
			if reg.Active() == nil {
				// The version never activated, so the registration does
				// not own its storage.
				if err := ic.Close(); err != nil {
					return err
				}
			}
			return reg.Close()
		},
	})

	return Result{Registration: reg, Interceptor: ic}, nil
}
