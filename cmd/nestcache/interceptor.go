package main

import (
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/discochess/nestcache"
	"github.com/discochess/nestcache/internal/cachestorage"
	"github.com/discochess/nestcache/internal/manifest"
	"github.com/discochess/nestcache/internal/stats"
)

// newInterceptor builds a version over st from the configuration.
func newInterceptor(st cachestorage.Storage, logger *zap.Logger, collector stats.Collector, extra ...nestcache.Option) (*nestcache.Interceptor, error) {
	opts := []nestcache.Option{
		nestcache.WithStorage(st),
		nestcache.WithOrigin(cfg.Origin),
		nestcache.WithShellPartition(cfg.ShellPartition),
		nestcache.WithTilePartition(cfg.TilePartition),
		nestcache.WithTileRoute(cfg.TileHost, cfg.TileMarker),
		nestcache.WithMemoryTier(cfg.MemoryEntries),
		nestcache.WithLogger(logger),
		nestcache.WithStats(collector),
	}
	m, err := loadManifest()
	if err != nil {
		return nil, err
	}
	opts = append(opts, nestcache.WithManifest(m))
	opts = append(opts, extra...)

	ic, err := nestcache.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating interceptor: %w", err)
	}
	return ic, nil
}

// loadManifest reads --manifest, or returns the built-in manifest.
func loadManifest() (*manifest.Manifest, error) {
	if cfg.ManifestPath == "" {
		return manifest.Default(), nil
	}
	return manifest.Read(cfg.ManifestPath)
}

// parseOrigin returns the configured origin, or nil when none is set.
func parseOrigin() (*url.URL, error) {
	if cfg.Origin == "" {
		return nil, nil
	}
	u, err := url.Parse(cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("parsing origin: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("origin %q is not absolute", cfg.Origin)
	}
	return u, nil
}
