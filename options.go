package nestcache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/discochess/nestcache/internal/cachestorage"
	"github.com/discochess/nestcache/internal/cachestorage/diskstorage"
	"github.com/discochess/nestcache/internal/codec/zstdcodec"
	"github.com/discochess/nestcache/internal/fetch"
	"github.com/discochess/nestcache/internal/lifecycle"
	"github.com/discochess/nestcache/internal/manifest"
	"github.com/discochess/nestcache/internal/stats"
)

// Option configures an Interceptor or a Registration.
type Option interface {
	apply(*options)
}

// options holds the interceptor configuration.
type options struct {
	storage            cachestorage.Storage
	fetcher            fetch.Fetcher
	manifest           *manifest.Manifest
	origin             string
	shellPartition     string
	tilePartition      string
	tileHost           string
	tileMarker         string
	prunePrefix        string
	installConcurrency int
	memoryTier         int
	stats              stats.Collector
	logger             *zap.Logger
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		fetcher:            fetch.NewHTTPFetcher(),
		manifest:           manifest.Default(),
		shellPartition:     DefaultShellPartition,
		tilePartition:      DefaultTilePartition,
		tileHost:           DefaultTileHost,
		tileMarker:         DefaultTileMarker,
		installConcurrency: lifecycle.DefaultInstallConcurrency,
		stats:              stats.NewNoop(),
		logger:             zap.NewNop(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithStorage sets the storage hosting the cache partitions.
func WithStorage(s cachestorage.Storage) Option {
	return optionFunc(func(o *options) {
		o.storage = s
	})
}

// WithFetcher sets the network fetcher.
// If not set, an HTTP fetcher with no overall timeout is used.
func WithFetcher(f Fetcher) Option {
	return optionFunc(func(o *options) {
		o.fetcher = f
	})
}

// WithManifest replaces the asset manifest installed into the shell
// partition.
func WithManifest(m *manifest.Manifest) Option {
	return optionFunc(func(o *options) {
		o.manifest = m
	})
}

// WithManifestAssets replaces the asset manifest with the given entries.
func WithManifestAssets(assets ...string) Option {
	return WithManifest(&manifest.Manifest{Version: manifest.Version, Assets: assets})
}

// WithOrigin sets the page origin that relative manifest entries and
// origin-form proxy requests resolve against.
func WithOrigin(origin string) Option {
	return optionFunc(func(o *options) {
		o.origin = origin
	})
}

// WithShellPartition sets the name of the partition filled at install time.
// Changing the name is how a new version invalidates old shell content.
func WithShellPartition(name string) Option {
	return optionFunc(func(o *options) {
		o.shellPartition = name
	})
}

// WithTilePartition sets the name of the tile partition.
func WithTilePartition(name string) Option {
	return optionFunc(func(o *options) {
		o.tilePartition = name
	})
}

// WithTileRoute sets the tile host and the path marker identifying tiles.
func WithTileRoute(host, marker string) Option {
	return optionFunc(func(o *options) {
		o.tileHost = host
		o.tileMarker = marker
	})
}

// WithStalePartitionPruning deletes, on activation, partitions whose name
// starts with prefix other than the current shell partition.
// Disabled by default: old partitions are kept and still searched.
func WithStalePartitionPruning(prefix string) Option {
	return optionFunc(func(o *options) {
		o.prunePrefix = prefix
	})
}

// WithInstallConcurrency bounds the parallel manifest fetches during install.
func WithInstallConcurrency(n int) Option {
	return optionFunc(func(o *options) {
		o.installConcurrency = n
	})
}

// WithMemoryTier keeps up to n recently used entries in memory in front of
// the storage. Durable entries are never evicted by the tier.
func WithMemoryTier(n int) Option {
	return optionFunc(func(o *options) {
		o.memoryTier = n
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithDataDir stores partitions as zstd-compressed files under dir,
// creating the directory if needed.
func WithDataDir(dir string) (Option, error) {
	st, err := diskstorage.New(dir, zstdcodec.New())
	if err != nil {
		return nil, fmt.Errorf("creating storage: %w", err)
	}
	return WithStorage(st), nil
}
