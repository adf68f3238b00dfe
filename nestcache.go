// Package nestcache intercepts the requests of an offline-capable web page
// and answers them from durable cache partitions, the network, or both.
//
// Map tiles are cached on first use and served from the cache forever after.
// Shell resources are pre-warmed at install time from an asset manifest and
// served cache-first without ever being written at request time.
//
// Example usage:
//
//	dataDir, err := nestcache.WithDataDir("/var/lib/nestcache")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ic, err := nestcache.New(
//	    dataDir,
//	    nestcache.WithOrigin("https://nest.example.org"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ic.Close()
//
//	if err := ic.Install(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := ic.Activate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	req, _ := nestcache.NewRequest("GET", "https://api.maptiler.com/maps/topo-v4/12/2048/1361.png")
//	resp, err := ic.Handle(ctx, req)
package nestcache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/discochess/nestcache/internal/cachestorage"
	"github.com/discochess/nestcache/internal/cachestorage/tieredstorage"
	"github.com/discochess/nestcache/internal/cachestorage/tieredstorage/cachestrategy/lru"
	"github.com/discochess/nestcache/internal/cachestorage/tieredstorage/memory"
	"github.com/discochess/nestcache/internal/fetch"
	"github.com/discochess/nestcache/internal/lifecycle"
	"github.com/discochess/nestcache/internal/message"
	"github.com/discochess/nestcache/internal/router"
	"github.com/discochess/nestcache/internal/stats"
	"github.com/discochess/nestcache/internal/strategy"
	"github.com/discochess/nestcache/internal/strategy/shellstrategy"
	"github.com/discochess/nestcache/internal/strategy/tilestrategy"
)

// Partition names and tile provider defaults.
const (
	DefaultShellPartition = "shell-v2"
	DefaultTilePartition  = "tile-cache"
	DefaultTileHost       = router.DefaultTileHost
	DefaultTileMarker     = router.DefaultTileMarker
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrClosed indicates the interceptor has been closed.
	ErrClosed = errors.New("nestcache: interceptor closed")

	// ErrNoStorage indicates no storage was provided.
	ErrNoStorage = errors.New("nestcache: no storage provided")

	// ErrNotActive indicates a request reached a version that does not
	// control pages yet.
	ErrNotActive = errors.New("nestcache: interceptor not active")

	// ErrNotInstalled is returned by Resume when the shell partition does
	// not hold a complete install.
	ErrNotInstalled = lifecycle.ErrNotInstalled
)

type (
	// Request is an intercepted request.
	Request = message.Request
	// Response is a cached or network response.
	Response = message.Response
	// Fetcher issues requests to the network.
	Fetcher = fetch.Fetcher
	// FetcherFunc adapts a function to Fetcher.
	FetcherFunc = fetch.FetcherFunc
	// State is the lifecycle state of an interceptor.
	State = lifecycle.State
)

// Lifecycle states.
const (
	StateNew        = lifecycle.StateNew
	StateInstalling = lifecycle.StateInstalling
	StateInstalled  = lifecycle.StateInstalled
	StateActive     = lifecycle.StateActive
	StateRedundant  = lifecycle.StateRedundant
)

// NewRequest returns a request for the absolute rawURL.
func NewRequest(method, rawURL string) (*Request, error) {
	return message.NewRequest(method, rawURL)
}

// Interceptor is one version of the offline cache interceptor.
// An Interceptor is safe for concurrent use by multiple goroutines.
type Interceptor struct {
	storage   cachestorage.Storage
	router    *router.Router
	tiles     strategy.Strategy
	shell     strategy.Strategy
	lifecycle *lifecycle.Manager
	stats     stats.Collector
	logger    *zap.Logger
	closed    atomic.Bool
}

// New creates a new Interceptor with the given options.
// The returned interceptor must be installed and activated before it
// handles requests.
func New(opts ...Option) (*Interceptor, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if cfg.storage == nil {
		return nil, ErrNoStorage
	}

	var origin *url.URL
	if cfg.origin != "" {
		u, err := url.Parse(cfg.origin)
		if err != nil || !u.IsAbs() {
			return nil, fmt.Errorf("nestcache: invalid origin %q", cfg.origin)
		}
		origin = u
	}

	requests, err := cfg.manifest.Resolve(origin)
	if err != nil {
		return nil, fmt.Errorf("resolving manifest: %w", err)
	}

	storage := cfg.storage
	if cfg.memoryTier > 0 {
		strat, err := lru.New(cfg.memoryTier)
		if err != nil {
			return nil, fmt.Errorf("creating memory tier: %w", err)
		}
		storage = tieredstorage.New(storage, memory.New(strat, cfg.stats))
	}

	lifecycleOpts := []lifecycle.Option{
		lifecycle.WithLogger(cfg.logger.Named("lifecycle")),
		lifecycle.WithStats(cfg.stats),
		lifecycle.WithInstallConcurrency(cfg.installConcurrency),
	}
	if cfg.prunePrefix != "" {
		lifecycleOpts = append(lifecycleOpts, lifecycle.WithStalePartitionPruning(cfg.prunePrefix))
	}

	ic := &Interceptor{
		storage: storage,
		router:  router.New(cfg.tileHost, cfg.tileMarker),
		tiles: tilestrategy.New(storage, cfg.tilePartition, cfg.fetcher,
			tilestrategy.WithLogger(cfg.logger.Named("tiles")),
			tilestrategy.WithStats(cfg.stats),
		),
		shell: shellstrategy.New(storage, cfg.fetcher,
			shellstrategy.WithLogger(cfg.logger.Named("shell")),
			shellstrategy.WithStats(cfg.stats),
		),
		lifecycle: lifecycle.New(storage, cfg.shellPartition, requests, cfg.fetcher, lifecycleOpts...),
		stats:     cfg.stats,
		logger:    cfg.logger,
	}

	ic.logger.Debug("interceptor initialized",
		zap.String("shellPartition", cfg.shellPartition),
		zap.String("tilePartition", cfg.tilePartition),
		zap.String("tileHost", ic.router.Host()),
		zap.Int("manifestEntries", len(requests)),
	)

	return ic, nil
}

// Install pre-warms the shell partition with every manifest resource.
// It fails as a whole if any resource cannot be fetched with a 2xx status.
func (ic *Interceptor) Install(ctx context.Context) error {
	if ic.closed.Load() {
		return ErrClosed
	}
	return ic.lifecycle.Install(ctx)
}

// Activate makes an installed interceptor control every page immediately.
func (ic *Interceptor) Activate(ctx context.Context) error {
	if ic.closed.Load() {
		return ErrClosed
	}
	return ic.lifecycle.Activate(ctx)
}

// Resume activates a version whose shell partition was installed by an
// earlier process, without touching the network. It returns
// ErrNotInstalled when any manifest resource is missing from the partition.
func (ic *Interceptor) Resume(ctx context.Context) error {
	if ic.closed.Load() {
		return ErrClosed
	}
	return ic.lifecycle.Resume(ctx)
}

// State returns the lifecycle state.
func (ic *Interceptor) State() State {
	return ic.lifecycle.State()
}

// Handle answers an intercepted request.
// Returns ErrNotActive if the interceptor has not been activated.
func (ic *Interceptor) Handle(ctx context.Context, req *Request) (*Response, error) {
	if ic.closed.Load() {
		return nil, ErrClosed
	}
	if !ic.lifecycle.Controlling() {
		return nil, ErrNotActive
	}

	ic.stats.IncCounter(stats.MetricRequests, 1)

	s := ic.shell
	if ic.router.Route(req) == router.Tile {
		s = ic.tiles
		ic.stats.IncCounter(stats.MetricTileRequests, 1)
	} else {
		ic.stats.IncCounter(stats.MetricShellRequests, 1)
	}

	resp, err := s.Handle(ctx, req)
	if err != nil {
		ic.stats.IncCounter(stats.MetricFailures, 1)
		ic.logger.Debug("request failed",
			zap.String("strategy", s.Name()),
			zap.String("url", req.Key()),
			zap.Error(err),
		)
		return nil, err
	}
	return resp, nil
}

// Storage returns the storage backend used by this interceptor.
func (ic *Interceptor) Storage() cachestorage.Storage {
	return ic.storage
}

// ShellPartition returns the name of the partition filled at install time.
func (ic *Interceptor) ShellPartition() string {
	return ic.lifecycle.Partition()
}

// Close releases all resources associated with the interceptor, including
// its storage. After Close, the interceptor should not be used.
func (ic *Interceptor) Close() error {
	if !ic.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	if err := ic.storage.Close(); err != nil {
		return fmt.Errorf("closing storage: %w", err)
	}
	return nil
}
