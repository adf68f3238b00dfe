package nestcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/discochess/nestcache/internal/fetch"
	"github.com/discochess/nestcache/internal/stats"
)

// Registration holds the interceptor version that controls pages and swaps
// in new versions once they install and activate.
//
// While no version is active every request goes straight to the network.
// A version that fails to install never replaces the active one.
type Registration struct {
	fetcher fetch.Fetcher
	stats   stats.Collector
	logger  *zap.Logger

	mu     sync.Mutex // serializes Register
	active atomic.Pointer[Interceptor]
	closed atomic.Bool
}

// NewRegistration creates an empty registration. Only the fetcher, stats
// and logger options apply; the fetcher serves uncontrolled requests.
func NewRegistration(opts ...Option) *Registration {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	return &Registration{
		fetcher: cfg.fetcher,
		stats:   cfg.stats,
		logger:  cfg.logger,
	}
}

// Register installs and activates ic, then makes it the active version.
// On failure the previously active version stays in control.
func (r *Registration) Register(ctx context.Context, ic *Interceptor) error {
	if r.closed.Load() {
		return ErrClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ic.Install(ctx); err != nil {
		r.logger.Error("new version failed to install; keeping the active version",
			zap.String("shellPartition", ic.ShellPartition()),
			zap.Error(err),
		)
		return fmt.Errorf("registering version: %w", err)
	}
	if err := ic.Activate(ctx); err != nil {
		return fmt.Errorf("registering version: %w", err)
	}

	prev := r.active.Swap(ic)
	if prev != nil {
		r.logger.Info("version replaced",
			zap.String("previous", prev.ShellPartition()),
			zap.String("current", ic.ShellPartition()),
		)
	}
	return nil
}

// Resume makes ic, installed by an earlier process, the active version.
func (r *Registration) Resume(ctx context.Context, ic *Interceptor) error {
	if r.closed.Load() {
		return ErrClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ic.Resume(ctx); err != nil {
		return fmt.Errorf("resuming version: %w", err)
	}
	r.active.Store(ic)
	return nil
}

// Active returns the version that controls pages, or nil.
func (r *Registration) Active() *Interceptor {
	return r.active.Load()
}

// Handle routes req to the active version, or to the network when no
// version controls pages.
func (r *Registration) Handle(ctx context.Context, req *Request) (*Response, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}

	ic := r.active.Load()
	if ic == nil {
		r.stats.IncCounter(stats.MetricUncontrolled, 1)
		return r.fetcher.Fetch(ctx, req)
	}
	return ic.Handle(ctx, req)
}

// Close closes the active version and with it its storage.
func (r *Registration) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ic := r.active.Swap(nil); ic != nil {
		return ic.Close()
	}
	return nil
}
