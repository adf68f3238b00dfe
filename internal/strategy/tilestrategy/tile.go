// Package tilestrategy implements cache-first handling for map tiles.
//
// A tile found in the tile partition is returned without touching the
// network. A missing tile is fetched once, written into the partition and
// returned. Stored tiles are never refreshed or evicted.
package tilestrategy

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/discochess/nestcache/internal/cachestorage"
	"github.com/discochess/nestcache/internal/fetch"
	"github.com/discochess/nestcache/internal/message"
	"github.com/discochess/nestcache/internal/stats"
	"github.com/discochess/nestcache/internal/strategy"
)

// Strategy implements strategy.Strategy for tile requests.
type Strategy struct {
	storage   cachestorage.Storage
	partition string
	fetcher   fetch.Fetcher
	logger    *zap.Logger
	stats     stats.Collector
}

// Compile-time check that Strategy implements strategy.Strategy.
var _ strategy.Strategy = (*Strategy)(nil)

// Option configures a Strategy.
type Option func(*Strategy)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Strategy) {
		s.logger = logger
	}
}

// WithStats sets the stats collector.
func WithStats(c stats.Collector) Option {
	return func(s *Strategy) {
		s.stats = c
	}
}

// New creates a tile strategy that caches into the named partition of
// storage and fetches misses with fetcher.
func New(storage cachestorage.Storage, partition string, fetcher fetch.Fetcher, opts ...Option) *Strategy {
	s := &Strategy{
		storage:   storage,
		partition: partition,
		fetcher:   fetcher,
		logger:    zap.NewNop(),
		stats:     stats.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the strategy name.
func (s *Strategy) Name() string {
	return "tile"
}

// Partition returns the name of the tile partition.
func (s *Strategy) Partition() string {
	return s.partition
}

// Handle serves req from the tile partition, populating it on a miss.
func (s *Strategy) Handle(ctx context.Context, req *message.Request) (*message.Response, error) {
	p, err := s.storage.Open(ctx, s.partition)
	if err != nil {
		return nil, fmt.Errorf("opening tile partition: %w", err)
	}

	cached, err := p.Match(ctx, req)
	switch {
	case err == nil:
		s.stats.IncCounter(stats.MetricCacheHits, 1)
		s.logger.Debug("tile hit", zap.String("url", req.Key()))
		return cached, nil
	case !errors.Is(err, cachestorage.ErrNotFound):
		return nil, fmt.Errorf("matching tile: %w", err)
	}
	s.stats.IncCounter(stats.MetricCacheMisses, 1)

	s.stats.IncCounter(stats.MetricNetworkFetches, 1)
	resp, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		s.stats.IncCounter(stats.MetricNetworkErrors, 1)
		return nil, fmt.Errorf("fetching tile: %w", err)
	}

	s.store(ctx, p, req, resp.Clone())
	return resp, nil
}

// store writes the clone into the partition. The write outlives the request
// context and its failure never reaches the caller.
func (s *Strategy) store(ctx context.Context, p cachestorage.Partition, req *message.Request, clone *message.Response) {
	if err := p.Put(context.WithoutCancel(ctx), req, clone); err != nil {
		if errors.Is(err, cachestorage.ErrNotCacheable) {
			s.logger.Debug("tile not cacheable", zap.String("url", req.Key()), zap.Error(err))
			return
		}
		s.stats.IncCounter(stats.MetricCacheWriteErrors, 1)
		s.logger.Warn("caching tile failed", zap.String("url", req.Key()), zap.Error(err))
		return
	}
	s.stats.IncCounter(stats.MetricCacheWrites, 1)
	s.logger.Debug("tile cached", zap.String("url", req.Key()), zap.Int("status", clone.Status))
}
