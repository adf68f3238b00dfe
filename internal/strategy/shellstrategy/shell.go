// Package shellstrategy implements cache-first, read-only handling for every
// request that is not a map tile.
package shellstrategy

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

// Strategy implements strategy.Strategy for shell requests.
// It searches every partition and never writes.
type Strategy struct {
	storage cachestorage.Storage
	fetcher fetch.Fetcher
	logger  *zap.Logger
	stats   stats.Collector
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

// New creates a shell strategy over storage.
func New(storage cachestorage.Storage, fetcher fetch.Fetcher, opts ...Option) *Strategy {
	s := &Strategy{
		storage: storage,
		fetcher: fetcher,
		logger:  zap.NewNop(),
		stats:   stats.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the strategy name.
func (s *Strategy) Name() string {
	return "shell"
}

// Handle returns the first match across all partitions, or the network
// response when nothing matches.
func (s *Strategy) Handle(ctx context.Context, req *message.Request) (*message.Response, error) {
	cached, err := cachestorage.MatchAll(ctx, s.storage, req)
	switch {
	case err == nil:
		s.stats.IncCounter(stats.MetricCacheHits, 1)
		s.logger.Debug("shell hit", zap.String("url", req.Key()))
		return cached, nil
	case !errors.Is(err, cachestorage.ErrNotFound):
		return nil, fmt.Errorf("matching shell request: %w", err)
	}
	s.stats.IncCounter(stats.MetricCacheMisses, 1)

	s.stats.IncCounter(stats.MetricNetworkFetches, 1)
	resp, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		s.stats.IncCounter(stats.MetricNetworkErrors, 1)
		return nil, fmt.Errorf("fetching shell request: %w", err)
	}
	s.logger.Debug("shell fetched", zap.String("url", req.Key()), zap.Int("status", resp.Status))
	return resp, nil
}
