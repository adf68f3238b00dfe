// Package memory implements an in-memory tier backend.
package memory

import (
	"sync/atomic"

	"github.com/discochess/nestcache/internal/cachestorage/tieredstorage"
	"github.com/discochess/nestcache/internal/cachestorage/tieredstorage/cachestrategy"
	"github.com/discochess/nestcache/internal/message"
	"github.com/discochess/nestcache/internal/stats"
)

// Compile-time check that Backend implements tieredstorage.Backend.
var _ tieredstorage.Backend = (*Backend)(nil)

// Backend is a thread-safe in-memory tier backend.
type Backend struct {
	strategy  cachestrategy.Strategy
	collector stats.Collector

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a new memory backend with the given eviction strategy.
// The collector is optional; if nil, a no-op collector is used.
func New(strategy cachestrategy.Strategy, collector stats.Collector) *Backend {
	if collector == nil {
		collector = stats.NewNoop()
	}
	return &Backend{
		strategy:  strategy,
		collector: collector,
	}
}

// Get retrieves a response from the tier.
func (b *Backend) Get(key string) (*message.Response, bool) {
	val, ok := b.strategy.Get(key)
	if ok {
		b.hits.Add(1)
		b.collector.IncCounter(stats.MetricMemoryHits, 1)
		return val, true
	}
	b.misses.Add(1)
	b.collector.IncCounter(stats.MetricMemoryMisses, 1)
	return nil, false
}

// Set stores a response in the tier.
func (b *Backend) Set(key string, resp *message.Response) {
	b.strategy.Add(key, resp)
	b.collector.SetGauge(stats.MetricMemorySize, int64(b.strategy.Len()))
}

// Remove drops key from the tier.
func (b *Backend) Remove(key string) {
	b.strategy.Remove(key)
	b.collector.SetGauge(stats.MetricMemorySize, int64(b.strategy.Len()))
}

// Purge empties the tier.
func (b *Backend) Purge() {
	b.strategy.Purge()
	b.collector.SetGauge(stats.MetricMemorySize, 0)
}

// Stats returns current tier statistics.
func (b *Backend) Stats() tieredstorage.Stats {
	return tieredstorage.Stats{
		Hits:   b.hits.Load(),
		Misses: b.misses.Load(),
		Size:   b.strategy.Len(),
	}
}

// Len returns the number of items in the tier.
func (b *Backend) Len() int {
	return b.strategy.Len()
}
