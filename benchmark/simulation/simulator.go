// Package simulation replays synthetic map sessions through the tile cache to
// measure how memory tier capacity affects hit rates.
package simulation

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/discochess/nestcache/internal/cachestorage/memstorage"
	"github.com/discochess/nestcache/internal/cachestorage/tieredstorage"
	"github.com/discochess/nestcache/internal/cachestorage/tieredstorage/cachestrategy/lru"
	"github.com/discochess/nestcache/internal/cachestorage/tieredstorage/memory"
	"github.com/discochess/nestcache/internal/fetch"
	"github.com/discochess/nestcache/internal/message"
	"github.com/discochess/nestcache/internal/strategy/tilestrategy"
)

const tilePartition = "tile-cache"

// Simulator replays sessions against one tiered tile cache per capacity.
type Simulator struct {
	capacities []int
}

// NewSimulator creates a Simulator comparing the given memory tier capacities.
func NewSimulator(capacities ...int) *Simulator {
	return &Simulator{capacities: capacities}
}

// SimulateSessions replays every session, in order, for each capacity.
// The durable tier persists across sessions; the memory tier starts empty
// for each session, as it would after the app is reopened.
func (s *Simulator) SimulateSessions(ctx context.Context, sessions [][]string) (map[int]*AggregateResult, error) {
	results := make(map[int]*AggregateResult, len(s.capacities))
	for _, capacity := range s.capacities {
		res, err := s.simulate(ctx, capacity, sessions)
		if err != nil {
			return nil, fmt.Errorf("capacity %d: %w", capacity, err)
		}
		results[capacity] = res
	}
	return results, nil
}

func (s *Simulator) simulate(ctx context.Context, capacity int, sessions [][]string) (*AggregateResult, error) {
	strat, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}
	backend := memory.New(strat, nil)
	storage := tieredstorage.New(memstorage.New(), backend)

	var fetches atomic.Int64
	network := fetch.FetcherFunc(func(ctx context.Context, req *message.Request) (*message.Response, error) {
		fetches.Add(1)
		return &message.Response{
			URL:        req.Key(),
			Status:     http.StatusOK,
			StatusText: "OK",
			Header:     http.Header{"Content-Type": {"image/png"}},
			Body:       []byte(req.Key()),
		}, nil
	})
	tiles := tilestrategy.New(storage, tilePartition, network)

	agg := &AggregateResult{
		Capacity:           capacity,
		HitRatePerSession:  make([]float64, 0, len(sessions)),
		FetchesPerSession:  make([]int, 0, len(sessions)),
		UniqueTilesSession: make([]int, 0, len(sessions)),
	}
	seen := make(map[string]struct{})

	for _, session := range sessions {
		backend.Purge()
		before := backend.Stats()
		fetchedBefore := fetches.Load()
		unique := make(map[string]struct{}, len(session))

		for _, rawURL := range session {
			req, err := message.NewRequest(http.MethodGet, rawURL)
			if err != nil {
				return nil, err
			}
			if _, err := tiles.Handle(ctx, req); err != nil {
				return nil, err
			}
			unique[rawURL] = struct{}{}
			seen[rawURL] = struct{}{}
		}

		after := backend.Stats()
		delta := tieredstorage.Stats{
			Hits:   after.Hits - before.Hits,
			Misses: after.Misses - before.Misses,
		}
		fetched := int(fetches.Load() - fetchedBefore)

		agg.TotalRequests += len(session)
		agg.MemoryHits += int(delta.Hits)
		agg.NetworkFetches += fetched
		agg.HitRatePerSession = append(agg.HitRatePerSession, delta.HitRate())
		agg.FetchesPerSession = append(agg.FetchesPerSession, fetched)
		agg.UniqueTilesSession = append(agg.UniqueTilesSession, len(unique))
	}
	agg.UniqueTiles = len(seen)
	agg.DurableHits = agg.TotalRequests - agg.MemoryHits - agg.NetworkFetches
	return agg, nil
}

// AggregateResult contains results across every session for one capacity.
type AggregateResult struct {
	Capacity       int
	TotalRequests  int
	MemoryHits     int // Served from the memory tier.
	DurableHits    int // Missed memory, served from the durable tier.
	NetworkFetches int
	UniqueTiles    int

	HitRatePerSession  []float64 // Memory tier hit rate per session, in percent.
	FetchesPerSession  []int
	UniqueTilesSession []int
}

// MemoryHitRate returns the overall memory tier hit rate as a percentage.
func (a *AggregateResult) MemoryHitRate() float64 {
	if a.TotalRequests == 0 {
		return 0
	}
	return float64(a.MemoryHits) / float64(a.TotalRequests) * 100
}
