package simulation

import (
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics contains computed metrics from simulation results.
type Metrics struct {
	Capacity       int
	TotalRequests  int
	UniqueTiles    int
	NetworkFetches int
	MemoryHitRate  float64 // Overall, in percent.
	DurableHitRate float64 // Overall, in percent.

	// Per-session memory hit rate distribution.
	MeanHitRate   float64
	StdDevHitRate float64
	MedianHitRate float64
	P10HitRate    float64
	MinHitRate    float64
	MaxHitRate    float64

	// Tiles a session touched that were already durable from earlier sessions.
	OfflineCoverage float64
}

// ComputeMetrics computes detailed metrics from aggregate results.
func ComputeMetrics(result *AggregateResult) *Metrics {
	m := &Metrics{
		Capacity:       result.Capacity,
		TotalRequests:  result.TotalRequests,
		UniqueTiles:    result.UniqueTiles,
		NetworkFetches: result.NetworkFetches,
		MemoryHitRate:  result.MemoryHitRate(),
	}
	if result.TotalRequests > 0 {
		m.DurableHitRate = float64(result.DurableHits) / float64(result.TotalRequests) * 100
	}

	rates := result.HitRatePerSession
	if len(rates) > 0 {
		sorted := slices.Clone(rates)
		slices.Sort(sorted)

		m.MeanHitRate = stat.Mean(rates, nil)
		if len(rates) > 1 {
			m.StdDevHitRate = stat.StdDev(rates, nil)
		}
		m.MedianHitRate = stat.Quantile(0.5, stat.Empirical, sorted, nil)
		m.P10HitRate = stat.Quantile(0.1, stat.Empirical, sorted, nil)
		m.MinHitRate = floats.Min(rates)
		m.MaxHitRate = floats.Max(rates)
	}

	var touched, fetched int
	for i, n := range result.UniqueTilesSession {
		touched += n
		fetched += result.FetchesPerSession[i]
	}
	if touched > 0 {
		m.OfflineCoverage = float64(touched-fetched) / float64(touched) * 100
	}
	return m
}
