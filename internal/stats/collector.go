// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the interceptor.
const (
	// Interceptor metrics.
	MetricRequests      = "nestcache_requests_total"
	MetricTileRequests  = "nestcache_tile_requests_total"
	MetricShellRequests = "nestcache_shell_requests_total"
	MetricUncontrolled  = "nestcache_uncontrolled_requests_total"
	MetricFailures      = "nestcache_request_failures_total"

	// Strategy metrics.
	MetricCacheHits        = "nestcache_cache_hits_total"
	MetricCacheMisses      = "nestcache_cache_misses_total"
	MetricNetworkFetches   = "nestcache_network_fetches_total"
	MetricNetworkErrors    = "nestcache_network_errors_total"
	MetricCacheWrites      = "nestcache_cache_writes_total"
	MetricCacheWriteErrors = "nestcache_cache_write_errors_total"

	// Lifecycle metrics.
	MetricInstalls         = "nestcache_installs_total"
	MetricInstallFailures  = "nestcache_install_failures_total"
	MetricInstallSeconds   = "nestcache_install_duration_seconds"
	MetricActivations      = "nestcache_activations_total"
	MetricPrunedPartitions = "nestcache_pruned_partitions_total"

	// Memory tier metrics.
	MetricMemoryHits   = "nestcache_memory_hits_total"
	MetricMemoryMisses = "nestcache_memory_misses_total"
	MetricMemorySize   = "nestcache_memory_entries"

	// Storage metrics.
	MetricCorruptEntries = "nestcache_corrupt_entries_total"
)

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
