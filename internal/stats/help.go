package stats

// Help returns the description of a known metric, or the name itself for
// metrics this package does not define.
func Help(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

var help = map[string]string{
	MetricRequests:         "Requests handled by the active interceptor.",
	MetricTileRequests:     "Requests routed to the tile strategy.",
	MetricShellRequests:    "Requests routed to the shell strategy.",
	MetricUncontrolled:     "Requests passed straight to the network because no version controls pages.",
	MetricFailures:         "Requests whose failure propagated to the page.",
	MetricCacheHits:        "Requests answered from a cache partition.",
	MetricCacheMisses:      "Requests not found in any consulted partition.",
	MetricNetworkFetches:   "Network fetches issued by strategies.",
	MetricNetworkErrors:    "Network fetches that failed.",
	MetricCacheWrites:      "Entries written into a partition by a strategy.",
	MetricCacheWriteErrors: "Partition writes that failed and were dropped.",
	MetricInstalls:         "Successful install batches.",
	MetricInstallFailures:  "Failed install batches.",
	MetricInstallSeconds:   "Duration of install batches in seconds.",
	MetricActivations:      "Versions that became active.",
	MetricPrunedPartitions: "Stale partitions deleted on activation.",
	MetricMemoryHits:       "Memory tier hits.",
	MetricMemoryMisses:     "Memory tier misses.",
	MetricMemorySize:       "Entries held by the memory tier.",
	MetricCorruptEntries:   "Stored entries that failed to decode and were treated as misses.",
}
