// Package tieredstorage provides an in-memory tier in front of a durable
// cache storage.
//
// The memory tier only ever holds copies: evicting from it never removes the
// durable entry, so offline availability is decided by the durable storage
// alone.
package tieredstorage

import "github.com/discochess/nestcache/internal/message"

// Backend defines the interface for memory tier backends.
// Implementations handle storage and eviction strategy (LRU, ...).
type Backend interface {
	// Get retrieves a cached response. Returns nil, false if not found.
	Get(key string) (*message.Response, bool)

	// Set stores a response in the tier.
	Set(key string, resp *message.Response)

	// Remove drops a single key from the tier.
	Remove(key string)

	// Purge drops every key from the tier.
	Purge()

	// Stats returns tier statistics.
	Stats() Stats
}

// Stats contains memory tier statistics.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int // Current number of entries
}

// HitRate returns the hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}
