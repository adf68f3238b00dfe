// Package lru implements an LRU eviction strategy for the memory tier.
package lru

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/discochess/nestcache/internal/cachestorage/tieredstorage/cachestrategy"
	"github.com/discochess/nestcache/internal/message"
)

// Compile-time check that Strategy implements cachestrategy.Strategy.
var _ cachestrategy.Strategy = (*Strategy)(nil)

// Strategy implements LRU eviction.
type Strategy struct {
	cache *lru.Cache[string, *message.Response]
}

// New creates a new LRU strategy with the given capacity.
func New(capacity int) (*Strategy, error) {
	c, err := lru.New[string, *message.Response](capacity)
	if err != nil {
		return nil, err
	}
	return &Strategy{cache: c}, nil
}

// Get retrieves a value by key.
func (s *Strategy) Get(key string) (*message.Response, bool) {
	return s.cache.Get(key)
}

// Add adds a value to the cache and reports whether an eviction occurred.
func (s *Strategy) Add(key string, value *message.Response) bool {
	return s.cache.Add(key, value)
}

// Remove removes a key and reports whether it was present.
func (s *Strategy) Remove(key string) bool {
	return s.cache.Remove(key)
}

// Purge removes every key.
func (s *Strategy) Purge() {
	s.cache.Purge()
}

// Len returns the number of items in the cache.
func (s *Strategy) Len() int {
	return s.cache.Len()
}
