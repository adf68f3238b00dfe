// Package cachestrategy defines memory tier eviction strategy interfaces.
package cachestrategy

import "github.com/discochess/nestcache/internal/message"

// Strategy defines the interface for memory tier eviction strategies.
type Strategy interface {
	Get(key string) (*message.Response, bool)
	Add(key string, value *message.Response) bool
	Remove(key string) bool
	Purge()
	Len() int
}
