// Package strategy defines how a routed request is answered from the cache,
// the network, or both.
package strategy

import (
	"context"

	"github.com/discochess/nestcache/internal/message"
)

// Strategy answers a single intercepted request.
type Strategy interface {
	// Name returns a human-readable name for this strategy.
	Name() string

	// Handle returns the response for req. A returned error is a failure
	// of this request only and is propagated to the page unchanged.
	Handle(ctx context.Context, req *message.Request) (*message.Response, error)
}
