// Package router classifies intercepted requests as map tiles or shell
// resources. It never touches the network or the cache.
package router

import (
	"strings"

	"github.com/discochess/nestcache/internal/message"
)

// Defaults for the tile provider.
const (
	DefaultTileHost   = "api.maptiler.com"
	DefaultTileMarker = "/maps/topo-v4/"
)

// Route identifies the strategy responsible for a request.
type Route int

const (
	// Shell routes to the cross-partition, read-only strategy.
	Shell Route = iota
	// Tile routes to the populate-on-miss tile strategy.
	Tile
)

// String returns the route name.
func (r Route) String() string {
	switch r {
	case Tile:
		return "tile"
	case Shell:
		return "shell"
	default:
		return "unknown"
	}
}

// Router maps requests to routes.
type Router struct {
	host   string
	marker string
}

// New creates a router that treats requests to host whose path contains
// marker as tiles. Empty arguments fall back to the defaults.
func New(host, marker string) *Router {
	if host == "" {
		host = DefaultTileHost
	}
	if marker == "" {
		marker = DefaultTileMarker
	}
	return &Router{host: host, marker: marker}
}

// Host returns the tile host.
func (r *Router) Host() string { return r.host }

// Marker returns the tile path marker.
func (r *Router) Marker() string { return r.marker }

// Route classifies req. Every request gets exactly one route.
func (r *Router) Route(req *message.Request) Route {
	if req == nil || req.URL == nil {
		return Shell
	}
	// Hostname drops any port; host names are case-insensitive.
	if !strings.EqualFold(req.URL.Hostname(), r.host) {
		return Shell
	}
	if !strings.Contains(req.URL.Path, r.marker) {
		return Shell
	}
	return Tile
}
