// Package manifest defines the Asset Manifest: the list of shell resources
// fetched and stored when a version installs.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"slices"

	"github.com/discochess/nestcache/internal/message"
)

// Version is the manifest file format version.
const Version = 1

// ErrNoOrigin is returned when a relative entry is resolved without an origin.
var ErrNoOrigin = errors.New("relative manifest entry needs an origin")

// Manifest lists the resources pre-warmed into the shell partition.
// Entries are either absolute URLs or paths relative to the page origin.
type Manifest struct {
	Version int      `json:"version"`
	Assets  []string `json:"assets"`
}

var defaultAssets = []string{
	"/",
	"/index.html",
	"/favicon.png",
	"https://unpkg.com/leaflet@1.9.4/dist/leaflet.css",
	"https://unpkg.com/leaflet@1.9.4/dist/leaflet.js",
}

// Default returns the built-in manifest: the page shell and the map library.
func Default() *Manifest {
	return &Manifest{
		Version: Version,
		Assets:  slices.Clone(defaultAssets),
	}
}

// Resolve turns every entry into a GET request. Relative entries are resolved
// against origin, which may be nil when all entries are absolute.
//
// Two entries resolving to the same URL are rejected, since one install
// batch cannot store the same request twice.
func (m *Manifest) Resolve(origin *url.URL) ([]*message.Request, error) {
	reqs := make([]*message.Request, 0, len(m.Assets))
	seen := make(map[string]bool, len(m.Assets))
	for _, asset := range m.Assets {
		ref, err := url.Parse(asset)
		if err != nil {
			return nil, fmt.Errorf("parsing manifest entry %q: %w", asset, err)
		}
		if !ref.IsAbs() {
			if origin == nil {
				return nil, fmt.Errorf("%w: %q", ErrNoOrigin, asset)
			}
			ref = origin.ResolveReference(ref)
		}

		req := &message.Request{
			Method: http.MethodGet,
			URL:    ref,
			Header: make(http.Header),
		}
		if seen[req.Key()] {
			return nil, fmt.Errorf("duplicate manifest entry %q", req.Key())
		}
		seen[req.Key()] = true
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// Write writes the manifest as indented JSON to path.
func Write(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// Read reads a manifest from path.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if m.Version != Version {
		return nil, fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	return &m, nil
}
