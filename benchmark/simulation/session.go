package simulation

import (
	"fmt"
	"math/rand/v2"
)

// SessionConfig describes a synthetic field session: a viewport panning and
// zooming over a slippy map, requesting every tile it shows at each step.
type SessionConfig struct {
	Steps      int     // Viewport moves per session.
	StartZoom  int     // Zoom level the session opens at.
	MinZoom    int     // Lowest zoom reachable.
	MaxZoom    int     // Highest zoom reachable.
	ViewWidth  int     // Tiles visible horizontally.
	ViewHeight int     // Tiles visible vertically.
	ZoomChance float64 // Probability a step changes zoom instead of panning.
	TileBase   string  // URL prefix up to and including the tile marker.
}

// DefaultSessionConfig returns a phone-sized viewport around street zoom.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Steps:      60,
		StartZoom:  14,
		MinZoom:    11,
		MaxZoom:    17,
		ViewWidth:  3,
		ViewHeight: 5,
		ZoomChance: 0.15,
		TileBase:   "https://api.maptiler.com/maps/topo-v4/",
	}
}

// GenerateSession produces the ordered tile URLs one session requests.
// Sessions start near the same area so repeated sessions revisit tiles,
// like a field worker returning to a survey site.
func GenerateSession(cfg SessionConfig, rng *rand.Rand) []string {
	z := cfg.StartZoom
	x := (1 << z) / 2
	y := (1 << z) / 2
	x += rng.IntN(9) - 4
	y += rng.IntN(9) - 4

	urls := make([]string, 0, cfg.Steps*cfg.ViewWidth*cfg.ViewHeight)
	for range cfg.Steps {
		urls = appendViewport(urls, cfg, z, x, y)

		if rng.Float64() < cfg.ZoomChance {
			switch {
			case rng.IntN(2) == 0 && z < cfg.MaxZoom:
				z++
				x, y = x*2, y*2
			case z > cfg.MinZoom:
				z--
				x, y = x/2, y/2
			}
			continue
		}
		x += rng.IntN(3) - 1
		y += rng.IntN(3) - 1
	}
	return urls
}

func appendViewport(urls []string, cfg SessionConfig, z, cx, cy int) []string {
	n := 1 << z
	for dy := range cfg.ViewHeight {
		ty := cy + dy - cfg.ViewHeight/2
		if ty < 0 || ty >= n {
			continue
		}
		for dx := range cfg.ViewWidth {
			tx := ((cx+dx-cfg.ViewWidth/2)%n + n) % n
			urls = append(urls, fmt.Sprintf("%s%d/%d/%d.png", cfg.TileBase, z, tx, ty))
		}
	}
	return urls
}
