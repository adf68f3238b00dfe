package simulation

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"slices"
	"testing"

	"github.com/discochess/nestcache/internal/message"
	"github.com/discochess/nestcache/internal/router"
)

const (
	tileA = "https://api.maptiler.com/maps/topo-v4/14/1/1.png"
	tileB = "https://api.maptiler.com/maps/topo-v4/14/1/2.png"
)

func TestSimulator_SimulateSessions(t *testing.T) {
	sessions := [][]string{
		{tileA, tileB, tileA},
		{tileA},
	}

	tests := []struct {
		capacity     int
		wantMemHits  int
		wantDurable  int
		wantFetches  int
		wantHitRates []float64
	}{
		{capacity: 1, wantMemHits: 0, wantDurable: 2, wantFetches: 2, wantHitRates: []float64{0, 0}},
		{capacity: 2, wantMemHits: 1, wantDurable: 1, wantFetches: 2, wantHitRates: []float64{100.0 / 3, 0}},
	}

	sim := NewSimulator(1, 2)
	results, err := sim.SimulateSessions(context.Background(), sessions)
	if err != nil {
		t.Fatalf("SimulateSessions failed: %v", err)
	}

	for _, tt := range tests {
		res, ok := results[tt.capacity]
		if !ok {
			t.Fatalf("missing result for capacity %d", tt.capacity)
		}
		if res.TotalRequests != 4 {
			t.Errorf("capacity %d: TotalRequests = %d, want 4", tt.capacity, res.TotalRequests)
		}
		if res.UniqueTiles != 2 {
			t.Errorf("capacity %d: UniqueTiles = %d, want 2", tt.capacity, res.UniqueTiles)
		}
		if res.MemoryHits != tt.wantMemHits {
			t.Errorf("capacity %d: MemoryHits = %d, want %d", tt.capacity, res.MemoryHits, tt.wantMemHits)
		}
		if res.DurableHits != tt.wantDurable {
			t.Errorf("capacity %d: DurableHits = %d, want %d", tt.capacity, res.DurableHits, tt.wantDurable)
		}
		if res.NetworkFetches != tt.wantFetches {
			t.Errorf("capacity %d: NetworkFetches = %d, want %d", tt.capacity, res.NetworkFetches, tt.wantFetches)
		}
		if !slices.Equal(res.FetchesPerSession, []int{2, 0}) {
			t.Errorf("capacity %d: FetchesPerSession = %v, want [2 0]", tt.capacity, res.FetchesPerSession)
		}
		for i, want := range tt.wantHitRates {
			if math.Abs(res.HitRatePerSession[i]-want) > 1e-9 {
				t.Errorf("capacity %d: session %d hit rate = %f, want %f", tt.capacity, i, res.HitRatePerSession[i], want)
			}
		}
	}
}

func TestSimulator_InvalidCapacity(t *testing.T) {
	sim := NewSimulator(0)
	if _, err := sim.SimulateSessions(context.Background(), [][]string{{tileA}}); err == nil {
		t.Fatal("expected error for zero capacity")
	}
}

func TestSimulator_EmptySessions(t *testing.T) {
	results, err := NewSimulator(8).SimulateSessions(context.Background(), nil)
	if err != nil {
		t.Fatalf("SimulateSessions failed: %v", err)
	}
	res := results[8]
	if res.TotalRequests != 0 || res.MemoryHitRate() != 0 {
		t.Errorf("got %d requests, %f hit rate; want zero", res.TotalRequests, res.MemoryHitRate())
	}
}

func TestGenerateSession_Deterministic(t *testing.T) {
	cfg := DefaultSessionConfig()

	a := GenerateSession(cfg, rand.New(rand.NewPCG(42, 0)))
	b := GenerateSession(cfg, rand.New(rand.NewPCG(42, 0)))
	if !slices.Equal(a, b) {
		t.Fatal("same seed produced different sessions")
	}

	want := cfg.Steps * cfg.ViewWidth * cfg.ViewHeight
	if len(a) != want {
		t.Errorf("len = %d, want %d", len(a), want)
	}
}

func TestGenerateSession_RoutesAsTiles(t *testing.T) {
	r := router.New("", "")
	urls := GenerateSession(DefaultSessionConfig(), rand.New(rand.NewPCG(7, 7)))

	for _, u := range urls {
		req, err := message.NewRequest(http.MethodGet, u)
		if err != nil {
			t.Fatalf("NewRequest(%q) failed: %v", u, err)
		}
		if got := r.Route(req); got != router.Tile {
			t.Fatalf("Route(%q) = %v, want tile", u, got)
		}
	}
}

func TestComputeMetrics(t *testing.T) {
	res := &AggregateResult{
		Capacity:           4,
		TotalRequests:      10,
		MemoryHits:         5,
		DurableHits:        3,
		NetworkFetches:     2,
		UniqueTiles:        4,
		HitRatePerSession:  []float64{20, 40, 60, 80},
		FetchesPerSession:  []int{2, 0, 0, 0},
		UniqueTilesSession: []int{2, 2, 2, 2},
	}

	m := ComputeMetrics(res)
	if m.MemoryHitRate != 50 {
		t.Errorf("MemoryHitRate = %f, want 50", m.MemoryHitRate)
	}
	if m.DurableHitRate != 30 {
		t.Errorf("DurableHitRate = %f, want 30", m.DurableHitRate)
	}
	if m.MeanHitRate != 50 {
		t.Errorf("MeanHitRate = %f, want 50", m.MeanHitRate)
	}
	if m.MinHitRate != 20 || m.MaxHitRate != 80 {
		t.Errorf("Min/Max = %f/%f, want 20/80", m.MinHitRate, m.MaxHitRate)
	}
	if m.OfflineCoverage != 75 {
		t.Errorf("OfflineCoverage = %f, want 75", m.OfflineCoverage)
	}
}

func TestComputeMetrics_SingleSession(t *testing.T) {
	m := ComputeMetrics(&AggregateResult{
		HitRatePerSession:  []float64{10},
		FetchesPerSession:  []int{1},
		UniqueTilesSession: []int{1},
	})
	if m.StdDevHitRate != 0 {
		t.Errorf("StdDevHitRate = %f, want 0", m.StdDevHitRate)
	}
}
