package memory

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/discochess/nestcache/internal/cachestorage/tieredstorage/cachestrategy/lru"
	"github.com/discochess/nestcache/internal/message"
	"github.com/discochess/nestcache/internal/stats"
	promstats "github.com/discochess/nestcache/internal/stats/prometheus"
)

func TestBackend_GetSet(t *testing.T) {
	strategy, err := lru.New(10)
	if err != nil {
		t.Fatalf("lru.New() error = %v", err)
	}
	b := New(strategy, nil)

	// Initially empty.
	if _, ok := b.Get("a"); ok {
		t.Error("Get() should return false for missing key")
	}

	// Set and get.
	b.Set("a", &message.Response{Status: 200, Body: []byte("hello")})
	resp, ok := b.Get("a")
	if !ok {
		t.Fatal("Get() should return true after Set")
	}
	if string(resp.Body) != "hello" {
		t.Errorf("Get() = %q, want %q", resp.Body, "hello")
	}
}

func TestBackend_Stats(t *testing.T) {
	strategy, err := lru.New(10)
	if err != nil {
		t.Fatalf("lru.New() error = %v", err)
	}
	b := New(strategy, nil)

	b.Set("a", &message.Response{Status: 200})

	// Hit.
	b.Get("a")
	// Miss.
	b.Get("b")

	s := b.Stats()
	if s.Hits != 1 {
		t.Errorf("Stats().Hits = %d, want 1", s.Hits)
	}
	if s.Misses != 1 {
		t.Errorf("Stats().Misses = %d, want 1", s.Misses)
	}
	if s.Size != 1 {
		t.Errorf("Stats().Size = %d, want 1", s.Size)
	}
}

func TestBackend_LRUEviction(t *testing.T) {
	strategy, err := lru.New(2) // Capacity of 2.
	if err != nil {
		t.Fatalf("lru.New() error = %v", err)
	}
	b := New(strategy, nil)

	b.Set("one", &message.Response{Status: 200})
	b.Set("two", &message.Response{Status: 200})
	b.Set("three", &message.Response{Status: 200}) // Should evict "one".

	if _, ok := b.Get("one"); ok {
		t.Error("Get(one) should return false after eviction")
	}
	if _, ok := b.Get("two"); !ok {
		t.Error("Get(two) should return true")
	}
	if _, ok := b.Get("three"); !ok {
		t.Error("Get(three) should return true")
	}
}

func TestBackend_RemovePurge(t *testing.T) {
	strategy, _ := lru.New(10)
	b := New(strategy, nil)

	b.Set("a", &message.Response{Status: 200})
	b.Set("b", &message.Response{Status: 200})

	b.Remove("a")
	if _, ok := b.Get("a"); ok {
		t.Error("Get(a) should return false after Remove")
	}

	b.Purge()
	if b.Len() != 0 {
		t.Errorf("Len() after Purge = %d, want 0", b.Len())
	}
}

func TestLRU_InvalidCapacity(t *testing.T) {
	_, err := lru.New(0)
	if err == nil {
		t.Error("lru.New(0) should return error")
	}

	_, err = lru.New(-1)
	if err == nil {
		t.Error("lru.New(-1) should return error")
	}
}

func TestBackend_ReportsToCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	strategy, _ := lru.New(10)
	b := New(strategy, promstats.New(reg))

	b.Set("a", &message.Response{Status: 200})
	b.Get("a")
	b.Get("missing")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	values := make(map[string]float64)
	for _, m := range metrics {
		switch {
		case m.GetMetric()[0].GetCounter() != nil:
			values[m.GetName()] = m.GetMetric()[0].GetCounter().GetValue()
		case m.GetMetric()[0].GetGauge() != nil:
			values[m.GetName()] = m.GetMetric()[0].GetGauge().GetValue()
		}
	}

	if values[stats.MetricMemoryHits] != 1 {
		t.Errorf("%s = %v, want 1", stats.MetricMemoryHits, values[stats.MetricMemoryHits])
	}
	if values[stats.MetricMemoryMisses] != 1 {
		t.Errorf("%s = %v, want 1", stats.MetricMemoryMisses, values[stats.MetricMemoryMisses])
	}
	if values[stats.MetricMemorySize] != 1 {
		t.Errorf("%s = %v, want 1", stats.MetricMemorySize, values[stats.MetricMemorySize])
	}
}

// fakeStrategy is a simple strategy for testing injection.
type fakeStrategy struct {
	data map[string]*message.Response
}

func (s *fakeStrategy) Get(key string) (*message.Response, bool) {
	v, ok := s.data[key]
	return v, ok
}

func (s *fakeStrategy) Add(key string, value *message.Response) bool {
	s.data[key] = value
	return false
}

func (s *fakeStrategy) Remove(key string) bool {
	_, ok := s.data[key]
	delete(s.data, key)
	return ok
}

func (s *fakeStrategy) Purge() {
	s.data = make(map[string]*message.Response)
}

func (s *fakeStrategy) Len() int {
	return len(s.data)
}

func TestBackend_InjectableStrategy(t *testing.T) {
	strategy := &fakeStrategy{data: make(map[string]*message.Response)}
	b := New(strategy, nil)

	b.Set("a", &message.Response{Status: 200, Body: []byte("test")})
	resp, ok := b.Get("a")
	if !ok || string(resp.Body) != "test" {
		t.Error("injectable strategy should work")
	}
}
