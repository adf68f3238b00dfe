package reporting

import (
	"bytes"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/discochess/nestcache/benchmark/analysis"
	"github.com/discochess/nestcache/benchmark/simulation"
)

func TestMarkdownReport_SummaryTableOrder(t *testing.T) {
	results := map[int]*simulation.AggregateResult{
		256: {Capacity: 256, TotalRequests: 10, MemoryHits: 8, HitRatePerSession: []float64{80}},
		16:  {Capacity: 16, TotalRequests: 10, MemoryHits: 2, HitRatePerSession: []float64{20}},
	}

	var buf bytes.Buffer
	r := NewMarkdownReport(&buf)
	r.WriteSummaryTable(results)

	out := buf.String()
	i16 := strings.Index(out, "| 16 |")
	i256 := strings.Index(out, "| 256 |")
	if i16 < 0 || i256 < 0 || i16 > i256 {
		t.Errorf("rows not in ascending capacity order:\n%s", out)
	}
	if !strings.Contains(out, "80.0%") {
		t.Errorf("missing 256 hit rate:\n%s", out)
	}
}

func TestMarkdownReport_Header(t *testing.T) {
	var buf bytes.Buffer
	r := NewMarkdownReport(&buf)
	r.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	r.WriteHeader("Tiles")

	want := "# Tiles\n\nGenerated: 2024-05-01T12:00:00Z\n\n"
	if buf.String() != want {
		t.Errorf("header = %q, want %q", buf.String(), want)
	}
}

func TestMarkdownReport_Comparison(t *testing.T) {
	small := &simulation.AggregateResult{Capacity: 16, HitRatePerSession: []float64{10, 12, 11, 9, 13}}
	large := &simulation.AggregateResult{Capacity: 256, HitRatePerSession: []float64{60, 62, 61, 59, 63}}

	var buf bytes.Buffer
	NewMarkdownReport(&buf).WriteComparison(analysis.CompareCapacities(small, large, 100, 0.95, 1))

	if !strings.Contains(buf.String(), "**256 entries** gives a significantly higher hit rate") {
		t.Errorf("missing conclusion:\n%s", buf.String())
	}
}

func TestMakeHistogram(t *testing.T) {
	got := makeHistogram([]float64{0, 9.9, 10, 55, 100, 120, -1})
	want := []int{3, 1, 0, 0, 0, 1, 0, 0, 0, 2}
	if !slices.Equal(got, want) {
		t.Errorf("makeHistogram = %v, want %v", got, want)
	}
}
