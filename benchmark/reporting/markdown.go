// Package reporting provides report generation for benchmark results.
package reporting

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/discochess/nestcache/benchmark/analysis"
	"github.com/discochess/nestcache/benchmark/simulation"
)

// MarkdownReport generates benchmark reports in Markdown format.
type MarkdownReport struct {
	w   io.Writer
	now func() time.Time
}

// NewMarkdownReport creates a new Markdown report writer.
func NewMarkdownReport(w io.Writer) *MarkdownReport {
	return &MarkdownReport{w: w, now: time.Now}
}

// WriteHeader writes the report header.
func (r *MarkdownReport) WriteHeader(title string) {
	fmt.Fprintf(r.w, "# %s\n\n", title)
	fmt.Fprintf(r.w, "Generated: %s\n\n", r.now().Format(time.RFC3339))
}

// WriteMethodology writes the methodology section.
func (r *MarkdownReport) WriteMethodology(sessions, requests int, cfg simulation.SessionConfig) {
	fmt.Fprintln(r.w, "## Methodology")
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "- **Sessions replayed:** %d\n", sessions)
	fmt.Fprintf(r.w, "- **Tile requests:** %d\n", requests)
	fmt.Fprintf(r.w, "- **Viewport:** %dx%d tiles, %d steps, zoom %d-%d\n",
		cfg.ViewWidth, cfg.ViewHeight, cfg.Steps, cfg.MinZoom, cfg.MaxZoom)
	fmt.Fprintln(r.w, "- **Metric:** memory tier hit rate per session (higher is better)")
	fmt.Fprintln(r.w, "- **Statistical tests:** Welch's t-test, Cohen's d effect size, bootstrap CI")
	fmt.Fprintln(r.w)
}

// WriteSummaryTable writes one row per capacity, smallest first.
func (r *MarkdownReport) WriteSummaryTable(results map[int]*simulation.AggregateResult) {
	fmt.Fprintln(r.w, "## Summary")
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, "| Capacity | Memory Hit | Durable Hit | Network Fetches | Median Session | P10 Session |")
	fmt.Fprintln(r.w, "|----------|------------|-------------|-----------------|----------------|-------------|")

	for _, capacity := range SortedCapacities(results) {
		m := simulation.ComputeMetrics(results[capacity])
		fmt.Fprintf(r.w, "| %d | %.1f%% | %.1f%% | %d | %.1f%% | %.1f%% |\n",
			capacity, m.MemoryHitRate, m.DurableHitRate, m.NetworkFetches,
			m.MedianHitRate, m.P10HitRate)
	}
	fmt.Fprintln(r.w)
}

// WriteComparison writes a detailed comparison section.
func (r *MarkdownReport) WriteComparison(comp *analysis.CapacityComparison) {
	fmt.Fprintf(r.w, "## %d vs %d entries\n\n", comp.Capacity1, comp.Capacity2)

	fmt.Fprintln(r.w, "### Descriptive Statistics")
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "| Metric | %d | %d |\n", comp.Capacity1, comp.Capacity2)
	fmt.Fprintln(r.w, "|--------|---|---|")
	fmt.Fprintf(r.w, "| Mean | %.2f | %.2f |\n", comp.Stats1.Mean, comp.Stats2.Mean)
	fmt.Fprintf(r.w, "| Median | %.2f | %.2f |\n", comp.Stats1.Median, comp.Stats2.Median)
	fmt.Fprintf(r.w, "| Std Dev | %.2f | %.2f |\n", comp.Stats1.StdDev, comp.Stats2.StdDev)
	fmt.Fprintf(r.w, "| Min | %.2f | %.2f |\n", comp.Stats1.Min, comp.Stats2.Min)
	fmt.Fprintf(r.w, "| Max | %.2f | %.2f |\n", comp.Stats1.Max, comp.Stats2.Max)
	fmt.Fprintln(r.w)

	fmt.Fprintln(r.w, "### Statistical Analysis")
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "- **Welch's t:** %.2f (df=%.1f, p=%.4f)\n",
		comp.Welch.T, comp.Welch.DF, comp.Welch.PValue)
	fmt.Fprintf(r.w, "- **Effect size (Cohen's d):** %.2f (%s)\n",
		comp.EffectSize.CohensD, comp.EffectSize.Interpretation)
	fmt.Fprintf(r.w, "- **%.0f%% CI for mean difference:** [%.2f, %.2f]\n",
		comp.BootstrapCI.Confidence*100, comp.BootstrapCI.LowerBound, comp.BootstrapCI.UpperBound)
	fmt.Fprintln(r.w)

	fmt.Fprintln(r.w, "### Conclusion")
	fmt.Fprintln(r.w)
	switch {
	case comp.WinnerConfident:
		fmt.Fprintf(r.w, "**%d entries** gives a significantly higher hit rate (p < 0.05, effect size: %s).\n",
			comp.Winner, comp.EffectSize.Interpretation)
	default:
		fmt.Fprintln(r.w, "No statistically significant difference detected between capacities (p >= 0.05).")
	}
	fmt.Fprintln(r.w)
}

// WriteDistributionChart writes an ASCII histogram of per-session hit rates.
func (r *MarkdownReport) WriteDistributionChart(capacity int, rates []float64) {
	fmt.Fprintf(r.w, "### %d entries: hit rate distribution\n\n", capacity)
	fmt.Fprintln(r.w, "```")

	hist := makeHistogram(rates)
	maxCount := slices.Max(hist)

	const width = 40
	for i, count := range hist {
		barLen := 0
		if maxCount > 0 {
			barLen = count * width / maxCount
		}
		fmt.Fprintf(r.w, "%3d-%3d%% │ %s %d\n", i*10, i*10+9, strings.Repeat("█", barLen), count)
	}

	fmt.Fprintln(r.w, "```")
	fmt.Fprintln(r.w)
}

// makeHistogram buckets percentages into ten 10-point buckets.
func makeHistogram(rates []float64) []int {
	hist := make([]int, 10)
	for _, v := range rates {
		b := int(v / 10)
		b = max(0, min(b, len(hist)-1))
		hist[b]++
	}
	return hist
}

// WriteFooter writes the report footer.
func (r *MarkdownReport) WriteFooter() {
	fmt.Fprintln(r.w, "---")
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, "*Report generated by nestcache-bench*")
}

// SortedCapacities returns the result capacities in ascending order.
func SortedCapacities(results map[int]*simulation.AggregateResult) []int {
	capacities := make([]int, 0, len(results))
	for c := range results {
		capacities = append(capacities, c)
	}
	slices.Sort(capacities)
	return capacities
}
