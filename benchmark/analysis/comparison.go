package analysis

import (
	"fmt"
	"strings"

	"github.com/discochess/nestcache/benchmark/simulation"
)

// CapacityComparison compares per-session memory hit rates of two capacities.
type CapacityComparison struct {
	Capacity1   int
	Capacity2   int
	Stats1      *DescriptiveStats
	Stats2      *DescriptiveStats
	Welch       *WelchResult
	EffectSize  *EffectSize
	BootstrapCI *BootstrapResult

	// Winner is the capacity with the higher mean hit rate, or 0 on a tie.
	Winner          int
	WinnerConfident bool
}

// CompareCapacities performs a full statistical comparison between two
// capacities' results.
func CompareCapacities(
	result1, result2 *simulation.AggregateResult,
	bootstrapIterations int,
	confidence float64,
	seed uint64,
) *CapacityComparison {
	sample1 := result1.HitRatePerSession
	sample2 := result2.HitRatePerSession

	c := &CapacityComparison{
		Capacity1:   result1.Capacity,
		Capacity2:   result2.Capacity,
		Stats1:      Describe(sample1),
		Stats2:      Describe(sample2),
		Welch:       WelchTTest(sample1, sample2),
		EffectSize:  ComputeEffectSize(sample1, sample2),
		BootstrapCI: BootstrapConfidenceInterval(sample1, sample2, bootstrapIterations, confidence, seed),
	}

	switch {
	case c.Stats1.Mean > c.Stats2.Mean:
		c.Winner = result1.Capacity
		c.WinnerConfident = c.Welch.Significant
	case c.Stats2.Mean > c.Stats1.Mean:
		c.Winner = result2.Capacity
		c.WinnerConfident = c.Welch.Significant
	}
	return c
}

// Summary returns a short plain-text summary of the comparison.
func (c *CapacityComparison) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "capacity %d vs %d: mean hit rate %.1f%% vs %.1f%%\n",
		c.Capacity1, c.Capacity2, c.Stats1.Mean, c.Stats2.Mean)
	fmt.Fprintf(&b, "  Welch t=%.2f df=%.1f p=%.4f, Cohen's d=%.2f (%s)\n",
		c.Welch.T, c.Welch.DF, c.Welch.PValue, c.EffectSize.CohensD, c.EffectSize.Interpretation)
	fmt.Fprintf(&b, "  %.0f%% CI for difference: [%.2f, %.2f]\n",
		c.BootstrapCI.Confidence*100, c.BootstrapCI.LowerBound, c.BootstrapCI.UpperBound)
	switch {
	case c.Winner == 0:
		b.WriteString("  no difference")
	case c.WinnerConfident:
		fmt.Fprintf(&b, "  capacity %d is significantly better", c.Winner)
	default:
		fmt.Fprintf(&b, "  capacity %d is better, not significant", c.Winner)
	}
	return b.String()
}
