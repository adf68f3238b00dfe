// Package analysis provides statistical analysis for benchmark results.
package analysis

import (
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// WelchResult contains the result of Welch's unequal-variance t-test.
type WelchResult struct {
	T           float64 // t statistic.
	DF          float64 // Welch-Satterthwaite degrees of freedom.
	PValue      float64 // Two-tailed p-value.
	Significant bool    // True if p < 0.05.
}

// WelchTTest tests whether two samples have different means without
// assuming equal variances.
func WelchTTest(sample1, sample2 []float64) *WelchResult {
	n1 := float64(len(sample1))
	n2 := float64(len(sample2))
	if n1 < 2 || n2 < 2 {
		return &WelchResult{PValue: 1}
	}

	mean1, var1 := stat.MeanVariance(sample1, nil)
	mean2, var2 := stat.MeanVariance(sample2, nil)

	se1 := var1 / n1
	se2 := var2 / n2
	se := math.Sqrt(se1 + se2)
	if se == 0 {
		if mean1 == mean2 {
			return &WelchResult{PValue: 1}
		}
		return &WelchResult{T: math.Copysign(math.Inf(1), mean1-mean2), PValue: 0, Significant: true}
	}

	t := (mean1 - mean2) / se
	df := (se1 + se2) * (se1 + se2) / (se1*se1/(n1-1) + se2*se2/(n2-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.CDF(-math.Abs(t))

	return &WelchResult{
		T:           t,
		DF:          df,
		PValue:      p,
		Significant: p < 0.05,
	}
}

// EffectSize contains effect size metrics.
type EffectSize struct {
	CohensD        float64 // (mean1 - mean2) / pooled standard deviation.
	Interpretation string  // "negligible", "small", "medium", "large".
}

// ComputeEffectSize computes Cohen's d effect size.
func ComputeEffectSize(sample1, sample2 []float64) *EffectSize {
	if len(sample1) < 2 || len(sample2) < 2 {
		return &EffectSize{Interpretation: "undefined"}
	}

	mean1, var1 := stat.MeanVariance(sample1, nil)
	mean2, var2 := stat.MeanVariance(sample2, nil)

	n1 := float64(len(sample1))
	n2 := float64(len(sample2))
	pooled := math.Sqrt(((n1-1)*var1 + (n2-1)*var2) / (n1 + n2 - 2))

	var d float64
	if pooled > 0 {
		d = (mean1 - mean2) / pooled
	}
	return &EffectSize{
		CohensD:        d,
		Interpretation: interpretCohensD(math.Abs(d)),
	}
}

func interpretCohensD(d float64) string {
	switch {
	case d < 0.2:
		return "negligible"
	case d < 0.5:
		return "small"
	case d < 0.8:
		return "medium"
	default:
		return "large"
	}
}

// BootstrapResult is a bootstrap confidence interval for a mean difference.
type BootstrapResult struct {
	MeanDiff   float64
	LowerBound float64
	UpperBound float64
	Confidence float64 // e.g. 0.95.
}

// BootstrapConfidenceInterval estimates a percentile confidence interval for
// mean(sample1) - mean(sample2). The seed makes reports reproducible.
func BootstrapConfidenceInterval(sample1, sample2 []float64, iterations int, confidence float64, seed uint64) *BootstrapResult {
	if len(sample1) == 0 || len(sample2) == 0 || iterations <= 0 {
		return &BootstrapResult{Confidence: confidence}
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	r1 := make([]float64, len(sample1))
	r2 := make([]float64, len(sample2))

	diffs := make([]float64, iterations)
	for i := range diffs {
		resample(rng, sample1, r1)
		resample(rng, sample2, r2)
		diffs[i] = stat.Mean(r1, nil) - stat.Mean(r2, nil)
	}
	slices.Sort(diffs)

	alpha := 1 - confidence
	return &BootstrapResult{
		MeanDiff:   stat.Mean(sample1, nil) - stat.Mean(sample2, nil),
		LowerBound: stat.Quantile(alpha/2, stat.Empirical, diffs, nil),
		UpperBound: stat.Quantile(1-alpha/2, stat.Empirical, diffs, nil),
		Confidence: confidence,
	}
}

func resample(rng *rand.Rand, sample, dst []float64) {
	for i := range dst {
		dst[i] = sample[rng.IntN(len(sample))]
	}
}

// DescriptiveStats contains basic descriptive statistics.
type DescriptiveStats struct {
	N      int
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
	P25    float64
	P75    float64
}

// Describe computes descriptive statistics for a sample.
func Describe(sample []float64) *DescriptiveStats {
	if len(sample) == 0 {
		return &DescriptiveStats{}
	}

	sorted := slices.Clone(sample)
	slices.Sort(sorted)

	d := &DescriptiveStats{
		N:      len(sample),
		Mean:   stat.Mean(sample, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		P25:    stat.Quantile(0.25, stat.Empirical, sorted, nil),
		P75:    stat.Quantile(0.75, stat.Empirical, sorted, nil),
	}
	if len(sample) > 1 {
		d.StdDev = stat.StdDev(sample, nil)
	}
	return d
}
