// internal/metrics/metrics.go
// Package metrics aggregates raw trial scores into the statistics the
// experiment reports are built from. Degenerate inputs (empty series,
// too few points, zero variance) yield neutral defaults, never errors:
// a sweep must always produce a best-effort summary.
package metrics

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// logitEps clamps probabilities away from 0 and 1 before taking log-odds.
const logitEps = 0.01

// Mean returns the arithmetic mean, 0 on an empty series.
func Mean(values []float64) float64 {
	m, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return m
}

// SampleStdDev returns the sample standard deviation, 0 below two points.
func SampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sd, err := stats.StandardDeviationSample(values)
	if err != nil {
		return 0
	}
	return sd
}

// StdErr returns the standard error of the mean, 0 below two points.
func StdErr(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return SampleStdDev(values) / math.Sqrt(float64(len(values)))
}

// SampleVariance returns the unbiased variance, 0 below two points.
func SampleVariance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	v, err := stats.SampleVariance(values)
	if err != nil {
		return 0
	}
	return v
}

// PopulationVariance returns the biased variance, 0 on an empty series.
func PopulationVariance(values []float64) float64 {
	v, err := stats.PopulationVariance(values)
	if err != nil {
		return 0
	}
	return v
}

// PermutationSensitivity is the sample variance of per-permutation mean
// phi for one evidence subset: how much the score moves when only the
// evidence order changes.
func PermutationSensitivity(perPermutationMeans []float64) float64 {
	return SampleVariance(perPermutationMeans)
}

// RobustnessDrop is mean phi on base prompts minus mean phi on their
// paraphrases. Positive values mean paraphrasing hurts.
func RobustnessDrop(basePhi, paraphrasePhi []float64) float64 {
	return Mean(basePhi) - Mean(paraphrasePhi)
}

// Correlation bundles Pearson and Spearman coefficients with two-tailed
// p-values.
type Correlation struct {
	PearsonR  float64 `json:"pearson_r"`
	PearsonP  float64 `json:"pearson_p"`
	SpearmanR float64 `json:"spearman_r"`
	SpearmanP float64 `json:"spearman_p"`
}

// neutralCorrelation is the defined result for undersized or constant
// series, where a correlation coefficient is undefined.
func neutralCorrelation() Correlation {
	return Correlation{PearsonR: 0, PearsonP: 1, SpearmanR: 0, SpearmanP: 1}
}

// Correlate computes Pearson and Spearman correlation between x and y.
// Fewer than three points, mismatched lengths, or a zero-variance series
// return the neutral default rather than an error.
func Correlate(x, y []float64) Correlation {
	if len(x) < 3 || len(y) < 3 || len(x) != len(y) {
		return neutralCorrelation()
	}
	if SampleStdDev(x) == 0 || SampleStdDev(y) == 0 {
		return neutralCorrelation()
	}

	pearsonR, err := stats.Pearson(x, y)
	if err != nil {
		return neutralCorrelation()
	}
	spearmanR, err := stats.Pearson(ranks(x), ranks(y))
	if err != nil {
		return neutralCorrelation()
	}

	n := len(x)
	return Correlation{
		PearsonR:  pearsonR,
		PearsonP:  correlationPValue(pearsonR, n),
		SpearmanR: spearmanR,
		SpearmanP: correlationPValue(spearmanR, n),
	}
}

// correlationPValue converts a correlation coefficient into a two-tailed
// p-value via the t-distribution with n-2 degrees of freedom.
func correlationPValue(r float64, n int) float64 {
	if n < 3 {
		return 1
	}
	denom := 1 - r*r
	if denom <= 0 {
		return 0
	}
	df := float64(n - 2)
	t := math.Abs(r) * math.Sqrt(df/denom)
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * (1 - tDist.CDF(t))
}

// ranks assigns 1-based ranks, averaging ties.
func ranks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	out := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		// Ranks i+1..j+1 share a value; assign their average.
		avg := float64(i+j+2) / 2
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}

// Logit returns log-odds of p with the probability clamped into
// [logitEps, 1-logitEps] so saturated conditions stay subtractable.
func Logit(p float64) float64 {
	clamped := math.Max(logitEps, math.Min(1-logitEps, p))
	return math.Log(clamped / (1 - clamped))
}

// KAggregate is the per-k summary of phi outcomes.
type KAggregate struct {
	K      int     `json:"k"`
	Mean   float64 `json:"mean_phi"`
	Std    float64 `json:"std_phi"`
	StdErr float64 `json:"stderr_phi"`
	N      int     `json:"n_samples"`
}

// AggregateByK groups phi values by k and summarizes each group, returned
// in ascending k order.
func AggregateByK(phiByK map[int][]float64) []KAggregate {
	ks := make([]int, 0, len(phiByK))
	for k := range phiByK {
		ks = append(ks, k)
	}
	sort.Ints(ks)

	out := make([]KAggregate, 0, len(ks))
	for _, k := range ks {
		values := phiByK[k]
		out = append(out, KAggregate{
			K:      k,
			Mean:   Mean(values),
			Std:    SampleStdDev(values),
			StdErr: StdErr(values),
			N:      len(values),
		})
	}
	return out
}
