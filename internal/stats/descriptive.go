package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/miradorstack/climate-econometrics/internal/models"
)

// StageDescriptive names descriptive statistics in errors.
const StageDescriptive = "descriptive_statistics"

// Describe computes moments and quartiles of a series. Variance and standard deviation
// use the n-1 divisor; quartiles interpolate linearly between order statistics.
func Describe(values []float64) (models.DescriptiveStats, error) {
	n := len(values)
	if n == 0 {
		return models.DescriptiveStats{}, &models.InsufficientDataError{Stage: StageDescriptive, Need: 1, Got: 0}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	variance := math.NaN()
	if n > 1 {
		variance = stat.Variance(values, nil)
	}

	return models.DescriptiveStats{
		N:        n,
		Mean:     stat.Mean(values, nil),
		StdDev:   math.Sqrt(variance),
		Variance: variance,
		Min:      floats.Min(values),
		Max:      floats.Max(values),
		Median:   Quantile(sorted, 0.5),
		Q1:       Quantile(sorted, 0.25),
		Q3:       Quantile(sorted, 0.75),
	}, nil
}

// Quantile returns the p-quantile of an ascending slice using linear interpolation
// between the closest ranks, h = (n-1)·p.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo+1 >= n {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}
