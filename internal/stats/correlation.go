package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/miradorstack/climate-econometrics/internal/models"
	"github.com/miradorstack/climate-econometrics/internal/regression"
)

// StageCorrelation names the Pearson stage in errors.
const StageCorrelation = "pearson_correlation"

// Pearson computes the correlation between the explanatory and dependent series and
// the two-sided p-value of H0: ρ = 0 from the t distribution with n-2 degrees of freedom.
// Two points always lie on a line, so n = 2 yields r = ±1 with p = 1.
func Pearson(pair models.TimeSeriesPair) (models.CorrelationResult, error) {
	n := pair.N()
	if n < 2 {
		return models.CorrelationResult{}, &models.InsufficientDataError{Stage: StageCorrelation, Need: 2, Got: n}
	}
	if floats.Max(pair.X) == floats.Min(pair.X) {
		return models.CorrelationResult{}, &models.DegenerateInputError{Stage: StageCorrelation, Reason: "explanatory series has zero variance"}
	}
	if floats.Max(pair.Y) == floats.Min(pair.Y) {
		return models.CorrelationResult{}, &models.DegenerateInputError{Stage: StageCorrelation, Reason: "dependent series has zero variance"}
	}

	r := stat.Correlation(pair.X, pair.Y, nil)
	r = math.Max(-1, math.Min(1, r))

	df := n - 2
	if df == 0 {
		return models.CorrelationResult{Coefficient: math.Copysign(1, r), PValue: 1, N: n}, nil
	}
	p := 0.0
	if denom := 1 - r*r; denom > 0 {
		t := r * math.Sqrt(float64(df)/denom)
		p = regression.TwoSidedP(t, df)
	}
	return models.CorrelationResult{Coefficient: r, PValue: p, N: n}, nil
}

// CorrelationTest expresses a correlation as a TestResult (H0: no linear correlation).
func CorrelationTest(c models.CorrelationResult, alpha float64) models.TestResult {
	res := models.NewTestResult(models.TestCorrelation, c.Coefficient, c.PValue, alpha)
	res.NObs = c.N
	res.DF = []float64{float64(c.N - 2)}
	return res
}
