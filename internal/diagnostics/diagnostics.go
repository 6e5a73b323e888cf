// Package diagnostics tests OLS residuals for heteroscedasticity and autocorrelation.
package diagnostics

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/miradorstack/climate-econometrics/internal/models"
	"github.com/miradorstack/climate-econometrics/internal/regression"
)

// LMTest pairs a Lagrange-multiplier statistic with its F form. Only LM drives decisions.
type LMTest struct {
	LM models.TestResult
	F  models.TestResult
}

func checkLengths(stage string, x, resid []float64) error {
	if len(x) != len(resid) {
		return fmt.Errorf("%s: regressor has %d values but residuals have %d", stage, len(x), len(resid))
	}
	return nil
}

// auxiliary runs an auxiliary OLS regression with an intercept. Collinear designs are
// reported as degenerate input since they come from the data, not from the caller.
func auxiliary(stage string, response []float64, cols ...[]float64) (*regression.Fit, error) {
	fit, err := regression.LeastSquares(stage, regression.WithIntercept(cols...), response, nil)
	if err != nil {
		var singular *models.SingularDesignError
		if errors.As(err, &singular) {
			return nil, &models.DegenerateInputError{Stage: stage, Reason: "auxiliary regression is rank deficient: " + singular.Reason}
		}
		return nil, err
	}
	if fit.DFResid <= 0 {
		return nil, &models.InsufficientDataError{Stage: stage, Need: fit.K + 1, Got: fit.NObs}
	}
	return fit, nil
}

// lmTest builds the n·R² statistic with q restrictions and the matching overall F test.
func lmTest(name, fname string, fit *regression.Fit, q int, alpha float64) LMTest {
	n := float64(fit.NObs)
	lm := n * fit.RSquared
	lmRes := models.NewTestResult(name, lm, distuv.ChiSquared{K: float64(q)}.Survival(lm), alpha)
	lmRes.DF = []float64{float64(q)}
	lmRes.NObs = fit.NObs

	dfDen := float64(fit.DFResid)
	f := (fit.RSquared / float64(q)) / ((1 - fit.RSquared) / dfDen)
	fRes := models.NewTestResult(fname, f, fSurvival(f, float64(q), dfDen), alpha)
	fRes.DF = []float64{float64(q), dfDen}
	fRes.NObs = fit.NObs
	return LMTest{LM: lmRes, F: fRes}
}

func fSurvival(f, d1, d2 float64) float64 {
	if f <= 0 {
		return 1
	}
	return distuv.F{D1: d1, D2: d2}.Survival(f)
}

func squares(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * v
	}
	return out
}

func constant(values []float64) bool {
	return len(values) == 0 || floats.Max(values) == floats.Min(values)
}
