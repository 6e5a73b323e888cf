package diagnostics

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/miradorstack/climate-econometrics/internal/models"
)

// DefaultDurbinWatsonLower and DefaultDurbinWatsonUpper bound the band of statistics
// treated as showing no first-order autocorrelation.
const (
	DefaultDurbinWatsonLower = 1.5
	DefaultDurbinWatsonUpper = 2.5
)

// DurbinWatson returns Σ(e_t - e_{t-1})² / Σe_t². The statistic has no p-value; it is
// flagged when it falls outside [lower, upper].
func DurbinWatson(resid []float64, lower, upper float64) (models.DurbinWatsonResult, error) {
	const stage = models.TestDurbinWatson
	n := len(resid)
	if n < 2 {
		return models.DurbinWatsonResult{}, &models.InsufficientDataError{Stage: stage, Need: 2, Got: n}
	}
	if lower <= 0 && upper <= 0 {
		lower, upper = DefaultDurbinWatsonLower, DefaultDurbinWatsonUpper
	}
	den := floats.Dot(resid, resid)
	if den == 0 {
		return models.DurbinWatsonResult{}, &models.DegenerateInputError{Stage: stage, Reason: "residuals are identically zero"}
	}
	num := 0.0
	for t := 1; t < n; t++ {
		d := resid[t] - resid[t-1]
		num += d * d
	}
	dw := num / den
	return models.DurbinWatsonResult{
		Statistic: dw,
		Lower:     lower,
		Upper:     upper,
		Flagged:   dw < lower || dw > upper,
	}, nil
}

// BreuschGodfrey regresses the residuals on [1, x, e_{t-1} … e_{t-p}], pre-sample lags
// set to zero, and compares LM = n·R² with χ²(p). The F form tests the p lag terms
// jointly against the regression without them. H0: no autocorrelation up to lag p.
func BreuschGodfrey(x, resid []float64, lags int, alpha float64) (LMTest, error) {
	const stage = models.TestBreuschGodfrey
	if err := checkLengths(stage, x, resid); err != nil {
		return LMTest{}, err
	}
	if lags < 1 {
		return LMTest{}, &models.DegenerateInputError{Stage: stage, Reason: "lag order must be at least 1"}
	}
	n := len(resid)
	if need := lags + 3; n < need {
		return LMTest{}, &models.InsufficientDataError{Stage: stage, Need: need, Got: n}
	}
	if constant(resid) {
		return LMTest{}, &models.DegenerateInputError{Stage: stage, Reason: "residuals have zero variance"}
	}

	cols := make([][]float64, 0, lags+1)
	cols = append(cols, x)
	for j := 1; j <= lags; j++ {
		lagged := make([]float64, n)
		copy(lagged[j:], resid[:n-j])
		cols = append(cols, lagged)
	}

	full, err := auxiliary(stage, resid, cols...)
	if err != nil {
		return LMTest{}, err
	}
	restricted, err := auxiliary(stage, resid, x)
	if err != nil {
		return LMTest{}, err
	}

	lm := float64(n) * full.RSquared
	lmRes := models.NewTestResult(models.TestBreuschGodfrey, lm, distuv.ChiSquared{K: float64(lags)}.Survival(lm), alpha)
	lmRes.DF = []float64{float64(lags)}
	lmRes.Lags = lags
	lmRes.NObs = n

	dfDen := float64(full.DFResid)
	f := ((restricted.SSR - full.SSR) / float64(lags)) / (full.SSR / dfDen)
	fRes := models.NewTestResult(models.TestBreuschGodfreyF, f, fSurvival(f, float64(lags), dfDen), alpha)
	fRes.DF = []float64{float64(lags), dfDen}
	fRes.Lags = lags
	fRes.NObs = n

	return LMTest{LM: lmRes, F: fRes}, nil
}
