package regression

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/miradorstack/climate-econometrics/internal/models"
)

const (
	// StageOLS names the ordinary fit in errors.
	StageOLS = "ols"
	// StageWLS names the weighted fit in errors.
	StageWLS = "wls"
)

// OLS fits y = α + β·x by ordinary least squares.
func OLS(pair models.TimeSeriesPair) (models.RegressionResult, error) {
	if err := checkPair(StageOLS, pair); err != nil {
		return models.RegressionResult{}, err
	}
	fit, err := LeastSquares(StageOLS, WithIntercept(pair.X), pair.Y, nil)
	if err != nil {
		return models.RegressionResult{}, err
	}
	return toResult(models.MethodOLS, fit, nil), nil
}

// WLS fits y = α + β·x minimising Σ w_i ε_i². Every weight must be finite and positive.
func WLS(pair models.TimeSeriesPair, weights []float64) (models.RegressionResult, error) {
	if err := checkPair(StageWLS, pair); err != nil {
		return models.RegressionResult{}, err
	}
	if len(weights) != pair.N() {
		return models.RegressionResult{}, &models.DegenerateInputError{Stage: StageWLS, Reason: "weight vector length does not match observations"}
	}
	for _, w := range weights {
		if !(w > 0) || math.IsInf(w, 0) {
			return models.RegressionResult{}, &models.DegenerateInputError{Stage: StageWLS, Reason: "weights must be finite and positive"}
		}
	}
	fit, err := LeastSquares(StageWLS, WithIntercept(pair.X), pair.Y, weights)
	if err != nil {
		return models.RegressionResult{}, err
	}
	return toResult(models.MethodWLS, fit, weights), nil
}

func checkPair(stage string, pair models.TimeSeriesPair) error {
	if pair.N() < 2 || len(pair.Y) != pair.N() {
		return &models.InsufficientDataError{Stage: stage, Need: 2, Got: min(pair.N(), len(pair.Y))}
	}
	if floats.Max(pair.X) == floats.Min(pair.X) {
		return &models.SingularDesignError{Stage: stage, Reason: "explanatory series has zero variance"}
	}
	return nil
}

func toResult(method models.Method, fit *Fit, weights []float64) models.RegressionResult {
	res := models.RegressionResult{
		Method:       method,
		Intercept:    fit.Beta[0],
		Slope:        fit.Beta[1],
		InterceptSE:  fit.StdErr[0],
		SlopeSE:      fit.StdErr[1],
		RSquared:     fit.RSquared,
		NObs:         fit.NObs,
		DFResid:      fit.DFResid,
		Residuals:    fit.Resid,
		FittedValues: fit.Fitted,
	}
	res.TIntercept = res.Intercept / res.InterceptSE
	res.TSlope = res.Slope / res.SlopeSE
	res.PIntercept = TwoSidedP(res.TIntercept, fit.DFResid)
	res.PSlope = TwoSidedP(res.TSlope, fit.DFResid)
	if fit.DFResid > 0 {
		res.AdjRSquared = 1 - (1-fit.RSquared)*float64(fit.NObs-1)/float64(fit.DFResid)
	} else {
		res.AdjRSquared = math.NaN()
	}
	if weights != nil {
		res.Weights = append([]float64(nil), weights...)
	}
	return res
}
