package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/miradorstack/climate-econometrics/internal/models"
	"github.com/miradorstack/climate-econometrics/internal/regression"
)

// StageCorrection names the weighted re-estimation stage.
const StageCorrection = "correction"

// DefaultVarianceFloor is the fraction of the mean squared residual that fitted
// variances are clamped to from below.
const DefaultVarianceFloor = 0.01

// CorrectionEngine re-estimates a heteroscedastic model by weighted least squares.
//
// The variance function is estimated by regressing the squared OLS residuals on
// [1, x]. Each fitted value ĥ_i is floored at floor·mean(e²) and the weight is
// w_i = 1/ĥ_i.
type CorrectionEngine struct {
	logger *slog.Logger
	floor  float64
}

// NewCorrectionEngine constructs a CorrectionEngine. A non-positive floor selects DefaultVarianceFloor.
func NewCorrectionEngine(logger *slog.Logger, varianceFloor float64) *CorrectionEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if varianceFloor <= 0 {
		varianceFloor = DefaultVarianceFloor
	}
	return &CorrectionEngine{logger: logger, floor: varianceFloor}
}

// Weights derives WLS weights from the explanatory series and the OLS residuals.
func (e *CorrectionEngine) Weights(x, resid []float64) ([]float64, error) {
	n := len(resid)
	if len(x) != n {
		return nil, fmt.Errorf("%s: regressor has %d values but residuals have %d", StageCorrection, len(x), n)
	}
	e2 := make([]float64, n)
	mean := 0.0
	for i, r := range resid {
		e2[i] = r * r
		mean += e2[i]
	}
	mean /= float64(n)
	if mean == 0 || math.IsNaN(mean) {
		return nil, &models.DegenerateInputError{Stage: StageCorrection, Reason: "residuals are identically zero"}
	}

	fit, err := regression.LeastSquares(StageCorrection, regression.WithIntercept(x), e2, nil)
	if err != nil {
		return nil, err
	}

	lower := e.floor * mean
	weights := make([]float64, n)
	floored := 0
	for i, h := range fit.Fitted {
		if h < lower {
			h = lower
			floored++
		}
		weights[i] = 1 / h
	}
	if floored > 0 {
		e.logger.Debug("variance estimates floored", slog.Int("count", floored), slog.Float64("floor", lower))
	}
	return weights, nil
}

// Correct fits the WLS model for pair using weights derived from the OLS residuals.
func (e *CorrectionEngine) Correct(pair models.TimeSeriesPair, ols models.RegressionResult) (models.RegressionResult, error) {
	weights, err := e.Weights(pair.X, ols.Residuals)
	if err != nil {
		return models.RegressionResult{}, err
	}
	wls, err := regression.WLS(pair, weights)
	if err != nil {
		return models.RegressionResult{}, err
	}
	e.logger.Info("weighted least squares correction applied",
		slog.Float64("ols_slope", ols.Slope),
		slog.Float64("wls_slope", wls.Slope),
		slog.Float64("wls_r_squared", wls.RSquared),
	)
	return wls, nil
}
