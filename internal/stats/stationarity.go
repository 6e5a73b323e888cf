package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/miradorstack/climate-econometrics/internal/models"
	"github.com/miradorstack/climate-econometrics/internal/regression"
)

// StageStationarity names the ADF stage in errors.
const StageStationarity = "augmented_dickey_fuller"

// Autolag policies for the ADF lag order.
const (
	AutolagAIC   = "aic"
	AutolagBIC   = "bic"
	AutolagFixed = "fixed"
)

// DefaultADFMinObservations is the practical floor below which ADF is refused.
const DefaultADFMinObservations = 12

// StationarityOptions configures the augmented Dickey–Fuller test.
type StationarityOptions struct {
	Alpha float64
	// MaxLag bounds the lag search; 0 selects ceil(12·(n/100)^¼).
	MaxLag int
	// Autolag is one of AutolagAIC, AutolagBIC or AutolagFixed (use MaxLag directly).
	Autolag         string
	MinObservations int
}

// ADF runs the augmented Dickey–Fuller test with a constant and no trend:
//
//	Δy_t = α + γ·y_{t-1} + Σ_{i=1..p} φ_i·Δy_{t-i} + ε_t
//
// The statistic is the t-ratio of γ. Rejecting the null means the series is stationary.
func ADF(name string, values []float64, opts StationarityOptions) (models.TestResult, error) {
	n := len(values)
	floor := opts.MinObservations
	if floor <= 0 {
		floor = DefaultADFMinObservations
	}
	if n < floor {
		return models.TestResult{}, &models.InsufficientDataError{Stage: StageStationarity, Need: floor, Got: n}
	}

	maxLag := opts.MaxLag
	if maxLag <= 0 {
		maxLag = int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	}
	// Leave enough rows for the constant, the lagged level and the lag terms.
	maxLag = min(maxLag, n/2-2)
	if maxLag < 0 {
		return models.TestResult{}, &models.InsufficientDataError{Stage: StageStationarity, Need: 4, Got: n}
	}

	dy := make([]float64, n-1)
	for i := range dy {
		dy[i] = values[i+1] - values[i]
	}

	lag := maxLag
	switch opts.Autolag {
	case AutolagFixed:
	case AutolagBIC:
		best, err := selectLag(values, dy, maxLag, bic)
		if err != nil {
			return models.TestResult{}, err
		}
		lag = best
	default:
		best, err := selectLag(values, dy, maxLag, aic)
		if err != nil {
			return models.TestResult{}, err
		}
		lag = best
	}

	fit, err := adfRegression(values, dy, lag, lag)
	if err != nil {
		return models.TestResult{}, err
	}
	if fit.DFResid <= 0 {
		return models.TestResult{}, &models.InsufficientDataError{Stage: StageStationarity, Need: fit.K + 1, Got: fit.NObs}
	}
	se := fit.StdErr[1]
	if se == 0 || math.IsNaN(se) {
		return models.TestResult{}, &models.DegenerateInputError{Stage: StageStationarity, Reason: "unit-root regression fits the differences exactly"}
	}

	tau := fit.Beta[1] / se
	res := models.NewTestResult(name, tau, MacKinnonP(tau), opts.Alpha)
	res.Lags = lag
	res.NObs = fit.NObs
	res.CriticalValues = MacKinnonCritical(fit.NObs)
	return res, nil
}

type criterion func(fit *regression.Fit) float64

func logLikelihood(fit *regression.Fit) float64 {
	nobs := float64(fit.NObs)
	return -nobs / 2 * (math.Log(2*math.Pi) + math.Log(fit.SSR/nobs) + 1)
}

func aic(fit *regression.Fit) float64 {
	return -2*logLikelihood(fit) + 2*float64(fit.K)
}

func bic(fit *regression.Fit) float64 {
	return -2*logLikelihood(fit) + math.Log(float64(fit.NObs))*float64(fit.K)
}

// selectLag fits every lag order on the common sample that the largest order allows
// and returns the order minimising the criterion. Ties keep the smaller order.
func selectLag(values, dy []float64, maxLag int, score criterion) (int, error) {
	best, bestScore := 0, math.Inf(1)
	for p := 0; p <= maxLag; p++ {
		fit, err := adfRegression(values, dy, p, maxLag)
		if err != nil {
			return 0, err
		}
		s := score(fit)
		if math.IsNaN(s) {
			continue
		}
		if s < bestScore {
			best, bestScore = p, s
		}
	}
	return best, nil
}

// adfRegression fits the ADF equation with lag terms, starting at row start so that
// different lag orders can share a sample.
func adfRegression(values, dy []float64, lag, start int) (*regression.Fit, error) {
	rows := len(dy) - start
	if rows <= 0 {
		return nil, &models.InsufficientDataError{Stage: StageStationarity, Need: start + 2, Got: len(values)}
	}
	level := make([]float64, rows)
	target := make([]float64, rows)
	lags := make([][]float64, lag)
	for j := range lags {
		lags[j] = make([]float64, rows)
	}
	for r := 0; r < rows; r++ {
		t := start + r
		target[r] = dy[t]
		level[r] = values[t]
		for j := 0; j < lag; j++ {
			lags[j][r] = dy[t-j-1]
		}
	}
	cols := append([][]float64{level}, lags...)
	fit, err := regression.LeastSquares(StageStationarity, regression.WithIntercept(cols...), target, nil)
	if err != nil {
		var singular *models.SingularDesignError
		if errors.As(err, &singular) {
			return nil, &models.DegenerateInputError{Stage: StageStationarity, Reason: fmt.Sprintf("lag %d design is collinear: %s", lag, singular.Reason)}
		}
		return nil, fmt.Errorf("adf lag %d: %w", lag, err)
	}
	return fit, nil
}

// MacKinnon (1994) response-surface parameters for the constant-only, single-series case.
var (
	tauMax      = 2.74
	tauMin      = -18.83
	tauStar     = -1.61
	tauSmallP   = []float64{2.1659, 1.4412, 0.038269}
	tauLargeP   = []float64{1.7339, 0.93202, -0.12745, -0.010368}
	criticalTau = map[string][]float64{
		"1%":  {-3.43035, -6.5393, -16.786, -79.433},
		"5%":  {-2.86154, -2.8903, -4.234, -40.040},
		"10%": {-2.56677, -1.5384, -2.809, 0},
	}
)

// MacKinnonP approximates the p-value of an ADF τ statistic (constant, no trend).
func MacKinnonP(tau float64) float64 {
	switch {
	case math.IsNaN(tau):
		return math.NaN()
	case tau > tauMax:
		return 1
	case tau < tauMin:
		return 0
	case tau <= tauStar:
		return distuv.UnitNormal.CDF(poly(tau, tauSmallP...))
	default:
		return distuv.UnitNormal.CDF(poly(tau, tauLargeP...))
	}
}

// MacKinnonCritical returns the MacKinnon (2010) finite-sample critical values for nobs observations.
func MacKinnonCritical(nobs int) map[string]float64 {
	out := make(map[string]float64, len(criticalTau))
	inv := 1 / float64(nobs)
	for label, c := range criticalTau {
		out[label] = poly(inv, c...)
	}
	return out
}
