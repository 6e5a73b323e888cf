package regression

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/climate-econometrics/internal/models"
)

func pairOf(x, y []float64) models.TimeSeriesPair {
	dates := make([]time.Time, len(x))
	for i := range dates {
		dates[i] = time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	return models.TimeSeriesPair{XName: "x", YName: "y", Dates: dates, X: x, Y: y}
}

func noisyPair(n int) models.TimeSeriesPair {
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = 400 + 0.01*float64(i) + math.Sin(float64(i)/7)
		y[i] = 30000 + 12*x[i] + 250*math.Cos(float64(i)*1.3)
	}
	return pairOf(x, y)
}

func TestOLSExactLine(t *testing.T) {
	res, err := OLS(pairOf([]float64{1, 2, 3, 4, 5}, []float64{2, 4, 6, 8, 10}))
	require.NoError(t, err)

	assert.Equal(t, models.MethodOLS, res.Method)
	assert.InDelta(t, 0, res.Intercept, 1e-9)
	assert.InDelta(t, 2, res.Slope, 1e-9)
	assert.InDelta(t, 1, res.RSquared, 1e-12)
	for _, r := range res.Residuals {
		assert.InDelta(t, 0, r, 1e-9)
	}
}

func TestOLSKnownValues(t *testing.T) {
	res, err := OLS(pairOf([]float64{1, 2, 3, 4, 5}, []float64{2, 4, 5, 4, 5}))
	require.NoError(t, err)

	assert.InDelta(t, 2.2, res.Intercept, 1e-9)
	assert.InDelta(t, 0.6, res.Slope, 1e-9)
	assert.InDelta(t, 0.6, res.RSquared, 1e-9)
	assert.InDelta(t, math.Sqrt(0.08), res.SlopeSE, 1e-9)
	assert.InDelta(t, math.Sqrt(0.88), res.InterceptSE, 1e-9)
	assert.InDelta(t, 0.6/math.Sqrt(0.08), res.TSlope, 1e-9)
	assert.Equal(t, 3, res.DFResid)
	assert.Greater(t, res.PSlope, 0.1)
	assert.Less(t, res.PSlope, 0.2)
}

func TestOLSResidualIdentity(t *testing.T) {
	pair := noisyPair(250)
	res, err := OLS(pair)
	require.NoError(t, err)

	sum := 0.0
	for i := range pair.Y {
		assert.InDelta(t, pair.Y[i], res.FittedValues[i]+res.Residuals[i], 1e-9*math.Abs(pair.Y[i]))
		sum += res.Residuals[i]
	}
	assert.InDelta(t, 0, sum, 1e-6)
	assert.GreaterOrEqual(t, res.RSquared, 0.0)
	assert.LessOrEqual(t, res.RSquared, 1.0)
}

func TestOLSRSquaredAffineInvariant(t *testing.T) {
	pair := noisyPair(120)
	base, err := OLS(pair)
	require.NoError(t, err)

	scaled := make([]float64, pair.N())
	for i, v := range pair.X {
		scaled[i] = 2*v + 5
	}
	shifted, err := OLS(pairOf(scaled, pair.Y))
	require.NoError(t, err)

	assert.InDelta(t, base.RSquared, shifted.RSquared, 1e-9)
	assert.InDelta(t, base.Slope/2, shifted.Slope, 1e-6*math.Abs(base.Slope))
	assert.NotEqual(t, base.Intercept, shifted.Intercept)
}

func TestOLSZeroVarianceRegressor(t *testing.T) {
	_, err := OLS(pairOf([]float64{3, 3, 3, 3}, []float64{1, 2, 3, 4}))
	var singular *models.SingularDesignError
	require.True(t, errors.As(err, &singular), "expected SingularDesignError, got %v", err)
}

func TestOLSSingleObservation(t *testing.T) {
	_, err := OLS(pairOf([]float64{1}, []float64{2}))
	var insufficient *models.InsufficientDataError
	require.True(t, errors.As(err, &insufficient), "expected InsufficientDataError, got %v", err)
	assert.Equal(t, StageOLS, insufficient.Stage)
	assert.Equal(t, 1, insufficient.Got)
}

func TestOLSTwoObservations(t *testing.T) {
	res, err := OLS(pairOf([]float64{1, 3}, []float64{5, 9}))
	require.NoError(t, err)
	assert.InDelta(t, 2, res.Slope, 1e-12)
	assert.InDelta(t, 3, res.Intercept, 1e-12)
	assert.Equal(t, 0, res.DFResid)
	assert.True(t, math.IsNaN(res.SlopeSE))
	assert.True(t, math.IsNaN(res.PSlope))
}

func TestWLSMatchesWeightedNormalEquations(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	y := []float64{3.1, 4.8, 7.2, 9.1, 10.6, 13.4, 15.2, 16.5}
	w := []float64{1, 0.5, 0.25, 1, 2, 0.8, 0.3, 1.5}

	res, err := WLS(pairOf(x, y), w)
	require.NoError(t, err)

	sw, sx, sy := 0.0, 0.0, 0.0
	for i := range x {
		sw += w[i]
		sx += w[i] * x[i]
		sy += w[i] * y[i]
	}
	mx, my := sx/sw, sy/sw
	sxy, sxx := 0.0, 0.0
	for i := range x {
		sxy += w[i] * (x[i] - mx) * (y[i] - my)
		sxx += w[i] * (x[i] - mx) * (x[i] - mx)
	}
	slope := sxy / sxx
	intercept := my - slope*mx

	assert.Equal(t, models.MethodWLS, res.Method)
	assert.InDelta(t, slope, res.Slope, 1e-9)
	assert.InDelta(t, intercept, res.Intercept, 1e-9)
	assert.Equal(t, w, res.Weights)
	for i := range y {
		assert.InDelta(t, y[i], res.FittedValues[i]+res.Residuals[i], 1e-12)
	}
}

func TestWLSUnitWeightsEqualOLS(t *testing.T) {
	pair := noisyPair(60)
	ols, err := OLS(pair)
	require.NoError(t, err)

	ones := make([]float64, pair.N())
	for i := range ones {
		ones[i] = 1
	}
	wls, err := WLS(pair, ones)
	require.NoError(t, err)

	assert.InDelta(t, ols.Slope, wls.Slope, 1e-9*math.Abs(ols.Slope))
	assert.InDelta(t, ols.RSquared, wls.RSquared, 1e-12)
	assert.InDelta(t, ols.SlopeSE, wls.SlopeSE, 1e-9*ols.SlopeSE)
}

func TestWLSRejectsBadWeights(t *testing.T) {
	pair := pairOf([]float64{1, 2, 3}, []float64{1, 2, 4})
	for _, w := range [][]float64{{1, 0, 1}, {1, -1, 1}, {1, math.NaN(), 1}, {1, 1}} {
		_, err := WLS(pair, w)
		var degenerate *models.DegenerateInputError
		require.True(t, errors.As(err, &degenerate), "weights %v: expected DegenerateInputError, got %v", w, err)
	}
}

func TestLeastSquaresCollinearColumns(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	doubled := []float64{2, 4, 6, 8, 10}
	_, err := LeastSquares("aux", WithIntercept(x, doubled), []float64{1, 3, 2, 5, 4}, nil)
	var singular *models.SingularDesignError
	require.True(t, errors.As(err, &singular), "expected SingularDesignError, got %v", err)
}
