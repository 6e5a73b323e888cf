package diagnostics

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/climate-econometrics/internal/models"
)

func index(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i + 1)
	}
	return x
}

// repeat tiles pattern to length n.
func repeat(pattern []float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = pattern[i%len(pattern)]
	}
	return out
}

func ar1(n int, phi float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	e := make([]float64, n)
	for t := range e {
		e[t] = rng.NormFloat64()
		if t > 0 {
			e[t] += phi * e[t-1]
		}
	}
	return e
}

func TestBreuschPaganDetectsVarianceGrowingWithX(t *testing.T) {
	x := index(50)
	resid := make([]float64, len(x))
	for i, v := range x {
		resid[i] = v * math.Pow(-1, float64(i))
	}

	bp, err := BreuschPagan(x, resid, 0.05)
	require.NoError(t, err)
	assert.Equal(t, models.TestBreuschPagan, bp.LM.Name)
	assert.True(t, bp.LM.RejectsNull)
	assert.Less(t, bp.LM.PValue, 0.001)
	assert.Equal(t, []float64{1}, bp.LM.DF)
	assert.Equal(t, models.TestBreuschPaganF, bp.F.Name)
	assert.True(t, bp.F.RejectsNull)
	assert.Equal(t, []float64{1, 48}, bp.F.DF)

	white, err := White(x, resid, 0.05)
	require.NoError(t, err)
	assert.True(t, white.LM.RejectsNull)
	assert.Equal(t, []float64{2}, white.LM.DF)
}

func TestHomoscedasticPatternNotRejected(t *testing.T) {
	x := index(48)
	// Squared residuals cycle 1,4,4,1 which is uncorrelated with x.
	resid := repeat([]float64{1, -2, 2, -1}, len(x))

	bp, err := BreuschPagan(x, resid, 0.05)
	require.NoError(t, err)
	assert.False(t, bp.LM.RejectsNull)
	assert.InDelta(t, 0, bp.LM.Statistic, 1e-8)
	assert.Greater(t, bp.LM.PValue, 0.99)

	white, err := White(x, resid, 0.05)
	require.NoError(t, err)
	assert.False(t, white.LM.RejectsNull)
	assert.False(t, white.F.RejectsNull)
	assert.Greater(t, white.LM.PValue, 0.5)
}

func TestHeteroscedasticityDegenerateInputs(t *testing.T) {
	x := index(10)

	_, err := BreuschPagan(x, repeat([]float64{1, -1}, 10), 0.05)
	var degenerate *models.DegenerateInputError
	require.True(t, errors.As(err, &degenerate), "got %v", err)
	assert.Equal(t, models.TestBreuschPagan, degenerate.Stage)

	_, err = White(repeat([]float64{3}, 10), index(10), 0.05)
	require.True(t, errors.As(err, &degenerate), "got %v", err)

	_, err = BreuschPagan([]float64{1, 2}, []float64{0.5, -0.5}, 0.05)
	var insufficient *models.InsufficientDataError
	require.True(t, errors.As(err, &insufficient), "got %v", err)

	_, err = White(x, index(9), 0.05)
	require.Error(t, err)
}

func TestDurbinWatson(t *testing.T) {
	dw, err := DurbinWatson([]float64{1, -1, 1}, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 8.0/3.0, dw.Statistic, 1e-12)
	assert.Equal(t, DefaultDurbinWatsonLower, dw.Lower)
	assert.Equal(t, DefaultDurbinWatsonUpper, dw.Upper)
	assert.True(t, dw.Flagged)

	alternating, err := DurbinWatson(repeat([]float64{1, -1}, 40), 1.5, 2.5)
	require.NoError(t, err)
	assert.InDelta(t, 3.9, alternating.Statistic, 1e-12)
	assert.True(t, alternating.Flagged)

	balanced, err := DurbinWatson(repeat([]float64{1, 1, -1, -1}, 100), 1.5, 2.5)
	require.NoError(t, err)
	assert.InDelta(t, 1.96, balanced.Statistic, 1e-12)
	assert.False(t, balanced.Flagged)

	persistent, err := DurbinWatson(ar1(200, 0.9, 7), 1.5, 2.5)
	require.NoError(t, err)
	assert.Less(t, persistent.Statistic, 1.0)
	assert.True(t, persistent.Flagged)
}

func TestDurbinWatsonErrors(t *testing.T) {
	_, err := DurbinWatson([]float64{1}, 1.5, 2.5)
	var insufficient *models.InsufficientDataError
	require.True(t, errors.As(err, &insufficient), "got %v", err)
	assert.Equal(t, "durbin_watson: insufficient data: need at least 2 observations, got 1", err.Error())

	_, err = DurbinWatson([]float64{0, 0, 0}, 1.5, 2.5)
	var degenerate *models.DegenerateInputError
	require.True(t, errors.As(err, &degenerate), "got %v", err)
}

func TestBreuschGodfreyDetectsAR1(t *testing.T) {
	x := index(200)
	bg, err := BreuschGodfrey(x, ar1(200, 0.8, 13), 1, 0.05)
	require.NoError(t, err)
	assert.True(t, bg.LM.RejectsNull)
	assert.Less(t, bg.LM.PValue, 1e-6)
	assert.Equal(t, 1, bg.LM.Lags)
	assert.True(t, bg.F.RejectsNull)
	assert.Equal(t, []float64{1, 197}, bg.F.DF)

	bg4, err := BreuschGodfrey(x, ar1(200, 0.8, 13), 4, 0.05)
	require.NoError(t, err)
	assert.True(t, bg4.LM.RejectsNull)
	assert.Equal(t, []float64{4}, bg4.LM.DF)
}

func TestBreuschGodfreyNoSerialCorrelation(t *testing.T) {
	x := index(100)
	bg, err := BreuschGodfrey(x, repeat([]float64{1, 1, -1, -1}, 100), 1, 0.05)
	require.NoError(t, err)
	assert.False(t, bg.LM.RejectsNull)
	assert.False(t, bg.F.RejectsNull)
	assert.GreaterOrEqual(t, bg.LM.Statistic, 0.0)
}

func TestBreuschGodfreyPreconditions(t *testing.T) {
	_, err := BreuschGodfrey(index(3), []float64{1, -1, 1}, 1, 0.05)
	var insufficient *models.InsufficientDataError
	require.True(t, errors.As(err, &insufficient), "got %v", err)
	assert.Equal(t, 4, insufficient.Need)

	_, err = BreuschGodfrey(index(10), index(10), 0, 0.05)
	var degenerate *models.DegenerateInputError
	require.True(t, errors.As(err, &degenerate), "got %v", err)

	_, err = BreuschGodfrey(index(10), make([]float64, 10), 1, 0.05)
	require.True(t, errors.As(err, &degenerate), "got %v", err)
}
