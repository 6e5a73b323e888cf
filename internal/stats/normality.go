package stats

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/miradorstack/climate-econometrics/internal/models"
)

// StageNormality names the Shapiro–Wilk stage in errors.
const StageNormality = "shapiro_wilk"

// MaxShapiroWilk is the largest sample the p-value approximation is valid for.
const MaxShapiroWilk = 5000

// NormalityOptions configures the Shapiro–Wilk test.
type NormalityOptions struct {
	Alpha float64
	// SampleSize caps the number of observations tested; longer series are subsampled.
	SampleSize int
	// Seed drives the deterministic subsample.
	Seed int64
}

// Normality runs Shapiro–Wilk on values, subsampling without replacement when the
// series is longer than opts.SampleSize.
func Normality(name string, values []float64, opts NormalityOptions) (models.TestResult, error) {
	size := opts.SampleSize
	if size <= 0 || size > MaxShapiroWilk {
		size = MaxShapiroWilk
	}
	sample := values
	if len(values) > size {
		sample = Subsample(values, size, opts.Seed)
	}
	w, p, err := ShapiroWilk(sample)
	if err != nil {
		return models.TestResult{}, err
	}
	res := models.NewTestResult(name, w, p, opts.Alpha)
	res.NObs = len(sample)
	return res, nil
}

// Subsample draws size values without replacement using a seeded source. The input order
// is preserved.
func Subsample(values []float64, size int, seed int64) []float64 {
	if size >= len(values) {
		return append([]float64(nil), values...)
	}
	rng := rand.New(rand.NewSource(seed))
	idx := rng.Perm(len(values))[:size]
	sort.Ints(idx)
	out := make([]float64, size)
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

// ShapiroWilk returns the W statistic and its p-value using Royston's (1995)
// approximation of the coefficients and of the null distribution of W.
func ShapiroWilk(values []float64) (float64, float64, error) {
	n := len(values)
	if n < 3 {
		return 0, 0, &models.InsufficientDataError{Stage: StageNormality, Need: 3, Got: n}
	}
	if n > MaxShapiroWilk {
		return 0, 0, &models.DegenerateInputError{Stage: StageNormality, Reason: "sample larger than 5000 observations"}
	}
	if floats.Max(values) == floats.Min(values) {
		return 0, 0, &models.DegenerateInputError{Stage: StageNormality, Reason: "all values are identical"}
	}

	x := append([]float64(nil), values...)
	sort.Float64s(x)

	a := shapiroCoefficients(n)

	mean := floats.Sum(x) / float64(n)
	ss, num := 0.0, 0.0
	for i, v := range x {
		d := v - mean
		ss += d * d
		num += a[i] * d
	}
	w := math.Min(1, num*num/ss)

	return w, shapiroPValue(w, n), nil
}

func shapiroCoefficients(n int) []float64 {
	a := make([]float64, n)
	if n == 3 {
		a[0], a[2] = -math.Sqrt(0.5), math.Sqrt(0.5)
		return a
	}

	m := make([]float64, n)
	summ2 := 0.0
	for i := range m {
		m[i] = distuv.UnitNormal.Quantile((float64(i+1) - 0.375) / (float64(n) + 0.25))
		summ2 += m[i] * m[i]
	}
	ssumm2 := math.Sqrt(summ2)
	u := 1 / math.Sqrt(float64(n))

	an := m[n-1]/ssumm2 + poly(u, 0, 0.221157, -0.147981, -2.071190, 4.434685, -2.706056)
	if n > 5 {
		an1 := m[n-2]/ssumm2 + poly(u, 0, 0.042981, -0.293762, -1.752461, 5.682633, -3.582633)
		phi := (summ2 - 2*m[n-1]*m[n-1] - 2*m[n-2]*m[n-2]) / (1 - 2*an*an - 2*an1*an1)
		a[n-1], a[0] = an, -an
		a[n-2], a[1] = an1, -an1
		for i := 2; i < n-2; i++ {
			a[i] = m[i] / math.Sqrt(phi)
		}
		return a
	}

	phi := (summ2 - 2*m[n-1]*m[n-1]) / (1 - 2*an*an)
	a[n-1], a[0] = an, -an
	for i := 1; i < n-1; i++ {
		a[i] = m[i] / math.Sqrt(phi)
	}
	return a
}

func shapiroPValue(w float64, n int) float64 {
	if w >= 1 {
		return 1
	}
	if n == 3 {
		p := 6 / math.Pi * (math.Asin(math.Sqrt(w)) - math.Asin(math.Sqrt(0.75)))
		return math.Max(0, math.Min(1, p))
	}

	fn := float64(n)
	var z float64
	if n <= 11 {
		gamma := poly(fn, -2.273, 0.459)
		mu := poly(fn, 0.5440, -0.39978, 0.025054, -0.0006714)
		sigma := math.Exp(poly(fn, 1.3822, -0.77857, 0.062767, -0.0020322))
		z = (-math.Log(gamma-math.Log1p(-w)) - mu) / sigma
	} else {
		ln := math.Log(fn)
		mu := poly(ln, -1.5861, -0.31082, -0.083751, 0.0038915)
		sigma := math.Exp(poly(ln, -0.4803, -0.082676, 0.0030302))
		z = (math.Log1p(-w) - mu) / sigma
	}
	return distuv.UnitNormal.Survival(z)
}

// poly evaluates c[0] + c[1]·x + c[2]·x² + …
func poly(x float64, c ...float64) float64 {
	res := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		res = res*x + c[i]
	}
	return res
}
