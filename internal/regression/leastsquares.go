package regression

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/miradorstack/climate-econometrics/internal/models"
)

// rankTolerance is the smallest |R_jj| / max|R_ii| accepted before a design is treated as rank deficient.
const rankTolerance = 1e-10

// Fit is the raw outcome of a (weighted) least-squares solve. Auxiliary regressions in the
// diagnostics and stationarity tests use it directly.
type Fit struct {
	Beta     []float64
	StdErr   []float64
	Fitted   []float64
	Resid    []float64
	SSR      float64
	TSS      float64
	RSquared float64
	NObs     int
	K        int
	DFResid  int
}

// WithIntercept builds an n×(1+len(cols)) design matrix whose first column is ones.
func WithIntercept(cols ...[]float64) *mat.Dense {
	n := 0
	if len(cols) > 0 {
		n = len(cols[0])
	}
	k := 1 + len(cols)
	x := mat.NewDense(max(n, 1), k, nil)
	if n == 0 {
		return x
	}
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		for j, col := range cols {
			x.Set(i, j+1, col[i])
		}
	}
	return x
}

// LeastSquares solves min Σ w_i (y_i - x_i·β)² through a QR factorisation of the
// row-scaled design. A nil weights slice means ordinary least squares. Residuals and
// fitted values are on the unweighted scale; SSR and TSS are weighted,
// and TSS is centred on the weighted mean of y.
func LeastSquares(stage string, x *mat.Dense, y, weights []float64) (*Fit, error) {
	n, k := x.Dims()
	if len(y) != n {
		return nil, fmt.Errorf("%s: design has %d rows but response has %d values", stage, n, len(y))
	}
	if n < k {
		return nil, &models.InsufficientDataError{Stage: stage, Need: k, Got: n}
	}
	if weights != nil && len(weights) != n {
		return nil, fmt.Errorf("%s: got %d weights for %d observations", stage, len(weights), n)
	}

	w := func(i int) float64 {
		if weights == nil {
			return 1
		}
		return weights[i]
	}

	xw := mat.NewDense(n, k, nil)
	yw := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		sw := math.Sqrt(w(i))
		for j := 0; j < k; j++ {
			xw.Set(i, j, x.At(i, j)*sw)
		}
		yw.SetVec(i, y[i]*sw)
	}

	var qr mat.QR
	qr.Factorize(xw)

	var r mat.Dense
	qr.RTo(&r)
	rk := mat.DenseCopyOf(r.Slice(0, k, 0, k))
	if err := checkRank(stage, rk); err != nil {
		return nil, err
	}

	var b mat.VecDense
	if err := qr.SolveVecTo(&b, false, yw); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, &models.SingularDesignError{Stage: stage, Reason: err.Error()}
		}
	}

	fit := &Fit{
		Beta:    make([]float64, k),
		StdErr:  make([]float64, k),
		Fitted:  make([]float64, n),
		Resid:   make([]float64, n),
		NObs:    n,
		K:       k,
		DFResid: n - k,
	}
	for j := 0; j < k; j++ {
		fit.Beta[j] = b.AtVec(j)
	}

	sumW, sumWY := 0.0, 0.0
	for i := 0; i < n; i++ {
		sumW += w(i)
		sumWY += w(i) * y[i]
	}
	meanY := sumWY / sumW

	for i := 0; i < n; i++ {
		pred := 0.0
		for j := 0; j < k; j++ {
			pred += x.At(i, j) * fit.Beta[j]
		}
		fit.Fitted[i] = pred
		fit.Resid[i] = y[i] - pred
		fit.SSR += w(i) * fit.Resid[i] * fit.Resid[i]
		d := y[i] - meanY
		fit.TSS += w(i) * d * d
	}
	fit.RSquared = rSquared(fit.SSR, fit.TSS)

	if fit.DFResid <= 0 {
		for j := range fit.StdErr {
			fit.StdErr[j] = math.NaN()
		}
		return fit, nil
	}

	// Cov(β) = σ² (R'R)^-1 = σ² R^-1 R^-T
	var rInv mat.Dense
	if err := rInv.Inverse(rk); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, &models.SingularDesignError{Stage: stage, Reason: err.Error()}
		}
	}
	var cov mat.Dense
	cov.Mul(&rInv, rInv.T())
	sigma2 := fit.SSR / float64(fit.DFResid)
	for j := 0; j < k; j++ {
		fit.StdErr[j] = math.Sqrt(sigma2 * cov.At(j, j))
	}
	return fit, nil
}

// TwoSidedP returns the two-sided Student-t p-value of t with df degrees of freedom.
func TwoSidedP(t float64, df int) float64 {
	if df <= 0 || math.IsNaN(t) {
		return math.NaN()
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	p := 2 * dist.Survival(math.Abs(t))
	return math.Min(1, math.Max(0, p))
}

func checkRank(stage string, r *mat.Dense) error {
	k, _ := r.Dims()
	largest := 0.0
	for i := 0; i < k; i++ {
		largest = math.Max(largest, math.Abs(r.At(i, i)))
	}
	if largest == 0 {
		return &models.SingularDesignError{Stage: stage, Reason: "design matrix is all zeros"}
	}
	for i := 0; i < k; i++ {
		if math.Abs(r.At(i, i)) <= rankTolerance*largest {
			return &models.SingularDesignError{Stage: stage, Reason: fmt.Sprintf("column %d is collinear with earlier columns", i)}
		}
	}
	return nil
}

func rSquared(ssr, tss float64) float64 {
	if tss <= 0 {
		// A constant response is reproduced exactly by the intercept.
		if ssr <= 0 {
			return 1
		}
		return 0
	}
	r2 := 1 - ssr/tss
	return math.Min(1, math.Max(0, r2))
}
