package diagnostics

import (
	"gonum.org/v1/gonum/stat"

	"github.com/miradorstack/climate-econometrics/internal/models"
)

// BreuschPagan runs the studentized (Koenker) Breusch–Pagan test: e² is regressed on
// [1, x] and LM = n·R² is compared with χ²(1). H0: residual variance is constant.
func BreuschPagan(x, resid []float64, alpha float64) (LMTest, error) {
	const stage = models.TestBreuschPagan
	if err := checkLengths(stage, x, resid); err != nil {
		return LMTest{}, err
	}
	if n := len(resid); n < 3 {
		return LMTest{}, &models.InsufficientDataError{Stage: stage, Need: 3, Got: n}
	}
	e2 := squares(resid)
	if constant(e2) {
		return LMTest{}, &models.DegenerateInputError{Stage: stage, Reason: "squared residuals have zero variance"}
	}
	fit, err := auxiliary(stage, e2, x)
	if err != nil {
		return LMTest{}, err
	}
	return lmTest(models.TestBreuschPagan, models.TestBreuschPaganF, fit, 1, alpha), nil
}

// White regresses e² on [1, z, z²], z being the standardized regressor, and compares
// n·R² with χ²(2). With a single regressor there are no cross products.
func White(x, resid []float64, alpha float64) (LMTest, error) {
	const stage = models.TestWhite
	if err := checkLengths(stage, x, resid); err != nil {
		return LMTest{}, err
	}
	if n := len(resid); n < 4 {
		return LMTest{}, &models.InsufficientDataError{Stage: stage, Need: 4, Got: n}
	}
	e2 := squares(resid)
	if constant(e2) {
		return LMTest{}, &models.DegenerateInputError{Stage: stage, Reason: "squared residuals have zero variance"}
	}
	if constant(x) {
		return LMTest{}, &models.DegenerateInputError{Stage: stage, Reason: "regressor has zero variance"}
	}

	mean, sd := stat.MeanStdDev(x, nil)
	z := make([]float64, len(x))
	for i, v := range x {
		z[i] = (v - mean) / sd
	}
	fit, err := auxiliary(stage, e2, z, squares(z))
	if err != nil {
		return LMTest{}, err
	}
	return lmTest(models.TestWhite, models.TestWhiteF, fit, 2, alpha), nil
}
