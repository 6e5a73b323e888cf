package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/climate-econometrics/internal/config"
	"github.com/miradorstack/climate-econometrics/internal/models"
)

func TestRuleEngineFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`rules:
  - id: trend
    match:
      any: [non_stationary, autocorrelated]
      none: [correction_applied]
    recommendations: ["Difference the series", "Difference the series"]
  - id: weighted
    match:
      all: [correction_applied]
    recommendations: ["Report WLS estimates"]
`), 0o644))

	engine, err := NewRuleEngine(path, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"Difference the series"}, engine.Recommend([]string{"autocorrelated"}))
	assert.Equal(t, []string{"Report WLS estimates"}, engine.Recommend([]string{"autocorrelated", "correction_applied"}))
	assert.Empty(t, engine.Recommend(nil))
}

func TestRuleEngineFallsBackToDefaults(t *testing.T) {
	engine, err := NewRuleEngine(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.NoError(t, err)
	require.NotNil(t, engine)
	assert.Len(t, engine.Recommend([]string{FlagHeteroscedastic, FlagCorrectionApplied}), 1)

	var nilEngine *RuleEngine
	assert.Nil(t, nilEngine.Recommend([]string{FlagHeteroscedastic}))
}

func TestRuleEngineRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: [unterminated"), 0o644))
	_, err := NewRuleEngine(path, nil)
	require.Error(t, err)
}

func TestInterpretFlags(t *testing.T) {
	report := models.DiagnosticReport{
		SignificanceLevel: 0.05,
		Correlation:       models.CorrelationResult{Coefficient: -0.2},
		Final:             models.RegressionResult{PSlope: 0.3},
		Tests: map[string]models.TestResult{
			models.TestStationarityDependent: models.NewTestResult(models.TestStationarityDependent, -1.2, 0.6, 0.05),
			models.TestNormalityResiduals:    models.NewTestResult(models.TestNormalityResiduals, 0.9, 0.001, 0.05),
		},
		Autocorrelated: true,
	}

	got := Interpret(report)
	assert.Equal(t, "weak", got.CorrelationStrength)
	assert.Equal(t, "negative", got.CorrelationDirection)
	assert.False(t, got.SlopeSignificant)
	assert.ElementsMatch(t, []string{
		FlagAutocorrelated, FlagNonStationary, FlagNonNormalResiduals,
		FlagSlopeInsignificant, FlagWeakCorrelation,
	}, got.Flags)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Analysis.BreuschGodfreyLags = 3
	cfg.Analysis.Strict = true

	opts := OptionsFromConfig(cfg.Analysis)
	assert.Equal(t, 0.05, opts.SignificanceLevel)
	assert.Equal(t, 3, opts.BreuschGodfreyLags)
	assert.Equal(t, int64(42), opts.NormalitySeed)
	assert.Equal(t, "aic", opts.Autolag)
	assert.Equal(t, 0.01, opts.VarianceFloor)
	assert.True(t, opts.Strict)

	zero := Options{}.normalized()
	assert.Equal(t, 0.05, zero.SignificanceLevel)
	assert.Equal(t, 1, zero.BreuschGodfreyLags)
	assert.Equal(t, DefaultVarianceFloor, zero.VarianceFloor)
}
