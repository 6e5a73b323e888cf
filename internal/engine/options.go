package engine

import (
	"github.com/miradorstack/climate-econometrics/internal/config"
	"github.com/miradorstack/climate-econometrics/internal/diagnostics"
	"github.com/miradorstack/climate-econometrics/internal/stats"
)

// Options is the immutable configuration threaded through every stage of a run.
type Options struct {
	SignificanceLevel  float64
	BreuschGodfreyLags int

	NormalitySampleSize int
	NormalitySeed       int64

	Autolag            string
	MaxLag             int
	ADFMinObservations int

	DurbinWatsonLower float64
	DurbinWatsonUpper float64

	// VarianceFloor is the fraction of the mean squared OLS residual used as the lower
	// bound on fitted variances in the correction step.
	VarianceFloor float64

	// Strict turns tests that cannot be computed into run failures.
	Strict bool
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		SignificanceLevel:   0.05,
		BreuschGodfreyLags:  1,
		NormalitySampleSize: stats.MaxShapiroWilk,
		NormalitySeed:       42,
		Autolag:             stats.AutolagAIC,
		ADFMinObservations:  stats.DefaultADFMinObservations,
		DurbinWatsonLower:   diagnostics.DefaultDurbinWatsonLower,
		DurbinWatsonUpper:   diagnostics.DefaultDurbinWatsonUpper,
		VarianceFloor:       DefaultVarianceFloor,
	}
}

// OptionsFromConfig converts the analysis section of the service configuration.
func OptionsFromConfig(cfg config.AnalysisConfig) Options {
	return Options{
		SignificanceLevel:   cfg.SignificanceLevel,
		BreuschGodfreyLags:  cfg.BreuschGodfreyLags,
		NormalitySampleSize: cfg.Normality.SampleSize,
		NormalitySeed:       cfg.Normality.Seed,
		Autolag:             cfg.Stationarity.Autolag,
		MaxLag:              cfg.Stationarity.MaxLag,
		ADFMinObservations:  cfg.Stationarity.MinObservations,
		DurbinWatsonLower:   cfg.DurbinWatson.Lower,
		DurbinWatsonUpper:   cfg.DurbinWatson.Upper,
		VarianceFloor:       cfg.Correction.VarianceFloor,
		Strict:              cfg.Strict,
	}.normalized()
}

// normalized replaces unset fields with their defaults.
func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.SignificanceLevel <= 0 || o.SignificanceLevel >= 1 {
		o.SignificanceLevel = def.SignificanceLevel
	}
	if o.BreuschGodfreyLags < 1 {
		o.BreuschGodfreyLags = def.BreuschGodfreyLags
	}
	if o.NormalitySampleSize < 3 {
		o.NormalitySampleSize = def.NormalitySampleSize
	}
	if o.Autolag == "" {
		o.Autolag = def.Autolag
	}
	if o.ADFMinObservations <= 0 {
		o.ADFMinObservations = def.ADFMinObservations
	}
	if o.DurbinWatsonLower <= 0 && o.DurbinWatsonUpper <= 0 {
		o.DurbinWatsonLower, o.DurbinWatsonUpper = def.DurbinWatsonLower, def.DurbinWatsonUpper
	}
	if o.VarianceFloor <= 0 {
		o.VarianceFloor = def.VarianceFloor
	}
	return o
}

func (o Options) normality() stats.NormalityOptions {
	return stats.NormalityOptions{Alpha: o.SignificanceLevel, SampleSize: o.NormalitySampleSize, Seed: o.NormalitySeed}
}

func (o Options) stationarity() stats.StationarityOptions {
	return stats.StationarityOptions{
		Alpha:           o.SignificanceLevel,
		MaxLag:          o.MaxLag,
		Autolag:         o.Autolag,
		MinObservations: o.ADFMinObservations,
	}
}
