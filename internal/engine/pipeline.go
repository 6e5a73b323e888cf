package engine

import (
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/miradorstack/climate-econometrics/internal/diagnostics"
	"github.com/miradorstack/climate-econometrics/internal/models"
	"github.com/miradorstack/climate-econometrics/internal/regression"
	"github.com/miradorstack/climate-econometrics/internal/series"
	"github.com/miradorstack/climate-econometrics/internal/stats"
	"github.com/miradorstack/climate-econometrics/internal/utils"
)

const opRun = "engine.Run"

// zeroResidualRatio bounds Σe²/Σ(y-ȳ)² below which the fit is treated as exact.
const zeroResidualRatio = 1e-20

// Pipeline runs the diagnostic-and-correction sequence over an aligned series pair.
// A Pipeline holds no per-run state and may be shared between goroutines.
type Pipeline struct {
	logger    *slog.Logger
	opts      Options
	corrector *CorrectionEngine
	rules     *RuleEngine
	now       func() time.Time
}

// NewPipeline constructs a pipeline. A nil rule engine disables recommendations.
func NewPipeline(logger *slog.Logger, opts Options, rules *RuleEngine) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.normalized()
	return &Pipeline{
		logger:    logger,
		opts:      opts,
		corrector: NewCorrectionEngine(logger, opts.VarianceFloor),
		rules:     rules,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Options returns the options the pipeline runs with.
func (p *Pipeline) Options() Options {
	return p.opts
}

// run carries the report under construction through the stages of one Run call.
type run struct {
	p      *Pipeline
	pair   models.TimeSeriesPair
	report models.DiagnosticReport
}

// Run executes every stage in order. Preparation, descriptive statistics, correlation
// and the regression fits abort the run on failure. Assumption and residual tests that
// cannot be computed are recorded as not applicable unless Options.Strict is set.
func (p *Pipeline) Run(pair models.TimeSeriesPair) (models.DiagnosticReport, error) {
	start := time.Now()
	if err := checkPair(pair); err != nil {
		return models.DiagnosticReport{}, utils.NewStageError(opRun, series.Stage, err)
	}

	r := &run{
		p:    p,
		pair: pair,
		report: models.DiagnosticReport{
			ExplanatoryName:   pair.XName,
			DependentName:     pair.YName,
			Observations:      pair.N(),
			Start:             pair.Start(),
			End:               pair.End(),
			Dropped:           pair.Dropped,
			SignificanceLevel: p.opts.SignificanceLevel,
			Tests:             make(map[string]models.TestResult),
			NotApplicable:     make(map[string]string),
		},
	}

	stages := []struct {
		name string
		fn   func() error
	}{
		{stats.StageDescriptive, r.describe},
		{"assumptions", r.assumptions},
		{stats.StageCorrelation, r.correlation},
		{regression.StageOLS, r.ols},
		{"residual_diagnostics", r.residuals},
		{StageCorrection, r.correct},
	}
	for _, stage := range stages {
		if err := stage.fn(); err != nil {
			p.logger.Error("diagnostic run aborted", slog.String("stage", utils.StageOf(err)), slog.Any("error", err))
			return models.DiagnosticReport{}, err
		}
		p.logger.Debug("stage complete", slog.String("stage", stage.name))
	}

	r.report.Interpretation = Interpret(r.report)
	r.report.Recommendations = p.rules.Recommend(r.report.Interpretation.Flags)
	r.report.GeneratedAt = p.now()

	p.logger.Info("diagnostic run complete",
		slog.String("explanatory", pair.XName),
		slog.String("dependent", pair.YName),
		slog.Int("observations", pair.N()),
		slog.Bool("heteroscedastic", r.report.Heteroscedastic),
		slog.Bool("autocorrelated", r.report.Autocorrelated),
		slog.Bool("correction_applied", r.report.CorrectionApplied),
		slog.Int("not_applicable", len(r.report.NotApplicable)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return r.report, nil
}

func checkPair(pair models.TimeSeriesPair) error {
	if len(pair.X) != len(pair.Y) {
		return fmt.Errorf("%s: explanatory has %d values but dependent has %d", series.Stage, len(pair.X), len(pair.Y))
	}
	if n := pair.N(); n < series.MinObservations {
		return &models.InsufficientDataError{Stage: series.Stage, Need: series.MinObservations, Got: n}
	}
	return nil
}

// tolerate records err as "not applicable" for names when it is a precondition
// failure and the run is not strict. Anything else is returned wrapped with stage.
func (r *run) tolerate(stage string, err error, names ...string) error {
	if err == nil {
		return nil
	}
	if r.p.opts.Strict || !models.IsPrecondition(err) {
		return utils.NewStageError(opRun, stage, err)
	}
	r.skip(err.Error(), names...)
	return nil
}

func (r *run) skip(reason string, names ...string) {
	for _, name := range names {
		r.report.NotApplicable[name] = reason
		r.p.logger.Warn("test not applicable", slog.String("test", name), slog.String("reason", reason))
	}
}

func (r *run) record(results ...models.TestResult) {
	for _, res := range results {
		r.report.Tests[res.Name] = res
	}
}

func (r *run) describe() error {
	x, err := stats.Describe(r.pair.X)
	if err != nil {
		return utils.NewStageError(opRun, stats.StageDescriptive, err)
	}
	y, err := stats.Describe(r.pair.Y)
	if err != nil {
		return utils.NewStageError(opRun, stats.StageDescriptive, err)
	}
	r.report.Explanatory, r.report.Dependent = x, y
	return nil
}

func (r *run) assumptions() error {
	opts := r.p.opts
	for _, t := range []struct {
		name   string
		values []float64
	}{
		{models.TestNormalityExplanatory, r.pair.X},
		{models.TestNormalityDependent, r.pair.Y},
	} {
		res, err := stats.Normality(t.name, t.values, opts.normality())
		if terr := r.tolerate(t.name, err, t.name); terr != nil {
			return terr
		}
		if err == nil {
			r.record(res)
		}
	}

	for _, t := range []struct {
		name   string
		values []float64
	}{
		{models.TestStationarityExplanatory, r.pair.X},
		{models.TestStationarityDependent, r.pair.Y},
	} {
		res, err := stats.ADF(t.name, t.values, opts.stationarity())
		if terr := r.tolerate(t.name, err, t.name); terr != nil {
			return terr
		}
		if err == nil {
			r.record(res)
		}
	}
	return nil
}

func (r *run) correlation() error {
	c, err := stats.Pearson(r.pair)
	if err != nil {
		return utils.NewStageError(opRun, stats.StageCorrelation, err)
	}
	r.report.Correlation = c
	r.record(stats.CorrelationTest(c, r.p.opts.SignificanceLevel))
	return nil
}

func (r *run) ols() error {
	fit, err := regression.OLS(r.pair)
	if err != nil {
		return utils.NewStageError(opRun, regression.StageOLS, err)
	}
	r.report.OLS = fit
	r.report.Final = fit
	return nil
}

var residualTests = []string{
	models.TestNormalityResiduals,
	models.TestBreuschPagan, models.TestBreuschPaganF,
	models.TestWhite, models.TestWhiteF,
	models.TestDurbinWatson,
	models.TestBreuschGodfrey, models.TestBreuschGodfreyF,
}

func (r *run) residuals() error {
	opts := r.p.opts
	resid := r.report.OLS.Residuals
	x := r.pair.X

	if exactFit(resid, r.pair.Y) {
		r.skip("residuals are identically zero (exact fit)", residualTests...)
		return nil
	}

	res, err := stats.Normality(models.TestNormalityResiduals, resid, opts.normality())
	if terr := r.tolerate(models.TestNormalityResiduals, err, models.TestNormalityResiduals); terr != nil {
		return terr
	}
	if err == nil {
		r.record(res)
	}

	bp, err := diagnostics.BreuschPagan(x, resid, opts.SignificanceLevel)
	if terr := r.tolerate(models.TestBreuschPagan, err, models.TestBreuschPagan, models.TestBreuschPaganF); terr != nil {
		return terr
	}
	if err == nil {
		r.record(bp.LM, bp.F)
		r.report.Heteroscedastic = bp.LM.RejectsNull
	}

	white, err := diagnostics.White(x, resid, opts.SignificanceLevel)
	if terr := r.tolerate(models.TestWhite, err, models.TestWhite, models.TestWhiteF); terr != nil {
		return terr
	}
	if err == nil {
		r.record(white.LM, white.F)
		r.report.Heteroscedastic = r.report.Heteroscedastic || white.LM.RejectsNull
	}

	dw, err := diagnostics.DurbinWatson(resid, opts.DurbinWatsonLower, opts.DurbinWatsonUpper)
	if terr := r.tolerate(models.TestDurbinWatson, err, models.TestDurbinWatson); terr != nil {
		return terr
	}
	if err == nil {
		r.report.DurbinWatson = &dw
		r.report.Autocorrelated = dw.Flagged
	}

	bg, err := diagnostics.BreuschGodfrey(x, resid, opts.BreuschGodfreyLags, opts.SignificanceLevel)
	if terr := r.tolerate(models.TestBreuschGodfrey, err, models.TestBreuschGodfrey, models.TestBreuschGodfreyF); terr != nil {
		return terr
	}
	if err == nil {
		r.record(bg.LM, bg.F)
		r.report.Autocorrelated = r.report.Autocorrelated || bg.LM.RejectsNull
	}

	r.p.logger.Info("residual diagnostics complete",
		slog.Bool("heteroscedastic", r.report.Heteroscedastic),
		slog.Bool("autocorrelated", r.report.Autocorrelated),
	)
	return nil
}

// exactFit reports whether the residual sum of squares is negligible against the
// centred total sum of squares, so shifting y by a constant does not change the answer.
func exactFit(resid, y []float64) bool {
	mean := stat.Mean(y, nil)
	tss := 0.0
	for _, v := range y {
		d := v - mean
		tss += d * d
	}
	return floats.Dot(resid, resid) <= zeroResidualRatio*tss
}

func (r *run) correct() error {
	if !r.report.Heteroscedastic {
		r.p.logger.Info("homoscedastic residuals, keeping OLS fit")
		return nil
	}
	wls, err := r.p.corrector.Correct(r.pair, r.report.OLS)
	if err != nil {
		return utils.NewStageError(opRun, StageCorrection, err)
	}
	r.report.Final = wls
	r.report.CorrectionApplied = true
	return nil
}
