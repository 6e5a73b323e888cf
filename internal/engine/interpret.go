package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/climate-econometrics/internal/models"
)

// Condition flags derived from a report. Rules match on these names.
const (
	FlagHeteroscedastic    = "heteroscedastic"
	FlagAutocorrelated     = "autocorrelated"
	FlagNonStationary      = "non_stationary"
	FlagNonNormalResiduals = "non_normal_residuals"
	FlagSlopeInsignificant = "slope_insignificant"
	FlagCorrectionApplied  = "correction_applied"
	FlagWeakCorrelation    = "weak_correlation"
	FlagTestsNotApplicable = "tests_not_applicable"
)

// RuleEngine turns report flags into recommendations.
type RuleEngine struct {
	rules  []Rule
	logger *slog.Logger
}

// Rule represents a single recommendation rule.
type Rule struct {
	ID              string    `yaml:"id"`
	Match           RuleMatch `yaml:"match"`
	Recommendations []string  `yaml:"recommendations"`
}

// RuleMatch lists flags that must all be present, of which at least one must be
// present, and that must be absent. Empty lists always match.
type RuleMatch struct {
	All  []string `yaml:"all"`
	Any  []string `yaml:"any"`
	None []string `yaml:"none"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules []Rule `yaml:"rules"`
}

const defaultRules = `
rules:
  - id: heteroscedasticity-corrected
    match:
      all: [heteroscedastic, correction_applied]
    recommendations:
      - "Residual variance depends on the explanatory series; inference uses the weighted least squares fit."
  - id: heteroscedasticity-uncorrected
    match:
      all: [heteroscedastic]
      none: [correction_applied]
    recommendations:
      - "Residual variance is not constant; use heteroscedasticity-robust standard errors."
  - id: autocorrelation
    match:
      all: [autocorrelated]
    recommendations:
      - "Residuals are serially correlated; standard errors are understated. Consider HAC (Newey-West) errors or modelling the dynamics explicitly."
  - id: non-stationary
    match:
      all: [non_stationary]
    recommendations:
      - "At least one series has a unit root; the levels regression may be spurious. Test for cointegration or regress on differences."
  - id: non-normal-residuals
    match:
      all: [non_normal_residuals]
    recommendations:
      - "Residuals are not normally distributed; rely on large-sample inference or bootstrap confidence intervals."
  - id: insignificant-slope
    match:
      all: [slope_insignificant]
    recommendations:
      - "The slope is not significant at the chosen level; the data do not support a linear effect of the explanatory series."
  - id: weak-correlation
    match:
      all: [weak_correlation]
    recommendations:
      - "Correlation is weak; the explanatory series accounts for little of the dependent series' variation."
  - id: incomplete-diagnostics
    match:
      all: [tests_not_applicable]
    recommendations:
      - "Some diagnostics could not be computed for this sample; collect a longer series before drawing conclusions."
`

// DefaultRuleEngine returns the built-in rule pack.
func DefaultRuleEngine(logger *slog.Logger) *RuleEngine {
	engine, err := parseRules([]byte(defaultRules), logger)
	if err != nil {
		panic(fmt.Sprintf("built-in rules: %v", err))
	}
	return engine
}

// NewRuleEngine loads rules from path. An empty path or a missing file yields the
// built-in rules.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return DefaultRuleEngine(logger), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("rule pack not found, using built-in rules", slog.String("path", path))
			return DefaultRuleEngine(logger), nil
		}
		return nil, err
	}
	return parseRules(data, logger)
}

func parseRules(data []byte, logger *slog.Logger) (*RuleEngine, error) {
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleEngine{rules: cfg.Rules, logger: logger}, nil
}

// Recommend returns the recommendations of every rule matching flags, without duplicates.
func (e *RuleEngine) Recommend(flags []string) []string {
	if e == nil {
		return nil
	}
	present := make(map[string]struct{}, len(flags))
	for _, f := range flags {
		present[strings.ToLower(f)] = struct{}{}
	}

	matched := make([]string, 0)
	for _, rule := range e.rules {
		if !rule.Match.matches(present) {
			continue
		}
		e.logger.Debug("rule matched", slog.String("rule", rule.ID))
		matched = appendUnique(matched, rule.Recommendations...)
	}
	return matched
}

func (m RuleMatch) matches(present map[string]struct{}) bool {
	has := func(flag string) bool {
		_, ok := present[strings.ToLower(flag)]
		return ok
	}
	for _, f := range m.All {
		if !has(f) {
			return false
		}
	}
	for _, f := range m.None {
		if has(f) {
			return false
		}
	}
	if len(m.Any) == 0 {
		return true
	}
	for _, f := range m.Any {
		if has(f) {
			return true
		}
	}
	return false
}

// Interpret reads the report's flags and headline conclusions.
func Interpret(report models.DiagnosticReport) models.Interpretation {
	out := models.Interpretation{
		CorrelationStrength:  report.Correlation.Strength(),
		CorrelationDirection: report.Correlation.Direction(),
		SlopeSignificant:     report.SlopeSignificant(),
	}

	add := func(cond bool, flag string) {
		if cond {
			out.Flags = append(out.Flags, flag)
		}
	}
	add(report.Heteroscedastic, FlagHeteroscedastic)
	add(report.Autocorrelated, FlagAutocorrelated)
	add(nonStationary(report), FlagNonStationary)
	if res, ok := report.Test(models.TestNormalityResiduals); ok {
		add(res.RejectsNull, FlagNonNormalResiduals)
	}
	add(!math.IsNaN(report.Final.PSlope) && !out.SlopeSignificant, FlagSlopeInsignificant)
	add(report.CorrectionApplied, FlagCorrectionApplied)
	add(out.CorrelationStrength == "weak", FlagWeakCorrelation)
	add(len(report.NotApplicable) > 0, FlagTestsNotApplicable)
	return out
}

// nonStationary is true when an ADF test ran and failed to reject the unit root.
func nonStationary(report models.DiagnosticReport) bool {
	for _, name := range []string{models.TestStationarityExplanatory, models.TestStationarityDependent} {
		if res, ok := report.Test(name); ok && !res.RejectsNull {
			return true
		}
	}
	return false
}

func appendUnique(existing []string, additions ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[rec] = struct{}{}
	}
	for _, item := range additions {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		existing = append(existing, item)
		seen[item] = struct{}{}
	}
	return existing
}
