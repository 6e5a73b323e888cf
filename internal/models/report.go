package models

import (
	"sort"
	"time"
)

// DiagnosticReport is the single output of a pipeline run. Consumers must treat it as read-only.
type DiagnosticReport struct {
	ExplanatoryName string
	DependentName   string
	Observations    int
	Start           time.Time
	End             time.Time
	Dropped         DropSummary

	SignificanceLevel float64

	Explanatory DescriptiveStats
	Dependent   DescriptiveStats
	Correlation CorrelationResult

	// Tests holds every hypothesis test that ran, keyed by test name.
	Tests map[string]TestResult
	// DurbinWatson is nil when the statistic was not computed.
	DurbinWatson *DurbinWatsonResult
	// NotApplicable records tests that were not run and why.
	NotApplicable map[string]string

	// OLS is always the ordinary fit; Final is the WLS fit when a correction ran, else OLS.
	OLS   RegressionResult
	Final RegressionResult

	Heteroscedastic   bool
	Autocorrelated    bool
	CorrectionApplied bool

	Interpretation  Interpretation
	Recommendations []string
	GeneratedAt     time.Time
}

// Interpretation is the plain-language reading of a report.
type Interpretation struct {
	CorrelationStrength  string
	CorrelationDirection string
	SlopeSignificant     bool
	// Flags are the condition names the recommendation rules match on.
	Flags []string
}

// Test returns the named test result and whether it ran.
func (r DiagnosticReport) Test(name string) (TestResult, bool) {
	res, ok := r.Tests[name]
	return res, ok
}

// SlopeSignificant reports whether the final model's slope is significant at the report's level.
func (r DiagnosticReport) SlopeSignificant() bool {
	return r.Final.PSlope < r.SignificanceLevel
}

// Rejected lists, in name order, every test whose null was rejected. A flagged
// Durbin–Watson statistic counts as a rejection.
func (r DiagnosticReport) Rejected() []string {
	out := make([]string, 0, len(r.Tests)+1)
	for name, res := range r.Tests {
		if res.RejectsNull {
			out = append(out, name)
		}
	}
	if r.DurbinWatson != nil && r.DurbinWatson.Flagged {
		out = append(out, TestDurbinWatson)
	}
	sort.Strings(out)
	return out
}
