package models

// Test names used as keys in DiagnosticReport.Tests and NotApplicable.
const (
	TestNormalityExplanatory    = "normality_explanatory"
	TestNormalityDependent      = "normality_dependent"
	TestNormalityResiduals      = "normality_residuals"
	TestStationarityExplanatory = "stationarity_explanatory"
	TestStationarityDependent   = "stationarity_dependent"
	TestCorrelation             = "pearson_correlation"
	TestBreuschPagan            = "breusch_pagan"
	TestBreuschPaganF           = "breusch_pagan_f"
	TestWhite                   = "white"
	TestWhiteF                  = "white_f"
	TestDurbinWatson            = "durbin_watson"
	TestBreuschGodfrey          = "breusch_godfrey"
	TestBreuschGodfreyF         = "breusch_godfrey_f"
)

// TestResult is the uniform outcome of a hypothesis test.
// RejectsNull is always PValue < Alpha.
type TestResult struct {
	Name        string
	Statistic   float64
	PValue      float64
	Alpha       float64
	RejectsNull bool
	// DF holds the degrees of freedom of the reference distribution, when one applies.
	DF []float64
	// Lags is the lag order used by lag-based tests (ADF, Breusch–Godfrey).
	Lags int
	// NObs is the number of observations entering the test regression.
	NObs int
	// CriticalValues maps significance labels ("1%", "5%", "10%") to critical statistics.
	CriticalValues map[string]float64
}

// NewTestResult builds a TestResult applying the rejection rule.
func NewTestResult(name string, statistic, pValue, alpha float64) TestResult {
	return TestResult{
		Name:        name,
		Statistic:   statistic,
		PValue:      pValue,
		Alpha:       alpha,
		RejectsNull: pValue < alpha,
	}
}

// DurbinWatsonResult carries the Durbin–Watson statistic and the informal band it is judged against.
// The statistic has no p-value; Flagged is true when it falls outside [Lower, Upper].
type DurbinWatsonResult struct {
	Statistic float64
	Lower     float64
	Upper     float64
	Flagged   bool
}

// Method tags how a regression was estimated.
type Method string

const (
	MethodOLS Method = "OLS"
	MethodWLS Method = "WLS"
)

// RegressionResult describes a fitted simple linear model y = α + β·x + ε.
// OLS and WLS fits share this shape; Method tells them apart.
type RegressionResult struct {
	Method       Method
	Intercept    float64
	Slope        float64
	InterceptSE  float64
	SlopeSE      float64
	TIntercept   float64
	TSlope       float64
	PIntercept   float64
	PSlope       float64
	RSquared     float64
	AdjRSquared  float64
	NObs         int
	DFResid      int
	Residuals    []float64
	FittedValues []float64
	// Weights is set for WLS fits only.
	Weights []float64
}

// DescriptiveStats summarises a single series.
type DescriptiveStats struct {
	N        int
	Mean     float64
	StdDev   float64
	Variance float64
	Min      float64
	Max      float64
	Median   float64
	Q1       float64
	Q3       float64
}

// CorrelationResult is the Pearson coefficient between the explanatory and dependent series.
type CorrelationResult struct {
	Coefficient float64
	PValue      float64
	N           int
}

// Strength classifies |r| as strong, moderate or weak.
func (c CorrelationResult) Strength() string {
	r := c.Coefficient
	if r < 0 {
		r = -r
	}
	switch {
	case r > 0.7:
		return "strong"
	case r > 0.3:
		return "moderate"
	default:
		return "weak"
	}
}

// Direction reports whether the relationship is positive or negative.
func (c CorrelationResult) Direction() string {
	if c.Coefficient < 0 {
		return "negative"
	}
	return "positive"
}
