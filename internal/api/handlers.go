package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/climate-econometrics/internal/models"
	"github.com/miradorstack/climate-econometrics/internal/utils"
)

// Analyzer produces a diagnostic report from two raw series.
type Analyzer interface {
	Analyze(ctx context.Context, explanatory, dependent models.Series) (models.DiagnosticReport, error)
}

// Handler implements DiagnosticsServer on top of an Analyzer.
type Handler struct {
	logger   *slog.Logger
	analyzer Analyzer
}

// NewHandler constructs the gRPC facade.
func NewHandler(logger *slog.Logger, analyzer Analyzer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, analyzer: analyzer}
}

// Analyze decodes the request, runs the analysis and encodes the report.
func (h *Handler) Analyze(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	if h.analyzer == nil {
		return nil, status.Error(codes.FailedPrecondition, "analysis service not configured")
	}

	explanatory, dependent, err := FromStructRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	h.logger.Debug("Analyze called",
		slog.String("explanatory", explanatory.Name), slog.Int("explanatory_points", explanatory.Len()),
		slog.String("dependent", dependent.Name), slog.Int("dependent_points", dependent.Len()),
	)

	report, err := h.analyzer.Analyze(ctx, explanatory, dependent)
	if err != nil {
		st := ToStatus(err)
		if st.Code() == codes.Internal {
			h.logger.Error("analysis failed", slog.Any("error", err))
		}
		return nil, st.Err()
	}

	out, err := ToStructReport(report)
	if err != nil {
		h.logger.Error("encode report", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode report")
	}
	return out, nil
}

// ToStatus maps analysis errors to gRPC status codes: problems with the submitted data
// are InvalidArgument, everything else is Internal.
func ToStatus(err error) *status.Status {
	switch {
	case err == nil:
		return status.New(codes.OK, "")
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, err.Error())
	case models.IsInputError(err):
		if stage := utils.StageOf(err); stage != "" {
			return status.New(codes.InvalidArgument, fmt.Sprintf("analysis rejected at %s: %v", stage, err))
		}
		return status.New(codes.InvalidArgument, err.Error())
	default:
		return status.New(codes.Internal, fmt.Sprintf("analysis failed: %v", err))
	}
}

// FromStructRequest reads {explanatory:{name, points:[{date, value}]}, dependent:{…}}.
// A null value marks a missing observation.
func FromStructRequest(req *structpb.Struct) (models.Series, models.Series, error) {
	fields := req.GetFields()
	explanatory, err := seriesFromValue("explanatory", fields["explanatory"])
	if err != nil {
		return models.Series{}, models.Series{}, err
	}
	dependent, err := seriesFromValue("dependent", fields["dependent"])
	if err != nil {
		return models.Series{}, models.Series{}, err
	}
	return explanatory, dependent, nil
}

func seriesFromValue(field string, v *structpb.Value) (models.Series, error) {
	obj := v.GetStructValue()
	if obj == nil {
		return models.Series{}, fmt.Errorf("%s: object is required", field)
	}
	s := models.Series{Name: obj.GetFields()["name"].GetStringValue()}
	if s.Name == "" {
		s.Name = field
	}
	points := obj.GetFields()["points"].GetListValue()
	if points == nil {
		return models.Series{}, fmt.Errorf("%s.points: list is required", field)
	}
	s.Points = make([]models.Observation, 0, len(points.GetValues()))
	for i, pv := range points.GetValues() {
		p := pv.GetStructValue()
		if p == nil {
			return models.Series{}, fmt.Errorf("%s.points[%d]: object is required", field, i)
		}
		date, err := utils.ParseDate(p.GetFields()["date"].GetStringValue())
		if err != nil {
			return models.Series{}, fmt.Errorf("%s.points[%d].date: %w", field, i, err)
		}
		value := math.NaN()
		switch raw := p.GetFields()["value"].GetKind().(type) {
		case *structpb.Value_NumberValue:
			value = raw.NumberValue
		case *structpb.Value_NullValue, nil:
		default:
			return models.Series{}, fmt.Errorf("%s.points[%d].value: number or null expected", field, i)
		}
		s.Points = append(s.Points, models.Observation{Date: date, Value: value})
	}
	return s, nil
}

// RequestStruct builds the Analyze request document for two series.
func RequestStruct(explanatory, dependent models.Series) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"explanatory": seriesMap(explanatory),
		"dependent":   seriesMap(dependent),
	})
}

func seriesMap(s models.Series) map[string]any {
	points := make([]any, 0, len(s.Points))
	for _, p := range s.Points {
		points = append(points, map[string]any{
			"date":  p.Date.UTC().Format("2006-01-02"),
			"value": number(p.Value),
		})
	}
	return map[string]any{"name": s.Name, "points": points}
}

// ToStructReport encodes a report as a Struct.
func ToStructReport(report models.DiagnosticReport) (*structpb.Struct, error) {
	return structpb.NewStruct(ReportMap(report))
}

// ReportMap flattens a report into plain maps and lists. Non-finite numbers become nil
// so the document survives JSON and YAML encoding.
func ReportMap(r models.DiagnosticReport) map[string]any {
	tests := make(map[string]any, len(r.Tests))
	for name, t := range r.Tests {
		tests[name] = testMap(t)
	}
	notApplicable := make(map[string]any, len(r.NotApplicable))
	for name, reason := range r.NotApplicable {
		notApplicable[name] = reason
	}

	out := map[string]any{
		"explanatory_name":   r.ExplanatoryName,
		"dependent_name":     r.DependentName,
		"observations":       r.Observations,
		"start":              timestamp(r.Start),
		"end":                timestamp(r.End),
		"significance_level": r.SignificanceLevel,
		"dropped": map[string]any{
			"explanatory_only": r.Dropped.ExplanatoryOnly,
			"dependent_only":   r.Dropped.DependentOnly,
			"missing":          r.Dropped.Missing,
			"duplicates":       r.Dropped.Duplicates,
		},
		"descriptive": map[string]any{
			"explanatory": describeMap(r.Explanatory),
			"dependent":   describeMap(r.Dependent),
		},
		"correlation": map[string]any{
			"coefficient": number(r.Correlation.Coefficient),
			"p_value":     number(r.Correlation.PValue),
			"n":           r.Correlation.N,
		},
		"tests":              tests,
		"not_applicable":     notApplicable,
		"ols":                regressionMap(r.OLS),
		"final":              regressionMap(r.Final),
		"heteroscedastic":    r.Heteroscedastic,
		"autocorrelated":     r.Autocorrelated,
		"correction_applied": r.CorrectionApplied,
		"interpretation": map[string]any{
			"correlation_strength":  r.Interpretation.CorrelationStrength,
			"correlation_direction": r.Interpretation.CorrelationDirection,
			"slope_significant":     r.Interpretation.SlopeSignificant,
			"flags":                 stringList(r.Interpretation.Flags),
		},
		"recommendations": stringList(r.Recommendations),
		"generated_at":    timestamp(r.GeneratedAt),
	}
	if r.DurbinWatson != nil {
		out["durbin_watson"] = map[string]any{
			"statistic": number(r.DurbinWatson.Statistic),
			"lower":     r.DurbinWatson.Lower,
			"upper":     r.DurbinWatson.Upper,
			"flagged":   r.DurbinWatson.Flagged,
		}
	}
	return out
}

func testMap(t models.TestResult) map[string]any {
	m := map[string]any{
		"statistic":    number(t.Statistic),
		"p_value":      number(t.PValue),
		"alpha":        t.Alpha,
		"rejects_null": t.RejectsNull,
	}
	if len(t.DF) > 0 {
		m["df"] = numbers(t.DF)
	}
	if t.Lags > 0 {
		m["lags"] = t.Lags
	}
	if t.NObs > 0 {
		m["nobs"] = t.NObs
	}
	if len(t.CriticalValues) > 0 {
		labels := make([]string, 0, len(t.CriticalValues))
		for label := range t.CriticalValues {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		crit := make(map[string]any, len(labels))
		for _, label := range labels {
			crit[label] = number(t.CriticalValues[label])
		}
		m["critical_values"] = crit
	}
	return m
}

func regressionMap(r models.RegressionResult) map[string]any {
	return map[string]any{
		"method":        string(r.Method),
		"intercept":     number(r.Intercept),
		"slope":         number(r.Slope),
		"intercept_se":  number(r.InterceptSE),
		"slope_se":      number(r.SlopeSE),
		"t_intercept":   number(r.TIntercept),
		"t_slope":       number(r.TSlope),
		"p_intercept":   number(r.PIntercept),
		"p_slope":       number(r.PSlope),
		"r_squared":     number(r.RSquared),
		"adj_r_squared": number(r.AdjRSquared),
		"nobs":          r.NObs,
		"df_resid":      r.DFResid,
		"weighted":      r.Weights != nil,
	}
}

func describeMap(d models.DescriptiveStats) map[string]any {
	return map[string]any{
		"n":        d.N,
		"mean":     number(d.Mean),
		"std_dev":  number(d.StdDev),
		"variance": number(d.Variance),
		"min":      number(d.Min),
		"max":      number(d.Max),
		"median":   number(d.Median),
		"q1":       number(d.Q1),
		"q3":       number(d.Q3),
	}
}

func number(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func numbers(values []float64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = number(v)
	}
	return out
}

func stringList(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func timestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
