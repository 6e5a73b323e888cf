package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/climate-econometrics/internal/models"
	"github.com/miradorstack/climate-econometrics/internal/utils"
)

func sampleSeries(name string, values ...float64) models.Series {
	start := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	s := models.Series{Name: name}
	for i, v := range values {
		s.Points = append(s.Points, models.Observation{Date: start.AddDate(0, 0, i), Value: v})
	}
	return s
}

func TestRequestRoundTrip(t *testing.T) {
	req, err := RequestStruct(sampleSeries("co2", 410, math.NaN(), 412), sampleSeries("dow", 28000, 28100, 28200))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	x, y, err := FromStructRequest(req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if x.Name != "co2" || y.Name != "dow" {
		t.Fatalf("unexpected names %q %q", x.Name, y.Name)
	}
	if x.Len() != 3 || y.Len() != 3 {
		t.Fatalf("unexpected lengths %d %d", x.Len(), y.Len())
	}
	if !math.IsNaN(x.Points[1].Value) {
		t.Fatalf("expected null value to decode as NaN, got %v", x.Points[1].Value)
	}
	if !x.Points[2].Date.Equal(time.Date(2020, time.January, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v", x.Points[2].Date)
	}
}

func TestFromStructRequestValidation(t *testing.T) {
	cases := map[string]map[string]any{
		"missing dependent": {
			"explanatory": map[string]any{"points": []any{}},
		},
		"missing points": {
			"explanatory": map[string]any{"name": "co2"},
			"dependent":   map[string]any{"points": []any{}},
		},
		"bad date": {
			"explanatory": map[string]any{"points": []any{map[string]any{"date": "yesterday", "value": 1.0}}},
			"dependent":   map[string]any{"points": []any{}},
		},
		"string value": {
			"explanatory": map[string]any{"points": []any{map[string]any{"date": "2020-01-01", "value": "1"}}},
			"dependent":   map[string]any{"points": []any{}},
		},
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			req, err := structpb.NewStruct(doc)
			if err != nil {
				t.Fatalf("build request: %v", err)
			}
			if _, _, err := FromStructRequest(req); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestFromStructRequestDefaultsNames(t *testing.T) {
	req, err := structpb.NewStruct(map[string]any{
		"explanatory": map[string]any{"points": []any{}},
		"dependent":   map[string]any{"points": []any{}},
	})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	x, y, err := FromStructRequest(req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if x.Name != "explanatory" || y.Name != "dependent" {
		t.Fatalf("unexpected default names %q %q", x.Name, y.Name)
	}
}

func sampleReport() models.DiagnosticReport {
	return models.DiagnosticReport{
		ExplanatoryName:   "co2",
		DependentName:     "dow",
		Observations:      40,
		Start:             time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:               time.Date(2020, time.February, 9, 0, 0, 0, 0, time.UTC),
		SignificanceLevel: 0.05,
		Correlation:       models.CorrelationResult{Coefficient: 0.82, PValue: 1e-9, N: 40},
		Tests: map[string]models.TestResult{
			models.TestBreuschPagan: {
				Name: models.TestBreuschPagan, Statistic: 9.1, PValue: 0.002, Alpha: 0.05, RejectsNull: true, DF: []float64{1},
			},
			models.TestStationarityDependent: {
				Name: models.TestStationarityDependent, Statistic: -1.2, PValue: 0.67, Alpha: 0.05, Lags: 2, NObs: 37,
				CriticalValues: map[string]float64{"1%": -3.6, "5%": -2.9, "10%": -2.6},
			},
		},
		NotApplicable:     map[string]string{models.TestWhite: "white: insufficient data"},
		DurbinWatson:      &models.DurbinWatsonResult{Statistic: 0.9, Lower: 1.5, Upper: 2.5, Flagged: true},
		OLS:               models.RegressionResult{Method: models.MethodOLS, Slope: 2, PSlope: 0.01, SlopeSE: math.Inf(1)},
		Final:             models.RegressionResult{Method: models.MethodWLS, Slope: 1.9, Weights: []float64{1, 2}},
		CorrectionApplied: true,
		Interpretation: models.Interpretation{
			CorrelationStrength:  "strong",
			CorrelationDirection: "positive",
			Flags:                []string{"heteroscedastic"},
		},
		Recommendations: []string{"Use robust standard errors."},
	}
}

func TestToStructReport(t *testing.T) {
	out, err := ToStructReport(sampleReport())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	fields := out.GetFields()

	if got := fields["start"].GetStringValue(); got != "2020-01-01T00:00:00Z" {
		t.Fatalf("unexpected start %q", got)
	}
	if _, ok := fields["generated_at"].GetKind().(*structpb.Value_NullValue); !ok {
		t.Fatalf("expected null generated_at for zero time")
	}
	ols := fields["ols"].GetStructValue().GetFields()
	if _, ok := ols["slope_se"].GetKind().(*structpb.Value_NullValue); !ok {
		t.Fatalf("expected infinite standard error to encode as null")
	}
	final := fields["final"].GetStructValue().GetFields()
	if final["method"].GetStringValue() != "WLS" || !final["weighted"].GetBoolValue() {
		t.Fatalf("unexpected final regression %v", final)
	}
	tests := fields["tests"].GetStructValue().GetFields()
	bp := tests[models.TestBreuschPagan].GetStructValue().GetFields()
	if !bp["rejects_null"].GetBoolValue() || bp["df"].GetListValue().GetValues()[0].GetNumberValue() != 1 {
		t.Fatalf("unexpected breusch-pagan entry %v", bp)
	}
	adf := tests[models.TestStationarityDependent].GetStructValue().GetFields()
	if adf["critical_values"].GetStructValue().GetFields()["5%"].GetNumberValue() != -2.9 {
		t.Fatalf("unexpected critical values %v", adf["critical_values"])
	}
	if !fields["durbin_watson"].GetStructValue().GetFields()["flagged"].GetBoolValue() {
		t.Fatalf("expected durbin-watson flag")
	}
	if fields["not_applicable"].GetStructValue().GetFields()[models.TestWhite].GetStringValue() == "" {
		t.Fatalf("expected not-applicable reason")
	}
	if got := fields["recommendations"].GetListValue().GetValues(); len(got) != 1 {
		t.Fatalf("unexpected recommendations %v", got)
	}
}

func TestReportMapOmitsDurbinWatsonWhenAbsent(t *testing.T) {
	report := sampleReport()
	report.DurbinWatson = nil
	if _, ok := ReportMap(report)["durbin_watson"]; ok {
		t.Fatalf("expected no durbin_watson entry")
	}
}

func TestToStatus(t *testing.T) {
	insufficient := &models.InsufficientDataError{Stage: "prepare", Need: 3, Got: 1}
	cases := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"insufficient", insufficient, codes.InvalidArgument},
		{"staged", utils.NewStageError("engine.Run", "prepare", insufficient), codes.InvalidArgument},
		{"singular", fmt.Errorf("wrap: %w", &models.SingularDesignError{Stage: "ols", Reason: "constant x"}), codes.InvalidArgument},
		{"cancelled", context.Canceled, codes.Canceled},
		{"deadline", fmt.Errorf("run: %w", context.DeadlineExceeded), codes.DeadlineExceeded},
		{"other", errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ToStatus(tc.err).Code(); got != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, got)
			}
		})
	}
	if ToStatus(nil).Code() != codes.OK {
		t.Fatalf("expected OK for nil error")
	}
}
