package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register should skip duplicates: %v", err)
	}
}

func TestObserveAnalysisNormalisesOutcome(t *testing.T) {
	before := testutil.ToFloat64(analysesTotal.WithLabelValues(OutcomeError))
	ObserveAnalysis(-time.Second, "boom")
	if got := testutil.ToFloat64(analysesTotal.WithLabelValues(OutcomeError)); got != before+1 {
		t.Fatalf("expected error counter to grow by one, got %v -> %v", before, got)
	}
}

func TestObserveReport(t *testing.T) {
	corrections := testutil.ToFloat64(correctionsTotal)
	bp := testutil.ToFloat64(testRejectionsTotal.WithLabelValues("breusch_pagan"))

	ObserveReport(true, []string{"breusch_pagan", "white"})

	if got := testutil.ToFloat64(correctionsTotal); got != corrections+1 {
		t.Fatalf("corrections counter = %v, want %v", got, corrections+1)
	}
	if got := testutil.ToFloat64(testRejectionsTotal.WithLabelValues("breusch_pagan")); got != bp+1 {
		t.Fatalf("rejections counter = %v, want %v", got, bp+1)
	}
}
