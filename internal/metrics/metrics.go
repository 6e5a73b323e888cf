package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels analyses that produced a report.
	OutcomeSuccess = "success"
	// OutcomeRejected labels analyses refused because of the input (too short, degenerate, singular).
	OutcomeRejected = "rejected"
	// OutcomeError labels any other failure.
	OutcomeError = "error"

	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "econometrics",
			Name:      "analyses_total",
			Help:      "Total number of diagnostic runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "econometrics",
			Name:      "analysis_seconds",
			Help:      "Diagnostic pipeline latency in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	correctionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "econometrics",
			Name:      "corrections_total",
			Help:      "Number of runs where the WLS correction replaced the OLS fit.",
		},
	)

	testRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "econometrics",
			Name:      "test_rejections_total",
			Help:      "Hypothesis tests whose null was rejected, by test name.",
		},
		[]string{"test"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "econometrics",
			Name:      "cache_lookups_total",
			Help:      "Report cache lookups by result.",
		},
		[]string{"result"},
	)
)

// Register attaches the econometrics collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analysisDurationSeconds,
		correctionsTotal,
		testRejectionsTotal,
		cacheLookupsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records a run duration and outcome label.
func ObserveAnalysis(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeSuccess, OutcomeRejected:
	default:
		outcome = OutcomeError
	}
	analysesTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// ObserveReport counts the correction and every rejected null in a finished report.
func ObserveReport(correctionApplied bool, rejected []string) {
	if correctionApplied {
		correctionsTotal.Inc()
	}
	for _, name := range rejected {
		testRejectionsTotal.WithLabelValues(name).Inc()
	}
}

// ObserveCacheLookup counts a cache hit, miss or error.
func ObserveCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}
