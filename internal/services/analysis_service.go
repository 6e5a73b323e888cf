package services

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/miradorstack/climate-econometrics/internal/cache"
	"github.com/miradorstack/climate-econometrics/internal/engine"
	"github.com/miradorstack/climate-econometrics/internal/metrics"
	"github.com/miradorstack/climate-econometrics/internal/models"
	"github.com/miradorstack/climate-econometrics/internal/series"
	"github.com/miradorstack/climate-econometrics/internal/utils"
)

const opAnalyze = "services.Analyze"

// cacheVersion is mixed into every key; bump it when DiagnosticReport changes shape.
const cacheVersion = "v1"

// ServiceOptions configures caching and the analysed window.
type ServiceOptions struct {
	CacheTTL  time.Duration
	KeyPrefix string
	// Since drops observations before this day. Zero keeps everything.
	Since time.Time
}

// AnalysisService prepares raw series, runs the diagnostic pipeline and caches reports.
type AnalysisService struct {
	logger    *slog.Logger
	pipeline  *engine.Pipeline
	cache     cache.Provider
	opts      ServiceOptions
	latencies *utils.LatencyTracker
}

// NewAnalysisService constructs the service facade. A nil provider disables caching.
func NewAnalysisService(logger *slog.Logger, pipeline *engine.Pipeline, provider cache.Provider, opts ServiceOptions) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	return &AnalysisService{
		logger:    logger,
		pipeline:  pipeline,
		cache:     provider,
		opts:      opts,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Analyze aligns the two series and returns their diagnostic report, from cache when
// an identical request was analysed before.
func (s *AnalysisService) Analyze(ctx context.Context, explanatory, dependent models.Series) (models.DiagnosticReport, error) {
	if s.pipeline == nil {
		return models.DiagnosticReport{}, utils.NewAppError(opAnalyze, "pipeline not configured", nil)
	}
	if err := ctx.Err(); err != nil {
		return models.DiagnosticReport{}, err
	}

	pair, err := series.Align(series.Since(explanatory, s.opts.Since), series.Since(dependent, s.opts.Since))
	if err != nil {
		metrics.ObserveAnalysis(0, metrics.OutcomeRejected)
		return models.DiagnosticReport{}, utils.NewStageError(opAnalyze, series.Stage, err)
	}
	if dropped := pair.Dropped.Total(); dropped > 0 {
		s.logger.Info("rows dropped during alignment",
			slog.Int("explanatory_only", pair.Dropped.ExplanatoryOnly),
			slog.Int("dependent_only", pair.Dropped.DependentOnly),
			slog.Int("missing", pair.Dropped.Missing),
			slog.Int("duplicates", pair.Dropped.Duplicates),
		)
	}

	key := s.opts.KeyPrefix + CacheKey(pair, s.pipeline.Options())
	if report, ok := s.lookup(ctx, key); ok {
		return report, nil
	}

	start := time.Now()
	report, err := s.pipeline.Run(pair)
	duration := time.Since(start)
	if err != nil {
		outcome := metrics.OutcomeError
		if models.IsInputError(err) {
			outcome = metrics.OutcomeRejected
		}
		metrics.ObserveAnalysis(duration, outcome)
		return models.DiagnosticReport{}, err
	}

	metrics.ObserveAnalysis(duration, metrics.OutcomeSuccess)
	metrics.ObserveReport(report.CorrectionApplied, report.Rejected())
	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("analysis latency", slog.Any("latency", s.latencies.Summary()))
	}

	s.store(ctx, key, report)
	return report, nil
}

// LatencyP95 returns the current p95 pipeline latency.
func (s *AnalysisService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

func (s *AnalysisService) lookup(ctx context.Context, key string) (models.DiagnosticReport, bool) {
	payload, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			metrics.ObserveCacheLookup(metrics.CacheMiss)
		} else {
			metrics.ObserveCacheLookup(metrics.CacheError)
			s.logger.Warn("report cache lookup failed", slog.Any("error", err))
		}
		return models.DiagnosticReport{}, false
	}
	report, err := DecodeReport(payload)
	if err != nil {
		metrics.ObserveCacheLookup(metrics.CacheError)
		s.logger.Warn("discarding undecodable cached report", slog.String("key", key), slog.Any("error", err))
		return models.DiagnosticReport{}, false
	}
	metrics.ObserveCacheLookup(metrics.CacheHit)
	s.logger.Debug("report served from cache", slog.String("key", key))
	return report, true
}

func (s *AnalysisService) store(ctx context.Context, key string, report models.DiagnosticReport) {
	payload, err := EncodeReport(report)
	if err != nil {
		s.logger.Warn("encode report for cache", slog.Any("error", err))
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.opts.CacheTTL); err != nil {
		s.logger.Warn("report cache write failed", slog.Any("error", err))
	}
}

// CacheKey hashes the aligned data and every option that influences the report.
func CacheKey(pair models.TimeSeriesPair, opts engine.Options) string {
	d := xxhash.New()
	_, _ = d.WriteString(cacheVersion)
	_, _ = d.WriteString(pair.XName)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(pair.YName)
	_, _ = d.WriteString("\x00")

	var buf [8]byte
	for i := range pair.X {
		binary.LittleEndian.PutUint64(buf[:], uint64(pair.Dates[i].Unix()))
		_, _ = d.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(pair.X[i]))
		_, _ = d.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(pair.Y[i]))
		_, _ = d.Write(buf[:])
	}
	_, _ = fmt.Fprintf(d, "%+v|%+v", opts, pair.Dropped)
	return strconv.FormatUint(d.Sum64(), 16)
}

// EncodeReport serialises a report for the cache. gob keeps NaN fields intact.
func EncodeReport(report models.DiagnosticReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(report); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeReport is the inverse of EncodeReport.
func DecodeReport(payload []byte) (models.DiagnosticReport, error) {
	var report models.DiagnosticReport
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&report); err != nil {
		return models.DiagnosticReport{}, err
	}
	return report, nil
}
