package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/faultstack/faultline/internal/engine"
	"github.com/faultstack/faultline/internal/history"
	"github.com/faultstack/faultline/internal/metrics"
	"github.com/faultstack/faultline/internal/models"
	"github.com/faultstack/faultline/internal/patterns"
	"github.com/faultstack/faultline/internal/utils"
)

const latencyLogEvery = 20

// AnalysisService fronts the engine for the transport layer. It owns latency
// tracking and metrics emission so handlers stay thin.
type AnalysisService struct {
	logger     *slog.Logger
	pipeline   *engine.Pipeline
	library    *patterns.Library
	correlator *history.Correlator
	latencies  *utils.LatencyTracker
}

// NewAnalysisService constructs the service facade.
func NewAnalysisService(logger *slog.Logger, pipeline *engine.Pipeline, library *patterns.Library, correlator *history.Correlator) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		logger:     logger,
		pipeline:   pipeline,
		library:    library,
		correlator: correlator,
		latencies:  utils.NewLatencyTracker(1024),
	}
}

// AnalyzeError runs one entry through the pipeline. Pipeline failures surface
// as a degraded result, never as an error.
func (s *AnalysisService) AnalyzeError(ctx context.Context, entry models.ErrorEntry) models.ErrorAnalysisResult {
	start := time.Now()
	result := s.pipeline.AnalyzeError(ctx, entry)
	duration := time.Since(start)

	s.latencies.Observe(duration)
	metrics.ObserveAnalysis(duration, outcomeFor(result))
	metrics.SetHistorySize(s.correlator.Len())
	s.maybeLogLatency()

	return result
}

// AnalyzeBatch runs a batch through the pipeline and tallies per-entry
// outcomes into the analysis counter.
func (s *AnalysisService) AnalyzeBatch(ctx context.Context, entries []models.ErrorEntry) models.BatchAnalysisResult {
	start := time.Now()
	result := s.pipeline.AnalyzeBatch(ctx, entries)
	duration := time.Since(start)

	ok, degraded := 0, 0
	for _, analysis := range result.Analyses {
		if analysis.Note != "" {
			degraded++
		} else {
			ok++
		}
	}
	metrics.AddAnalyses(ok, metrics.OutcomeOK)
	metrics.AddAnalyses(degraded, metrics.OutcomeDegraded)
	metrics.ObserveBatch(duration, len(result.Analyses), result.Summary.Truncated)
	metrics.SetHistorySize(s.correlator.Len())

	if result.Summary.Truncated {
		s.logger.Warn("batch truncated by deadline",
			slog.Int("entries", len(result.Analyses)),
			slog.Duration("took", duration))
	}
	return result
}

// Patterns lists the pattern library contents.
func (s *AnalysisService) Patterns() []patterns.Info {
	return s.library.List()
}

// RecentHistory returns up to limit retained observations, newest first.
func (s *AnalysisService) RecentHistory(limit int) []history.Entry {
	return s.correlator.Recent(limit)
}

// HistoryLen reports the current correlation history occupancy.
func (s *AnalysisService) HistoryLen() int {
	return s.correlator.Len()
}

// LatencyP95 returns the current p95 single-analysis latency.
func (s *AnalysisService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

func (s *AnalysisService) maybeLogLatency() {
	count := s.latencies.Count()
	if count >= latencyLogEvery && count%latencyLogEvery == 0 {
		s.logger.Info("analysis latency",
			slog.Duration("p95", s.latencies.Percentile(95)),
			slog.Int("samples", count))
	}
}

func outcomeFor(result models.ErrorAnalysisResult) string {
	if result.Note != "" {
		return metrics.OutcomeDegraded
	}
	return metrics.OutcomeOK
}
