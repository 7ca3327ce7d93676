package engine

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/faultstack/faultline/internal/history"
	"github.com/faultstack/faultline/internal/models"
	"github.com/faultstack/faultline/internal/patterns"
	"github.com/faultstack/faultline/internal/utils"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	logger := utils.NewLogger("error", false)
	library := patterns.Default(logger)
	correlator := history.NewCorrelator(history.NewStore(1000, time.Hour), history.DefaultParams(), logger)
	return NewPipeline(logger, library, correlator, NewAnalyzer(library, logger), Options{})
}

func TestAnalyzeErrorDatabaseTimeout(t *testing.T) {
	p := newTestPipeline(t)
	result := p.AnalyzeError(context.Background(), models.ErrorEntry{
		ID:          "err-1",
		Timestamp:   time.Now().Add(-time.Minute),
		Severity:    models.SeverityHigh,
		Category:    models.CategoryFunctional,
		Component:   "orders-api",
		Description: "Database connection timeout after 30 seconds",
	})

	if len(result.Patterns) == 0 || result.Patterns[0].PatternID != "db-connection-timeout" {
		t.Fatalf("expected db-connection-timeout as top match, got %+v", result.Patterns)
	}
	if result.EffectiveCategory != models.CategoryInfrastructure {
		t.Fatalf("expected infrastructure category, got %s", result.EffectiveCategory)
	}
	if len(result.RootCause.PossibleCauses) == 0 {
		t.Fatalf("expected root cause hypotheses")
	}
	if result.Confidence <= 0 || result.Confidence > 1 {
		t.Fatalf("confidence out of range: %f", result.Confidence)
	}
	if result.Impact.OverallSeverity.Rank() < models.SeverityHigh.Rank() {
		t.Fatalf("expected at least the declared severity, got %s", result.Impact.OverallSeverity)
	}
	if result.AnalyzedAt.IsZero() {
		t.Fatalf("expected analysis timestamp")
	}
}

func TestAnalyzeErrorCorrelatesRepeats(t *testing.T) {
	p := newTestPipeline(t)
	base := time.Now().Add(-10 * time.Minute)

	first := p.AnalyzeError(context.Background(), models.ErrorEntry{
		ID: "b-1", Timestamp: base, Severity: models.SeverityMedium,
		Category: models.CategoryIntegration, Component: "payment-service",
		Description: "flaky widget glitch",
	})
	if len(first.Correlations) != 0 {
		t.Fatalf("first error has nothing to correlate with, got %+v", first.Correlations)
	}

	second := p.AnalyzeError(context.Background(), models.ErrorEntry{
		ID: "b-2", Timestamp: base.Add(90 * time.Second), Severity: models.SeverityMedium,
		Category: models.CategoryIntegration, Component: "payment-service",
		Description: "flaky widget glitch",
	})

	var sawComponent, sawCategory bool
	for _, rec := range second.Correlations {
		switch rec.Kind {
		case models.CorrelationComponent:
			sawComponent = true
		case models.CorrelationCategory:
			sawCategory = true
		}
		if len(rec.RelatedErrorIDs) != 1 || rec.RelatedErrorIDs[0] != "b-1" {
			t.Fatalf("expected related id b-1, got %+v", rec.RelatedErrorIDs)
		}
		if rec.Strength <= 0 || rec.Strength > 1 {
			t.Fatalf("strength out of range: %f", rec.Strength)
		}
	}
	if !sawComponent || !sawCategory {
		t.Fatalf("expected component and category correlations, got %+v", second.Correlations)
	}
}

func TestAnalyzeErrorInterleavedCorrelation(t *testing.T) {
	p := newTestPipeline(t)
	base := time.Now().Add(-10 * time.Minute)

	p.AnalyzeError(context.Background(), models.ErrorEntry{
		ID: "infra-1", Timestamp: base, Severity: models.SeverityHigh,
		Component: "db-primary", Description: "Database connection timeout after 30 seconds",
	})
	p.AnalyzeError(context.Background(), models.ErrorEntry{
		ID: "noise-1", Timestamp: base.Add(30 * time.Second),
		Component: "frontend", Description: "flaky widget glitch",
	})
	p.AnalyzeError(context.Background(), models.ErrorEntry{
		ID: "noise-2", Timestamp: base.Add(time.Minute),
		Component: "cron", Description: "flaky widget glitch",
	})
	result := p.AnalyzeError(context.Background(), models.ErrorEntry{
		ID: "infra-2", Timestamp: base.Add(90 * time.Second), Severity: models.SeverityHigh,
		Component: "db-primary", Description: "Database connection timeout after 30 seconds",
	})

	// The unrelated errors in between must not break the link back to the
	// first infrastructure failure.
	found := false
	for _, rec := range result.Correlations {
		if rec.Kind != models.CorrelationComponent && rec.Kind != models.CorrelationCategory {
			continue
		}
		for _, id := range rec.RelatedErrorIDs {
			if id == "infra-1" {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected infra-2 to correlate back to infra-1, got %+v", result.Correlations)
	}
}

func TestAnalyzeErrorEmptyDescription(t *testing.T) {
	p := newTestPipeline(t)
	result := p.AnalyzeError(context.Background(), models.ErrorEntry{})

	if len(result.Patterns) != 0 {
		t.Fatalf("expected no pattern matches, got %+v", result.Patterns)
	}
	if len(result.RootCause.PossibleCauses) == 0 {
		t.Fatalf("even an empty entry needs a cause hypothesis")
	}
	if result.EffectiveCategory != models.CategoryFunctional {
		t.Fatalf("expected default category, got %s", result.EffectiveCategory)
	}
	if result.Entry.ID == "" {
		t.Fatalf("expected a synthesized id")
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		t.Fatalf("confidence out of range: %f", result.Confidence)
	}
}

func TestAnalyzeErrorRecoversInternalPanic(t *testing.T) {
	// A pipeline without its library panics inside the stateless phase; the
	// recover path must still hand back a usable verdict.
	p := &Pipeline{logger: utils.NewLogger("error", false), opts: DefaultOptions()}

	result := p.AnalyzeError(context.Background(), models.ErrorEntry{
		ID: "sick-1", Severity: models.SeverityHigh, Description: "boom",
	})

	if result.Note == "" {
		t.Fatalf("expected a degradation note")
	}
	if len(result.RootCause.PossibleCauses) == 0 {
		t.Fatalf("degraded result still needs a cause")
	}
	if result.Confidence != 0.1 {
		t.Fatalf("expected floor confidence, got %f", result.Confidence)
	}
	if result.EffectiveCategory != models.CategoryFunctional {
		t.Fatalf("expected default category, got %s", result.EffectiveCategory)
	}
	if result.Impact.OverallSeverity == "" {
		t.Fatalf("degraded result still needs an impact verdict")
	}
}

func TestAnalyzeBatchCountsDegradedResults(t *testing.T) {
	p := &Pipeline{logger: utils.NewLogger("error", false), opts: DefaultOptions()}
	entries := []models.ErrorEntry{
		{ID: "sick-a", Description: "boom"},
		{ID: "sick-b", Description: "boom"},
	}

	result := p.AnalyzeBatch(context.Background(), entries)

	if len(result.Analyses) != len(entries) {
		t.Fatalf("degraded entries must keep their slots, got %d", len(result.Analyses))
	}
	for i, analysis := range result.Analyses {
		if analysis.Note == "" {
			t.Fatalf("analysis %d missing degradation note", i)
		}
	}
	sum := 0
	for _, n := range result.Summary.CategoryCounts {
		sum += n
	}
	if sum != len(entries) {
		t.Fatalf("degraded analyses still count toward categories: sum %d", sum)
	}
	if !strings.Contains(strings.Join(result.Summary.Notes, " "), "degraded") {
		t.Fatalf("expected the summary to call out degraded analyses, got %+v", result.Summary.Notes)
	}
}

func TestAnalyzeBatchDeterministicOnFreshEngine(t *testing.T) {
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	entries := []models.ErrorEntry{
		{ID: "d-1", Timestamp: base, Severity: models.SeverityHigh, Component: "orders-db", Description: "Database connection timeout after 30 seconds"},
		{ID: "d-2", Timestamp: base.Add(20 * time.Second), Severity: models.SeverityMedium, Component: "auth", Description: "authentication failed for user"},
		{ID: "d-3", Timestamp: base.Add(40 * time.Second), Severity: models.SeverityMedium, Component: "orders-db", Description: "Database connection timeout after 30 seconds"},
	}
	snapshot := entries[0]

	first := newTestPipeline(t).AnalyzeBatch(context.Background(), entries)
	second := newTestPipeline(t).AnalyzeBatch(context.Background(), entries)

	if !reflect.DeepEqual(entries[0], snapshot) {
		t.Fatalf("batch analysis mutated the caller's entry: %+v", entries[0])
	}
	for i := range first.Analyses {
		a, b := first.Analyses[i], second.Analyses[i]
		if !reflect.DeepEqual(a.Patterns, b.Patterns) {
			t.Fatalf("analysis %d pattern matches differ: %+v vs %+v", i, a.Patterns, b.Patterns)
		}
		if !reflect.DeepEqual(a.Correlations, b.Correlations) {
			t.Fatalf("analysis %d correlations differ: %+v vs %+v", i, a.Correlations, b.Correlations)
		}
		if !reflect.DeepEqual(a.RootCause, b.RootCause) {
			t.Fatalf("analysis %d root cause differs: %+v vs %+v", i, a.RootCause, b.RootCause)
		}
		if a.EffectiveCategory != b.EffectiveCategory || a.Confidence != b.Confidence {
			t.Fatalf("analysis %d verdict differs between fresh engines", i)
		}
	}
	if !reflect.DeepEqual(first.Trends, second.Trends) {
		t.Fatalf("trends differ between fresh engines")
	}
	if !reflect.DeepEqual(first.Summary.CategoryCounts, second.Summary.CategoryCounts) {
		t.Fatalf("category counts differ between fresh engines")
	}
	if !reflect.DeepEqual(first.Summary.TopPatterns, second.Summary.TopPatterns) {
		t.Fatalf("top patterns differ between fresh engines")
	}
}

func TestNormalizeRepairsMalformedEntries(t *testing.T) {
	p := newTestPipeline(t)
	now := time.Now().UTC()

	e := p.normalize(models.ErrorEntry{
		Timestamp:   now.Add(2 * time.Hour),
		Severity:    "catastrophic",
		Category:    "weird",
		Component:   "  Payment-Service  ",
		Description: "  boom  ",
	}, now)

	if e.Severity != models.SeverityMedium {
		t.Fatalf("unknown severity should default to medium, got %s", e.Severity)
	}
	if e.Category != models.CategoryFunctional {
		t.Fatalf("unknown category should default to functional, got %s", e.Category)
	}
	if e.Component != "payment-service" {
		t.Fatalf("component not canonicalized: %q", e.Component)
	}
	if e.Description != "boom" {
		t.Fatalf("description not trimmed: %q", e.Description)
	}
	if e.Timestamp.After(now.Add(p.opts.FutureSkew)) {
		t.Fatalf("future timestamp not clamped: %s", e.Timestamp)
	}
	if !strings.HasPrefix(e.ID, "gen-") {
		t.Fatalf("expected synthesized id, got %q", e.ID)
	}

	again := p.normalize(models.ErrorEntry{
		Timestamp:   now.Add(2 * time.Hour),
		Severity:    "catastrophic",
		Category:    "weird",
		Component:   "  Payment-Service  ",
		Description: "  boom  ",
	}, now)
	if again.ID != e.ID {
		t.Fatalf("synthesized ids must be stable: %q vs %q", again.ID, e.ID)
	}
}

func TestNormalizeTruncatesOversizedText(t *testing.T) {
	p := newTestPipeline(t)
	long := strings.Repeat("x", p.opts.MaxTextBytes+100)

	e := p.normalize(models.ErrorEntry{ID: "big", Description: long}, time.Now().UTC())
	if len(e.Description) > p.opts.MaxTextBytes {
		t.Fatalf("description not truncated: %d bytes", len(e.Description))
	}
}

func TestAnalyzeBatchPreservesInputOrder(t *testing.T) {
	p := newTestPipeline(t)
	base := time.Now().Add(-30 * time.Minute)
	entries := []models.ErrorEntry{
		{ID: "late", Timestamp: base.Add(10 * time.Minute), Description: "flaky widget glitch"},
		{ID: "early", Timestamp: base, Description: "flaky widget glitch"},
		{ID: "middle", Timestamp: base.Add(5 * time.Minute), Description: "flaky widget glitch"},
	}

	result := p.AnalyzeBatch(context.Background(), entries)

	if len(result.Analyses) != len(entries) {
		t.Fatalf("expected %d analyses, got %d", len(entries), len(result.Analyses))
	}
	for i, want := range []string{"late", "early", "middle"} {
		if got := result.Analyses[i].Entry.ID; got != want {
			t.Fatalf("analysis %d: expected %s, got %s", i, want, got)
		}
	}
	// Correlation still runs oldest first: the chronologically last entry
	// sees the two earlier ones.
	if len(result.Analyses[0].Correlations) == 0 {
		t.Fatalf("expected the newest entry to correlate with earlier ones")
	}
	if len(result.Analyses[1].Correlations) != 0 {
		t.Fatalf("the oldest entry has no priors, got %+v", result.Analyses[1].Correlations)
	}
}

func TestAnalyzeBatchSummaryAndGlobals(t *testing.T) {
	p := newTestPipeline(t)
	// Anchor to a bucket boundary so all four land in one burst window.
	base := time.Now().Add(-5 * time.Minute).Truncate(time.Minute)
	entries := make([]models.ErrorEntry, 0, 4)
	for i := 0; i < 4; i++ {
		entries = append(entries, models.ErrorEntry{
			ID:          fmt.Sprintf("db-%d", i),
			Timestamp:   base.Add(time.Duration(i) * 5 * time.Second),
			Severity:    models.SeverityHigh,
			Component:   "orders-db",
			Description: "Database connection timeout after 30 seconds",
		})
	}

	result := p.AnalyzeBatch(context.Background(), entries)

	if result.Summary.TotalErrors != 4 {
		t.Fatalf("expected 4 total errors, got %d", result.Summary.TotalErrors)
	}
	sum := 0
	for _, n := range result.Summary.CategoryCounts {
		sum += n
	}
	if sum != result.Summary.TotalErrors {
		t.Fatalf("category counts sum %d, want %d", sum, result.Summary.TotalErrors)
	}
	if result.Summary.CategoryCounts[models.CategoryInfrastructure] != 4 {
		t.Fatalf("expected all entries categorized as infrastructure, got %+v", result.Summary.CategoryCounts)
	}
	if len(result.Summary.TopPatterns) == 0 || result.Summary.TopPatterns[0].PatternID != "db-connection-timeout" {
		t.Fatalf("expected db-connection-timeout as top pattern, got %+v", result.Summary.TopPatterns)
	}
	if result.Summary.TopPatterns[0].Count != 4 {
		t.Fatalf("expected count 4, got %d", result.Summary.TopPatterns[0].Count)
	}

	var sawComponent, sawTemporal bool
	for _, rec := range result.GlobalCorrelations {
		switch rec.Kind {
		case models.CorrelationComponent:
			sawComponent = true
			if len(rec.RelatedErrorIDs) != 4 {
				t.Fatalf("expected all four ids, got %+v", rec.RelatedErrorIDs)
			}
		case models.CorrelationTemporal:
			sawTemporal = true
		}
		if rec.Strength < 0 || rec.Strength > 1 {
			t.Fatalf("strength out of range: %f", rec.Strength)
		}
	}
	if !sawComponent {
		t.Fatalf("expected a component cluster, got %+v", result.GlobalCorrelations)
	}
	if !sawTemporal {
		t.Fatalf("expected a burst record, got %+v", result.GlobalCorrelations)
	}
}

func TestAnalyzeBatchDetectsRampTrend(t *testing.T) {
	p := newTestPipeline(t)
	start := time.Now().Add(-11 * time.Hour).Truncate(time.Hour)
	perBucket := []int{1, 1, 2, 2, 3, 3, 4, 4, 5, 5}
	entries := make([]models.ErrorEntry, 0, 30)
	for bucket, n := range perBucket {
		for i := 0; i < n; i++ {
			entries = append(entries, models.ErrorEntry{
				ID:          fmt.Sprintf("ramp-%d-%d", bucket, i),
				Timestamp:   start.Add(time.Duration(bucket)*time.Hour + time.Duration(i)*time.Minute),
				Severity:    models.SeverityMedium,
				Category:    models.CategoryPerformance,
				Description: "flaky widget glitch",
			})
		}
	}

	result := p.AnalyzeBatch(context.Background(), entries)

	var ramp *models.TrendRecord
	for i := range result.Trends {
		if result.Trends[i].Dimension == models.TrendByCategory && result.Trends[i].Key == string(models.CategoryPerformance) {
			ramp = &result.Trends[i]
		}
	}
	if ramp == nil {
		t.Fatalf("expected a category trend, got %+v", result.Trends)
	}
	if ramp.Trend != models.TrendIncreasing {
		t.Fatalf("expected increasing trend, got %s", ramp.Trend)
	}
	if ramp.Strength <= 0 || ramp.Strength > 1 {
		t.Fatalf("strength out of range: %f", ramp.Strength)
	}
}

func TestAnalyzeBatchDeadlineTruncates(t *testing.T) {
	p := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries := []models.ErrorEntry{
		{ID: "t-1", Description: "flaky widget glitch"},
		{ID: "t-2", Description: "flaky widget glitch"},
	}
	result := p.AnalyzeBatch(ctx, entries)

	if len(result.Analyses) != len(entries) {
		t.Fatalf("deadline must not drop analyses: got %d", len(result.Analyses))
	}
	if !result.Summary.Truncated {
		t.Fatalf("expected truncated summary")
	}
	if len(result.Trends) != 0 || len(result.GlobalCorrelations) != 0 {
		t.Fatalf("expected batch-level phases to be skipped")
	}
	if len(result.Summary.Notes) == 0 {
		t.Fatalf("expected a note explaining the truncation")
	}
}

func TestAnalyzeBatchEmptyInput(t *testing.T) {
	p := newTestPipeline(t)
	result := p.AnalyzeBatch(context.Background(), nil)

	if len(result.Analyses) != 0 {
		t.Fatalf("expected no analyses, got %d", len(result.Analyses))
	}
	if result.Summary.TotalErrors != 0 {
		t.Fatalf("expected zero total, got %d", result.Summary.TotalErrors)
	}
}

func TestAnalyzeBatchHundredEntries(t *testing.T) {
	p := newTestPipeline(t)
	base := time.Now().Add(-time.Hour)
	descriptions := []string{
		"Database connection timeout after 30 seconds",
		"request latency above threshold",
		"authentication failed for user",
		"unexpected response from upstream provider",
		"flaky widget glitch",
	}
	entries := make([]models.ErrorEntry, 0, 100)
	for i := 0; i < 100; i++ {
		entries = append(entries, models.ErrorEntry{
			ID:          fmt.Sprintf("load-%d", i),
			Timestamp:   base.Add(time.Duration(i) * 20 * time.Second),
			Severity:    models.SeverityMedium,
			Component:   fmt.Sprintf("svc-%d", i%7),
			Description: descriptions[i%len(descriptions)],
		})
	}

	started := time.Now()
	result := p.AnalyzeBatch(context.Background(), entries)
	if elapsed := time.Since(started); elapsed > 10*time.Second {
		t.Fatalf("batch of 100 took %s", elapsed)
	}

	if len(result.Analyses) != 100 {
		t.Fatalf("expected 100 analyses, got %d", len(result.Analyses))
	}
	sum := 0
	for _, n := range result.Summary.CategoryCounts {
		sum += n
	}
	if sum != 100 {
		t.Fatalf("category counts sum %d, want 100", sum)
	}
	for i, analysis := range result.Analyses {
		if analysis.Entry.ID != fmt.Sprintf("load-%d", i) {
			t.Fatalf("analysis %d out of order: %s", i, analysis.Entry.ID)
		}
		if analysis.Confidence < 0 || analysis.Confidence > 1 {
			t.Fatalf("confidence out of range at %d: %f", i, analysis.Confidence)
		}
		if len(analysis.RootCause.PossibleCauses) == 0 {
			t.Fatalf("analysis %d has no causes", i)
		}
	}
	if len(result.Summary.TopPatterns) == 0 {
		t.Fatalf("expected top patterns for a pattern-heavy batch")
	}
	if len(result.Summary.TopPatterns) > maxTopPatterns {
		t.Fatalf("too many top patterns: %d", len(result.Summary.TopPatterns))
	}
}
