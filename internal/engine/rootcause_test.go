package engine

import (
	"strings"
	"testing"

	"github.com/faultstack/faultline/internal/models"
	"github.com/faultstack/faultline/internal/patterns"
	"github.com/faultstack/faultline/internal/utils"
)

func testAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	return NewAnalyzer(patterns.Default(utils.NewLogger("error", false)), utils.NewLogger("error", false))
}

func TestAnalyzeRanksDatabaseCauses(t *testing.T) {
	a := testAnalyzer(t)
	entry := models.ErrorEntry{
		ID:          "err-1",
		Severity:    models.SeverityHigh,
		Component:   "orders-api",
		Description: "Database connection timeout after 30 seconds",
	}
	matches := []models.PatternMatch{
		{PatternID: "db-connection-timeout", Category: models.CategoryInfrastructure, Confidence: 0.875},
	}

	analysis := a.Analyze(entry, models.CategoryInfrastructure, matches, nil)

	if len(analysis.PossibleCauses) == 0 {
		t.Fatalf("expected at least one cause")
	}
	sum := 0.0
	for _, cause := range analysis.PossibleCauses {
		if cause.Probability < 0 || cause.Probability > 1 {
			t.Fatalf("probability out of range: %f", cause.Probability)
		}
		if len(cause.Evidence) == 0 {
			t.Fatalf("cause %q has no evidence", cause.Description)
		}
		sum += cause.Probability
	}
	if sum > 1.0001 {
		t.Fatalf("probabilities sum above 1: %f", sum)
	}
	if len(analysis.RecommendedActions) == 0 {
		t.Fatalf("expected recommended actions")
	}
	if analysis.Confidence <= 0 || analysis.Confidence > 1 {
		t.Fatalf("confidence out of range: %f", analysis.Confidence)
	}
}

func TestAnalyzeCorrelationBoostsAffineCause(t *testing.T) {
	a := testAnalyzer(t)
	entry := models.ErrorEntry{ID: "err-2", Component: "orders-api", Description: "database connection timeout"}
	matches := []models.PatternMatch{
		{PatternID: "db-connection-timeout", Category: models.CategoryInfrastructure, Confidence: 0.75},
	}

	quiet := a.Analyze(entry, models.CategoryInfrastructure, matches, nil)
	correlated := a.Analyze(entry, models.CategoryInfrastructure, matches, []models.CorrelationRecord{
		{Kind: models.CorrelationComponent, RelatedErrorIDs: []string{"err-1"}, Strength: 1},
	})

	if probabilityOf(correlated, "pooled connections") <= probabilityOf(quiet, "pooled connections") {
		t.Fatalf("expected component correlation to boost the pool hypothesis: %+v vs %+v",
			correlated.PossibleCauses, quiet.PossibleCauses)
	}
	if correlated.Confidence <= quiet.Confidence {
		t.Fatalf("expected correlation support to raise confidence: %f vs %f",
			correlated.Confidence, quiet.Confidence)
	}
}

func TestAnalyzeNeverReturnsEmptyCauses(t *testing.T) {
	a := testAnalyzer(t)
	entry := models.ErrorEntry{ID: "err-3", Category: models.CategoryBusinessLogic}

	analysis := a.Analyze(entry, models.CategoryBusinessLogic, nil, nil)

	if len(analysis.PossibleCauses) != 1 {
		t.Fatalf("expected a single fallback cause, got %d", len(analysis.PossibleCauses))
	}
	cause := analysis.PossibleCauses[0]
	if cause.Probability <= 0 || cause.Probability > 1 {
		t.Fatalf("fallback probability out of range: %f", cause.Probability)
	}
	if len(analysis.RecommendedActions) == 0 {
		t.Fatalf("fallback must still recommend actions")
	}
}

func TestAnalyzeCapsCausesAndActions(t *testing.T) {
	a := testAnalyzer(t).WithMaxCauses(2)
	entry := models.ErrorEntry{ID: "err-4", Description: "database connection timeout and out of memory"}
	matches := []models.PatternMatch{
		{PatternID: "db-connection-timeout", Category: models.CategoryInfrastructure, Confidence: 0.875},
		{PatternID: "out-of-memory", Category: models.CategoryPerformance, Confidence: 0.7},
	}

	analysis := a.Analyze(entry, models.CategoryInfrastructure, matches, nil)

	if len(analysis.PossibleCauses) != 2 {
		t.Fatalf("expected capped cause list, got %d", len(analysis.PossibleCauses))
	}
	if len(analysis.RecommendedActions) > maxActions {
		t.Fatalf("expected at most %d actions, got %d", maxActions, len(analysis.RecommendedActions))
	}
	for i := 1; i < len(analysis.PossibleCauses); i++ {
		if analysis.PossibleCauses[i].Probability > analysis.PossibleCauses[i-1].Probability {
			t.Fatalf("causes not sorted by probability: %+v", analysis.PossibleCauses)
		}
	}
}

func probabilityOf(analysis models.RootCauseAnalysis, fragment string) float64 {
	for _, cause := range analysis.PossibleCauses {
		if strings.Contains(strings.ToLower(cause.Description), fragment) {
			return cause.Probability
		}
	}
	return 0
}
