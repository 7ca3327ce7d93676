package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/faultstack/faultline/internal/models"
	"github.com/faultstack/faultline/internal/patterns"
)

const (
	defaultMaxCauses   = 5
	actionSourceCauses = 3
	maxEvidenceLines   = 4
	maxActions         = 5
)

// Analyzer ranks root-cause hypotheses for a single analyzed error. Pattern
// matches seed the hypothesis weights; correlation records amplify causes
// whose profile matches the observed relationship.
type Analyzer struct {
	library   *patterns.Library
	logger    *slog.Logger
	maxCauses int
}

// NewAnalyzer constructs an Analyzer over the given pattern library.
func NewAnalyzer(library *patterns.Library, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if library == nil {
		library = patterns.Default(logger)
	}
	return &Analyzer{library: library, logger: logger, maxCauses: defaultMaxCauses}
}

// WithMaxCauses caps how many hypotheses a single analysis reports.
func (a *Analyzer) WithMaxCauses(limit int) *Analyzer {
	if limit > 0 {
		a.maxCauses = limit
	}
	return a
}

// Analyze produces a ranked cause list for the entry. The result always
// carries at least one cause, even when no pattern matched.
func (a *Analyzer) Analyze(entry models.ErrorEntry, effective models.Category, matches []models.PatternMatch, correlations []models.CorrelationRecord) models.RootCauseAnalysis {
	weights := make(map[string]float64)
	evidence := make(map[string][]string)
	for _, m := range matches {
		for _, cause := range a.library.Causes(m.PatternID) {
			weights[cause] += m.Confidence
			evidence[cause] = append(evidence[cause],
				fmt.Sprintf("pattern %s matched with confidence %.2f", m.PatternID, m.Confidence))
		}
	}
	if len(weights) == 0 {
		a.logger.Debug("no cause signal, using fallback", slog.String("error_id", entry.ID))
		return a.fallback(entry, effective, correlations)
	}

	for cause := range weights {
		profile := profileFor(cause)
		for _, rec := range correlations {
			w := profile.affinity[rec.Kind]
			if w <= 0 || rec.Strength <= 0 {
				continue
			}
			weights[cause] *= 1 + w*rec.Strength
			evidence[cause] = append(evidence[cause], correlationEvidence(rec))
		}
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}

	type scored struct {
		key    string
		weight float64
	}
	ranked := make([]scored, 0, len(weights))
	for key, weight := range weights {
		ranked = append(ranked, scored{key: key, weight: weight})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].key < ranked[j].key
	})
	if len(ranked) > a.maxCauses {
		ranked = ranked[:a.maxCauses]
	}

	// Probabilities are shares of the total hypothesis mass, discounted by
	// how strong the strongest pattern signal was. They sum to at most 1.
	signal := 0.6 + 0.4*matches[0].Confidence
	causes := make([]models.PossibleCause, 0, len(ranked))
	actions := make([]models.RecommendedAction, 0, 2*len(ranked))
	for i, sc := range ranked {
		profile := profileFor(sc.key)
		causes = append(causes, models.PossibleCause{
			Description: profile.description,
			Probability: clamp(sc.weight/total*signal, 0, 1),
			Evidence:    capStrings(uniqueStrings(evidence[sc.key]), maxEvidenceLines),
		})
		if i < actionSourceCauses {
			actions = append(actions, profile.actions...)
		}
	}

	actions = dedupeActions(actions)
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].Priority != actions[j].Priority {
			return actions[i].Priority < actions[j].Priority
		}
		return actions[i].Description < actions[j].Description
	})
	if len(actions) > maxActions {
		actions = actions[:maxActions]
	}

	return models.RootCauseAnalysis{
		PossibleCauses:     causes,
		RecommendedActions: actions,
		Confidence:         calibrateConfidence(causes[0].Probability, maxCorrelationStrength(correlations)),
	}
}

// fallback covers entries with no pattern signal at all. Correlation context
// still nudges the single generic hypothesis.
func (a *Analyzer) fallback(entry models.ErrorEntry, effective models.Category, correlations []models.CorrelationRecord) models.RootCauseAnalysis {
	evidence := []string{"no known pattern matched the description"}
	probability := 0.2
	support := maxCorrelationStrength(correlations)
	for _, rec := range correlations {
		if rec.Strength > 0 {
			evidence = append(evidence, correlationEvidence(rec))
		}
	}
	probability = clamp(probability+0.15*support, 0, 1)

	return models.RootCauseAnalysis{
		PossibleCauses: []models.PossibleCause{{
			Description: "Unclassified " + strings.ReplaceAll(string(effective), "_", " ") + " failure",
			Probability: probability,
			Evidence:    capStrings(evidence, maxEvidenceLines),
		}},
		RecommendedActions: defaultActions(entry),
		Confidence:         calibrateConfidence(probability, support),
	}
}

func defaultActions(entry models.ErrorEntry) []models.RecommendedAction {
	actions := []models.RecommendedAction{
		{Description: "Review recent deployments for regressions", Priority: 2},
		{Description: "Check upstream dependencies for correlated errors", Priority: 3},
	}
	if entry.Component != "" {
		inspect := models.RecommendedAction{
			Description: "Inspect recent logs for " + entry.Component,
			Priority:    1,
		}
		actions = append([]models.RecommendedAction{inspect}, actions...)
	}
	return actions
}

func correlationEvidence(rec models.CorrelationRecord) string {
	n := len(rec.RelatedErrorIDs)
	switch rec.Kind {
	case models.CorrelationComponent:
		return fmt.Sprintf("%d recent errors in the same component", n)
	case models.CorrelationCategory:
		return fmt.Sprintf("%d recent errors in the same category", n)
	case models.CorrelationTemporal:
		return fmt.Sprintf("part of a burst of %d errors", n+1)
	}
	return fmt.Sprintf("%d related errors", n)
}

func dedupeActions(actions []models.RecommendedAction) []models.RecommendedAction {
	seen := make(map[string]int, len(actions))
	out := make([]models.RecommendedAction, 0, len(actions))
	for _, act := range actions {
		if idx, ok := seen[act.Description]; ok {
			if act.Priority < out[idx].Priority {
				out[idx].Priority = act.Priority
			}
			continue
		}
		seen[act.Description] = len(out)
		out = append(out, act)
	}
	return out
}

func maxCorrelationStrength(records []models.CorrelationRecord) float64 {
	max := 0.0
	for _, r := range records {
		if r.Strength > max {
			max = r.Strength
		}
	}
	return max
}

func capStrings(values []string, limit int) []string {
	if len(values) > limit {
		return values[:limit]
	}
	return values
}
