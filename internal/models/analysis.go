package models

import "time"

// PatternMatch records a library pattern that matched an entry.
type PatternMatch struct {
	PatternID  string
	Category   Category
	Confidence float64
}

// CorrelationKind enumerates relationship types between errors.
type CorrelationKind string

const (
	CorrelationComponent CorrelationKind = "component_related"
	CorrelationCategory  CorrelationKind = "category_related"
	CorrelationTemporal  CorrelationKind = "temporal_cluster"
)

// CorrelationRecord links an entry to previously observed errors. RelatedErrorIDs
// never includes the entry under analysis itself.
type CorrelationRecord struct {
	Kind            CorrelationKind
	RelatedErrorIDs []string
	Strength        float64
}

// PossibleCause is a ranked root-cause hypothesis.
type PossibleCause struct {
	Description string
	Probability float64
	Evidence    []string
}

// RecommendedAction pairs a remediation step with its urgency; 1 is most urgent.
type RecommendedAction struct {
	Description string
	Priority    int
}

// RootCauseAnalysis aggregates cause hypotheses and remediation guidance.
type RootCauseAnalysis struct {
	PossibleCauses     []PossibleCause
	RecommendedActions []RecommendedAction
	Confidence         float64
}

// Disruption describes how strongly users are blocked.
type Disruption string

const (
	DisruptionNone     Disruption = "none"
	DisruptionPartial  Disruption = "partial"
	DisruptionBlocking Disruption = "blocking"
)

// RiskLevel grades reputation exposure.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// UserImpact estimates end-user consequences.
type UserImpact struct {
	AffectedUsers int
	Disruption    Disruption
}

// BusinessImpact estimates commercial consequences.
type BusinessImpact struct {
	RevenueImpact  float64
	ReputationRisk RiskLevel
}

// TechnicalImpact estimates system-level consequences.
type TechnicalImpact struct {
	PerformanceImpact float64
}

// ImpactAssessment combines the user, business and technical dimensions.
// OverallSeverity is never below the entry's declared severity.
type ImpactAssessment struct {
	User            UserImpact
	Business        BusinessImpact
	Technical       TechnicalImpact
	OverallSeverity Severity
}

// ErrorAnalysisResult is the full verdict for a single entry. Note carries an
// explanation when the result was degraded by an isolated analysis failure.
type ErrorAnalysisResult struct {
	Entry             ErrorEntry
	EffectiveCategory Category
	Patterns          []PatternMatch
	Correlations      []CorrelationRecord
	RootCause         RootCauseAnalysis
	Impact            ImpactAssessment
	Confidence        float64
	Note              string
	AnalyzedAt        time.Time
}
