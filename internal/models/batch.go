package models

// TrendDirection classifies how a key's frequency moves across a batch window.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// TrendDimension names the axis a trend was computed over.
type TrendDimension string

const (
	TrendByCategory  TrendDimension = "category"
	TrendByComponent TrendDimension = "component"
	TrendByPattern   TrendDimension = "pattern"
)

// TrendRecord reports the movement of one key along one dimension.
type TrendRecord struct {
	Key       string
	Dimension TrendDimension
	Trend     TrendDirection
	Strength  float64
}

// PatternCount tallies occurrences of a pattern across a batch.
type PatternCount struct {
	PatternID string
	Count     int
}

// BatchSummary condenses a batch run. Truncated is set when a deadline cut the
// trend and global-correlation phases short; Notes explains what was skipped.
type BatchSummary struct {
	TotalErrors    int
	CategoryCounts map[Category]int
	TopPatterns    []PatternCount
	Truncated      bool
	Notes          []string
}

// BatchAnalysisResult bundles per-entry analyses with batch-level findings.
// Analyses preserves the input order of the submitted entries.
type BatchAnalysisResult struct {
	Analyses           []ErrorAnalysisResult
	Trends             []TrendRecord
	GlobalCorrelations []CorrelationRecord
	Summary            BatchSummary
}
