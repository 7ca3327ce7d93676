package models

import "time"

// ErrorEntry is a single error report submitted for analysis.
type ErrorEntry struct {
	ID          string
	Timestamp   time.Time
	Severity    Severity
	Category    Category
	Component   string
	Description string
	StackTrace  string
	Context     map[string]string
	AutoFixable bool
}

// Severity captures declared impact levels.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from low (0) to critical (3). Unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// Valid reports whether the severity is one of the known levels.
func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// MaxSeverity returns the higher-ranked of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseSeverity maps a string onto a known severity, defaulting to medium.
func ParseSeverity(value string) Severity {
	s := Severity(value)
	if s.Valid() {
		return s
	}
	return SeverityMedium
}

// Category enumerates the closed set of error classifications.
type Category string

const (
	CategoryFunctional     Category = "functional"
	CategoryPerformance    Category = "performance"
	CategorySecurity       Category = "security"
	CategoryUsability      Category = "usability"
	CategoryIntegration    Category = "integration"
	CategoryInfrastructure Category = "infrastructure"
	CategoryBusinessLogic  Category = "business_logic"
	CategoryDataQuality    Category = "data_quality"
)

// Categories returns every known category in declaration order.
func Categories() []Category {
	return []Category{
		CategoryFunctional,
		CategoryPerformance,
		CategorySecurity,
		CategoryUsability,
		CategoryIntegration,
		CategoryInfrastructure,
		CategoryBusinessLogic,
		CategoryDataQuality,
	}
}

// Valid reports whether the category is one of the known set.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory maps a string onto a known category, defaulting to functional.
func ParseCategory(value string) Category {
	c := Category(value)
	if c.Valid() {
		return c
	}
	return CategoryFunctional
}
