package engine

import (
	"github.com/faultstack/faultline/internal/models"
)

// AssessImpact estimates user, business and technical blast radius for an
// entry under its effective category. The assessment is deterministic: the
// same entry and category always produce the same verdict. OverallSeverity
// never drops below the declared severity but may rise when the impact
// profile implies more than the reporter declared.
func AssessImpact(entry models.ErrorEntry, effective models.Category) models.ImpactAssessment {
	sev := entry.Severity
	disruption := disruptionFor(effective, sev)
	revenue := revenueImpact(effective, sev)
	reputation := reputationRisk(effective, sev)

	return models.ImpactAssessment{
		User: models.UserImpact{
			AffectedUsers: estimateAffectedUsers(effective, sev),
			Disruption:    disruption,
		},
		Business: models.BusinessImpact{
			RevenueImpact:  revenue,
			ReputationRisk: reputation,
		},
		Technical: models.TechnicalImpact{
			PerformanceImpact: performanceImpact(effective, sev),
		},
		OverallSeverity: models.MaxSeverity(sev, impliedSeverity(disruption, revenue, reputation)),
	}
}

// estimateAffectedUsers maps severity onto a population tier, scaled by how
// widely failures in the category tend to spread.
func estimateAffectedUsers(cat models.Category, sev models.Severity) int {
	base := 0
	switch sev {
	case models.SeverityLow:
		base = 25
	case models.SeverityMedium:
		base = 150
	case models.SeverityHigh:
		base = 1200
	case models.SeverityCritical:
		base = 8000
	}
	return int(float64(base) * reachFor(cat))
}

func reachFor(cat models.Category) float64 {
	switch cat {
	case models.CategoryInfrastructure:
		return 1.5
	case models.CategoryIntegration:
		return 1.25
	case models.CategoryPerformance:
		return 1.2
	case models.CategorySecurity:
		return 1.0
	case models.CategoryBusinessLogic:
		return 0.9
	case models.CategoryFunctional:
		return 0.8
	case models.CategoryDataQuality:
		return 0.6
	case models.CategoryUsability:
		return 0.5
	}
	return 1.0
}

func disruptionFor(cat models.Category, sev models.Severity) models.Disruption {
	rank := sev.Rank()
	switch cat {
	case models.CategoryInfrastructure, models.CategoryIntegration:
		switch {
		case rank >= 2:
			return models.DisruptionBlocking
		case rank >= 1:
			return models.DisruptionPartial
		}
	case models.CategoryPerformance, models.CategorySecurity,
		models.CategoryFunctional, models.CategoryBusinessLogic:
		switch {
		case rank >= 3:
			return models.DisruptionBlocking
		case rank >= 1:
			return models.DisruptionPartial
		}
	case models.CategoryDataQuality, models.CategoryUsability:
		// Bad data and rough edges degrade the experience without stopping it.
		if rank >= 2 {
			return models.DisruptionPartial
		}
	}
	return models.DisruptionNone
}

func revenueImpact(cat models.Category, sev models.Severity) float64 {
	base := 0.0
	switch sev {
	case models.SeverityLow:
		base = 0.05
	case models.SeverityMedium:
		base = 0.2
	case models.SeverityHigh:
		base = 0.5
	case models.SeverityCritical:
		base = 0.8
	}
	return clamp(base*revenueWeight(cat), 0, 1)
}

func revenueWeight(cat models.Category) float64 {
	switch cat {
	case models.CategoryBusinessLogic:
		return 1.4
	case models.CategoryInfrastructure:
		return 1.2
	case models.CategoryIntegration:
		return 1.1
	case models.CategorySecurity:
		return 1.0
	case models.CategoryPerformance:
		return 0.9
	case models.CategoryFunctional:
		return 0.8
	case models.CategoryDataQuality:
		return 0.7
	case models.CategoryUsability:
		return 0.4
	}
	return 1.0
}

func reputationRisk(cat models.Category, sev models.Severity) models.RiskLevel {
	rank := sev.Rank()
	switch cat {
	case models.CategorySecurity:
		// Security failures are reputational incidents at any visible severity.
		if rank >= 1 {
			return models.RiskHigh
		}
		return models.RiskMedium
	case models.CategoryInfrastructure, models.CategoryPerformance:
		switch {
		case rank >= 3:
			return models.RiskHigh
		case rank >= 2:
			return models.RiskMedium
		}
	case models.CategoryDataQuality:
		if rank >= 2 {
			return models.RiskMedium
		}
	default:
		if rank >= 3 {
			return models.RiskMedium
		}
	}
	return models.RiskLow
}

func performanceImpact(cat models.Category, sev models.Severity) float64 {
	base := 0.0
	switch sev {
	case models.SeverityLow:
		base = 0.05
	case models.SeverityMedium:
		base = 0.2
	case models.SeverityHigh:
		base = 0.5
	case models.SeverityCritical:
		base = 0.85
	}
	return clamp(base*performanceWeight(cat), 0, 1)
}

func performanceWeight(cat models.Category) float64 {
	switch cat {
	case models.CategoryPerformance:
		return 1.3
	case models.CategoryInfrastructure:
		return 1.2
	case models.CategoryIntegration:
		return 1.0
	case models.CategoryFunctional, models.CategoryBusinessLogic:
		return 0.6
	case models.CategorySecurity:
		return 0.5
	case models.CategoryDataQuality:
		return 0.4
	case models.CategoryUsability:
		return 0.3
	}
	return 1.0
}

// impliedSeverity reads the assessed impact back into a severity so a
// modestly declared entry with an outsized blast radius still escalates.
func impliedSeverity(d models.Disruption, revenue float64, reputation models.RiskLevel) models.Severity {
	switch {
	case d == models.DisruptionBlocking && (revenue >= 0.7 || reputation == models.RiskHigh):
		return models.SeverityCritical
	case d == models.DisruptionBlocking:
		return models.SeverityHigh
	case reputation == models.RiskHigh || revenue >= 0.7:
		return models.SeverityHigh
	case d == models.DisruptionPartial:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
