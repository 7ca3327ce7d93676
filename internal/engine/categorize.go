package engine

import (
	"github.com/faultstack/faultline/internal/models"
)

const voteEpsilon = 1e-9

// DeriveCategory resolves the category an entry is analyzed under. Each
// matched pattern votes for its category with its confidence; the declared
// category stands when nothing matched. Ties go to the category of the
// strongest single match, then to declaration order.
func DeriveCategory(entry models.ErrorEntry, matches []models.PatternMatch) (models.Category, map[models.Category]float64) {
	if len(matches) == 0 {
		return entry.Category, nil
	}

	votes := make(map[models.Category]float64, 4)
	for _, m := range matches {
		votes[m.Category] += m.Confidence
	}

	best := matches[0].Category
	bestWeight := votes[best]
	for _, cat := range models.Categories() {
		weight, ok := votes[cat]
		if !ok || cat == best {
			continue
		}
		if weight > bestWeight+voteEpsilon {
			best = cat
			bestWeight = weight
		}
	}
	return best, votes
}
