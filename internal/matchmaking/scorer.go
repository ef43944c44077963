// Package matchmaking pairs queued candidates into debates.
package matchmaking

import (
	"math"

	"github.com/mroshb/debate_hub/internal/models"
)

// Criterion weights
const (
	weightDebateType = 1.0
	weightMode       = 1.0
	weightLanguage   = 1.0
	weightElo        = 1.0

	eloSpread = 400.0
)

// Score returns the compatibility of two candidates in [0,1], rounded to 3 decimals.
// Language and ELO only count when both candidates provide them.
func Score(a, b *models.MatchCandidate) float64 {
	var score, total float64

	total += weightDebateType
	if a.DebateType == b.DebateType {
		score += weightDebateType
	}

	total += weightMode
	if a.Mode == b.Mode {
		score += weightMode
	}

	if a.Language != "" && b.Language != "" {
		total += weightLanguage
		if a.Language == b.Language {
			score += weightLanguage
		}
	}

	if a.EloRating != nil && b.EloRating != nil {
		total += weightElo
		proximity := 1 - math.Abs(*a.EloRating-*b.EloRating)/eloSpread
		score += math.Max(0, proximity) * weightElo
	}

	if total == 0 {
		return 0
	}
	return math.Round(score/total*1000) / 1000
}
