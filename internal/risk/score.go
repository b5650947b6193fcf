// Package risk computes weighted risk scores for opportunities from
// human-entered factor assessments, maps scores to discrete risk levels,
// and resolves the approval tier a score requires. Scoring is pure; the
// factor catalogue and thresholds come from a cached settings loader that
// degrades to built-in defaults when settings storage is unreachable.
package risk

import (
	"math"

	"github.com/xthestreams/current-rms-watcher/internal/model"
)

// Score computes the weighted mean over only the factors present in scores:
// sum(score*weight) / sum(weight). Unscored factors contribute neither
// numerator nor denominator, so a partially assessed opportunity scores as
// the mean of what has been assessed rather than being pulled down by
// missing entries. Factor IDs not in the catalogue are ignored. Returns 0
// when nothing is scored. Rounded to 2 decimal places.
func Score(factors []model.RiskFactor, scores map[string]int) float64 {
	var weightedSum, weightSum float64
	for _, f := range factors {
		v, ok := scores[f.ID]
		if !ok {
			continue
		}
		weightedSum += float64(v) * f.Weight
		weightSum += f.Weight
	}
	if weightSum == 0 {
		return 0
	}
	return math.Round(weightedSum/weightSum*100) / 100
}

// Level maps a score to its risk band using the default boundaries. Bands
// are inclusive on their upper edge; a score of exactly 0 means unscored.
func Level(score float64) model.RiskLevel {
	switch {
	case score == 0:
		return model.RiskLevelNone
	case score <= 2.0:
		return model.RiskLevelLow
	case score <= 3.0:
		return model.RiskLevelMedium
	case score <= 4.0:
		return model.RiskLevelHigh
	default:
		return model.RiskLevelCritical
	}
}

// ApprovalLevel returns the display name of the approver required for the
// score under the default thresholds.
func ApprovalLevel(score float64) string {
	_, tier := ApprovalWithThresholds(score, DefaultThresholds())
	return tier.ApproverName
}

// ApprovalWithThresholds applies the same upper-inclusive banding as Level
// but driven by the configured per-tier score ceilings, returning both the
// computed level and the full approver record for that tier. A score of 0
// yields the unscored level and an empty tier.
func ApprovalWithThresholds(score float64, t model.ApprovalThresholds) (model.RiskLevel, model.ApprovalTier) {
	switch {
	case score == 0:
		return model.RiskLevelNone, model.ApprovalTier{}
	case score <= t.Low.MaxScore:
		return model.RiskLevelLow, t.Low
	case score <= t.Medium.MaxScore:
		return model.RiskLevelMedium, t.Medium
	case score <= t.High.MaxScore:
		return model.RiskLevelHigh, t.High
	default:
		return model.RiskLevelCritical, t.Critical
	}
}

// ValidateScores reports whether every present score is in [1,5]. Any value
// outside the scale invalidates the whole assessment, not just that factor.
// An empty map is valid (nothing assessed yet).
func ValidateScores(scores map[string]int) bool {
	for _, v := range scores {
		if v < 1 || v > 5 {
			return false
		}
	}
	return true
}
