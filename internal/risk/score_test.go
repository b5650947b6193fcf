package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xthestreams/current-rms-watcher/internal/model"
)

func testFactors() []model.RiskFactor {
	return []model.RiskFactor{
		{ID: "a", Label: "A", Weight: 1.2},
		{ID: "b", Label: "B", Weight: 1.3},
		{ID: "c", Label: "C", Weight: 1.0},
	}
}

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		factors []model.RiskFactor
		scores  map[string]int
		want    float64
	}{
		{
			name:    "empty scores yield zero",
			factors: testFactors(),
			scores:  map[string]int{},
			want:    0,
		},
		{
			name:    "nil scores yield zero",
			factors: testFactors(),
			scores:  nil,
			want:    0,
		},
		{
			name:    "single factor equals its score",
			factors: testFactors(),
			scores:  map[string]int{"a": 3},
			want:    3,
		},
		{
			name:    "same value everywhere equals that value",
			factors: testFactors(),
			scores:  map[string]int{"a": 4, "b": 4, "c": 4},
			want:    4,
		},
		{
			name:    "weighted partial mean rounds to 2dp",
			factors: testFactors(),
			// (1*1.2 + 5*1.3) / (1.2 + 1.3) = 7.7 / 2.5 = 3.08
			scores: map[string]int{"a": 1, "b": 5},
			want:   3.08,
		},
		{
			name:    "unknown factor ids are ignored",
			factors: testFactors(),
			scores:  map[string]int{"a": 2, "ghost": 5},
			want:    2,
		},
		{
			name:    "no factors yields zero",
			factors: nil,
			scores:  map[string]int{"a": 5},
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, Score(tt.factors, tt.scores), 1e-9)
		})
	}
}

func TestScoreDefaultCatalogueFull(t *testing.T) {
	t.Parallel()

	factors := DefaultFactors()
	scores := make(map[string]int, len(factors))
	for _, f := range factors {
		scores[f.ID] = 2
	}
	assert.InDelta(t, 2, Score(factors, scores), 1e-9)
}

func TestLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  model.RiskLevel
	}{
		{0, model.RiskLevelNone},
		{0.01, model.RiskLevelLow},
		{2.0, model.RiskLevelLow},
		{2.01, model.RiskLevelMedium},
		{3.0, model.RiskLevelMedium},
		{3.08, model.RiskLevelHigh},
		{4.0, model.RiskLevelHigh},
		{4.01, model.RiskLevelCritical},
		{5.0, model.RiskLevelCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.score), "score %.2f", tt.score)
	}
}

func TestApprovalWithThresholds(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()

	level, tier := ApprovalWithThresholds(0, th)
	assert.Equal(t, model.RiskLevelNone, level)
	assert.Empty(t, tier.ApproverName)

	level, tier = ApprovalWithThresholds(2.0, th)
	assert.Equal(t, model.RiskLevelLow, level)
	assert.Equal(t, "Account Manager", tier.ApproverName)

	level, tier = ApprovalWithThresholds(3.08, th)
	assert.Equal(t, model.RiskLevelHigh, level)
	assert.Equal(t, "Operations Director", tier.ApproverName)

	level, tier = ApprovalWithThresholds(4.5, th)
	assert.Equal(t, model.RiskLevelCritical, level)
	assert.Equal(t, "Managing Director", tier.ApproverName)
}

func TestApprovalWithCustomThresholds(t *testing.T) {
	t.Parallel()

	th := model.ApprovalThresholds{
		Low:      model.ApprovalTier{Level: model.RiskLevelLow, MaxScore: 1.5, ApproverName: "Rep"},
		Medium:   model.ApprovalTier{Level: model.RiskLevelMedium, MaxScore: 2.5, ApproverName: "Lead"},
		High:     model.ApprovalTier{Level: model.RiskLevelHigh, MaxScore: 3.5, ApproverName: "Director"},
		Critical: model.ApprovalTier{Level: model.RiskLevelCritical, MaxScore: 5, ApproverName: "MD"},
	}

	level, tier := ApprovalWithThresholds(2.0, th)
	assert.Equal(t, model.RiskLevelMedium, level)
	assert.Equal(t, "Lead", tier.ApproverName)
}

func TestValidateScores(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidateScores(nil))
	assert.True(t, ValidateScores(map[string]int{}))
	assert.True(t, ValidateScores(map[string]int{"a": 1, "b": 5}))
	assert.False(t, ValidateScores(map[string]int{"a": 0}))
	assert.False(t, ValidateScores(map[string]int{"a": 6}))
	assert.False(t, ValidateScores(map[string]int{"a": 3, "b": -1}))
}
