package model

import "time"

// RiskLevel is the discrete risk band a weighted score maps into.
// The empty string means "unscored" (no factor has been assessed yet).
type RiskLevel string

const (
	RiskLevelNone     RiskLevel = ""
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// ScalePoint is one point on a risk factor's fixed 1-5 ordinal scale.
type ScalePoint struct {
	Value       int    `json:"value" yaml:"value"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// RiskFactor is one scored dimension contributing to the weighted risk score.
type RiskFactor struct {
	ID     string       `json:"id" yaml:"id"`
	Label  string       `json:"label" yaml:"label"`
	Weight float64      `json:"weight" yaml:"weight"`
	Scale  []ScalePoint `json:"scale,omitempty" yaml:"scale,omitempty"`
}

// MitigationPlan is the tri-state mitigation status on an assessment.
type MitigationPlan string

const (
	MitigationNone     MitigationPlan = "none"
	MitigationPartial  MitigationPlan = "partial"
	MitigationComplete MitigationPlan = "complete"
)

// RiskAssessment is the per-opportunity human input: a sparse mapping from
// factor ID to score. Only factors present in Scores contribute; "unscored"
// is key absence, never a zero value. The blob round-trips through the
// Current RMS custom-field store rather than this application's database.
type RiskAssessment struct {
	Scores          map[string]int `json:"scores"`
	Reviewed        bool           `json:"reviewed"`
	MitigationPlan  MitigationPlan `json:"mitigation_plan,omitempty"`
	MitigationNotes string         `json:"mitigation_notes,omitempty"`
	UpdatedAt       *time.Time     `json:"updated_at,omitempty"`
}

// ApprovalTier binds a risk-score ceiling to the approver it requires.
type ApprovalTier struct {
	Level        RiskLevel `json:"level" yaml:"level"`
	MaxScore     float64   `json:"max_score" yaml:"max_score"`
	ApproverID   string    `json:"approver_id" yaml:"approver_id"`
	ApproverName string    `json:"approver_name" yaml:"approver_name"`
}

// ApprovalThresholds holds the four approval tiers ordered low to critical.
// Boundaries must be strictly increasing; the critical tier's MaxScore is
// ignored (it catches everything above the high ceiling).
type ApprovalThresholds struct {
	Low      ApprovalTier `json:"low" yaml:"low"`
	Medium   ApprovalTier `json:"medium" yaml:"medium"`
	High     ApprovalTier `json:"high" yaml:"high"`
	Critical ApprovalTier `json:"critical" yaml:"critical"`
}
