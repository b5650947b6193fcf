package risk

import (
	"github.com/rotisserie/eris"

	"github.com/xthestreams/current-rms-watcher/internal/model"
)

// scale builds the fixed five-point scale from low-risk to high-risk labels.
func scale(labels [5]string) []model.ScalePoint {
	points := make([]model.ScalePoint, 5)
	for i, l := range labels {
		points[i] = model.ScalePoint{Value: i + 1, Label: l}
	}
	return points
}

// DefaultFactors returns the built-in risk factor catalogue used when no
// catalogue has been stored, or when settings storage is unreachable.
func DefaultFactors() []model.RiskFactor {
	return []model.RiskFactor{
		{
			ID: "client_history", Label: "Client History", Weight: 1.2,
			Scale: scale([5]string{"Long-standing client", "Repeat client", "Known client", "New client", "New client, no references"}),
		},
		{
			ID: "technical_complexity", Label: "Technical Complexity", Weight: 1.5,
			Scale: scale([5]string{"Standard kit", "Mostly standard", "Some custom rigging", "Complex build", "First-of-a-kind build"}),
		},
		{
			ID: "crew_availability", Label: "Crew Availability", Weight: 1.0,
			Scale: scale([5]string{"Core crew free", "Core crew likely", "Partial freelance", "Mostly freelance", "No confirmed crew"}),
		},
		{
			ID: "equipment_availability", Label: "Equipment Availability", Weight: 1.3,
			Scale: scale([5]string{"All in stock", "Minor sub-rental", "Significant sub-rental", "Key items on sub-rental", "Critical items unsourced"}),
		},
		{
			ID: "venue_access", Label: "Venue Access", Weight: 0.8,
			Scale: scale([5]string{"Known venue, easy access", "Known venue", "New venue, surveyed", "New venue, unsurveyed", "Restricted or unknown access"}),
		},
		{
			ID: "weather_exposure", Label: "Weather Exposure", Weight: 1.0,
			Scale: scale([5]string{"Fully indoor", "Indoor with load-in exposure", "Covered outdoor", "Open-air with contingency", "Open-air, no contingency"}),
		},
		{
			ID: "payment_terms", Label: "Payment Terms", Weight: 1.2,
			Scale: scale([5]string{"Deposit received", "Deposit agreed", "Net 30", "Net 60+", "Terms unagreed"}),
		},
		{
			ID: "timeline_pressure", Label: "Timeline Pressure", Weight: 1.0,
			Scale: scale([5]string{"Ample lead time", "Comfortable", "Tight but workable", "Compressed", "Unrealistic lead time"}),
		},
	}
}

// DefaultThresholds returns the built-in approval tiers.
func DefaultThresholds() model.ApprovalThresholds {
	return model.ApprovalThresholds{
		Low:      model.ApprovalTier{Level: model.RiskLevelLow, MaxScore: 2.0, ApproverID: "account_manager", ApproverName: "Account Manager"},
		Medium:   model.ApprovalTier{Level: model.RiskLevelMedium, MaxScore: 3.0, ApproverID: "sales_manager", ApproverName: "Sales Manager"},
		High:     model.ApprovalTier{Level: model.RiskLevelHigh, MaxScore: 4.0, ApproverID: "operations_director", ApproverName: "Operations Director"},
		Critical: model.ApprovalTier{Level: model.RiskLevelCritical, MaxScore: 5.0, ApproverID: "managing_director", ApproverName: "Managing Director"},
	}
}

// ValidateThresholds rejects tier boundaries that are not strictly
// increasing low < medium < high. The critical ceiling is not checked; the
// critical tier catches everything above the high ceiling regardless.
func ValidateThresholds(t model.ApprovalThresholds) error {
	if t.Low.MaxScore <= 0 {
		return eris.New("risk: low tier ceiling must be positive")
	}
	if t.Medium.MaxScore <= t.Low.MaxScore {
		return eris.Errorf("risk: medium ceiling %.2f not above low %.2f", t.Medium.MaxScore, t.Low.MaxScore)
	}
	if t.High.MaxScore <= t.Medium.MaxScore {
		return eris.Errorf("risk: high ceiling %.2f not above medium %.2f", t.High.MaxScore, t.Medium.MaxScore)
	}
	return nil
}

// ValidateFactors rejects an empty catalogue or non-positive weights.
func ValidateFactors(factors []model.RiskFactor) error {
	if len(factors) == 0 {
		return eris.New("risk: factor catalogue is empty")
	}
	seen := make(map[string]bool, len(factors))
	for _, f := range factors {
		if f.ID == "" {
			return eris.New("risk: factor with empty id")
		}
		if seen[f.ID] {
			return eris.Errorf("risk: duplicate factor id %s", f.ID)
		}
		seen[f.ID] = true
		if f.Weight <= 0 {
			return eris.Errorf("risk: factor %s has non-positive weight", f.ID)
		}
	}
	return nil
}
