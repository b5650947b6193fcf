package server

import (
	"encoding/json"
	"io"
	"math"
	"net/http"

	"go.uber.org/zap"

	"github.com/xthestreams/current-rms-watcher/internal/model"
	"github.com/xthestreams/current-rms-watcher/internal/risk"
)

// riskAssessmentField is the Current RMS custom-field key the assessment
// blob round-trips through. The external system is the source of truth;
// this application never stores assessments locally.
const riskAssessmentField = "risk_assessment"

type riskResponse struct {
	OpportunityID int                   `json:"opportunity_id"`
	Assessment    *model.RiskAssessment `json:"assessment"`
	Score         float64               `json:"score"`
	Level         model.RiskLevel       `json:"level"`
	Approver      model.ApprovalTier    `json:"approver"`
}

// buildRiskResponse computes the derived score, level, and approval tier
// for an assessment under the current settings.
func (s *Server) buildRiskResponse(r *http.Request, id int, assessment *model.RiskAssessment) riskResponse {
	settings := s.settings.Get(r.Context())

	resp := riskResponse{OpportunityID: id, Assessment: assessment}
	if assessment != nil {
		resp.Score = risk.Score(settings.Factors, assessment.Scores)
	}
	resp.Level, resp.Approver = risk.ApprovalWithThresholds(resp.Score, settings.Thresholds)
	return resp
}

// handleGetRisk reads the assessment from the opportunity's custom fields
// in Current RMS and returns it with derived values. No assessment yet is a
// 200 with a nil assessment and an unscored level.
func (s *Server) handleGetRisk(w http.ResponseWriter, r *http.Request) {
	id, ok := opportunityID(w, r)
	if !ok {
		return
	}
	if s.client == nil {
		respondError(w, http.StatusServiceUnavailable, "Current RMS API is not configured")
		return
	}

	opp, err := s.client.GetOpportunity(r.Context(), id)
	if err != nil {
		zap.L().Error("fetch opportunity for risk read", zap.Int("opportunity_id", id), zap.Error(err))
		respondError(w, http.StatusBadGateway, "upstream API error")
		return
	}
	if opp == nil {
		respondError(w, http.StatusNotFound, "opportunity not found")
		return
	}

	var assessment *model.RiskAssessment
	if raw, exists := opp.CustomFields[riskAssessmentField]; exists && len(raw) > 0 {
		var a model.RiskAssessment
		if err := json.Unmarshal(raw, &a); err != nil {
			zap.L().Warn("stored risk assessment is malformed",
				zap.Int("opportunity_id", id), zap.Error(err))
		} else {
			assessment = &a
		}
	}

	respondJSON(w, http.StatusOK, s.buildRiskResponse(r, id, assessment))
}

type riskRequest struct {
	// Scores decode as float64 so fractional values produce a clear 400
	// instead of a generic unmarshal failure.
	Scores          map[string]float64   `json:"scores"`
	Reviewed        bool                 `json:"reviewed"`
	MitigationPlan  model.MitigationPlan `json:"mitigation_plan"`
	MitigationNotes string               `json:"mitigation_notes"`
}

// validateScores enforces the integral 1-5 range on every submitted score.
// One bad score rejects the whole submission; a partial write would leave
// the assessment internally inconsistent.
func validateScores(scores map[string]float64) (map[string]int, string) {
	out := make(map[string]int, len(scores))
	for id, v := range scores {
		if v != math.Trunc(v) {
			return nil, "score for " + id + " must be a whole number"
		}
		n := int(v)
		if n < 1 || n > 5 {
			return nil, "score for " + id + " must be between 1 and 5"
		}
		out[id] = n
	}
	return out, ""
}

// handlePutRisk validates the submitted assessment and writes it back to
// the opportunity's custom fields in Current RMS.
func (s *Server) handlePutRisk(w http.ResponseWriter, r *http.Request) {
	id, ok := opportunityID(w, r)
	if !ok {
		return
	}
	if s.client == nil {
		respondError(w, http.StatusServiceUnavailable, "Current RMS API is not configured")
		return
	}

	var req riskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		if err == io.EOF {
			respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	scores, msg := validateScores(req.Scores)
	if msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	switch req.MitigationPlan {
	case "", model.MitigationNone, model.MitigationPartial, model.MitigationComplete:
	default:
		respondError(w, http.StatusBadRequest, "mitigation_plan must be none, partial, or complete")
		return
	}

	settings := s.settings.Get(r.Context())
	known := make(map[string]bool, len(settings.Factors))
	for _, f := range settings.Factors {
		known[f.ID] = true
	}
	for factorID := range scores {
		if !known[factorID] {
			respondError(w, http.StatusBadRequest, "unknown risk factor "+factorID)
			return
		}
	}

	now := s.now().UTC()
	assessment := model.RiskAssessment{
		Scores:          scores,
		Reviewed:        req.Reviewed,
		MitigationPlan:  req.MitigationPlan,
		MitigationNotes: req.MitigationNotes,
		UpdatedAt:       &now,
	}

	blob, err := json.Marshal(assessment)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	err = s.client.UpdateCustomFields(r.Context(), id, map[string]any{
		riskAssessmentField: json.RawMessage(blob),
	})
	if err != nil {
		zap.L().Error("write risk assessment", zap.Int("opportunity_id", id), zap.Error(err))
		respondError(w, http.StatusBadGateway, "upstream API error")
		return
	}

	respondJSON(w, http.StatusOK, s.buildRiskResponse(r, id, &assessment))
}

// handleRiskSettings returns the effective factor catalogue, approval
// thresholds, and cache age.
func (s *Server) handleRiskSettings(w http.ResponseWriter, r *http.Request) {
	settings := s.settings.Get(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"factors":           settings.Factors,
		"thresholds":        settings.Thresholds,
		"cache_ttl_seconds": int(risk.DefaultTTL.Seconds()),
	})
}
