package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xthestreams/current-rms-watcher/internal/forecast"
	"github.com/xthestreams/current-rms-watcher/internal/model"
	"github.com/xthestreams/current-rms-watcher/internal/store"
)

func opportunityID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		respondError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// handleListOpportunities returns the enriched mirror. Unlike the aggregate
// views there is no default window; without from/to the full mirror pages
// through limit/offset.
func (s *Server) handleListOpportunities(w http.ResponseWriter, r *http.Request) {
	filter := store.OpportunityFilter{
		State: r.URL.Query().Get("state"),
		Owner: r.URL.Query().Get("owner"),
	}
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &filter.Limit}, {"offset", &filter.Offset}} {
		if v := q.Get(p.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				respondError(w, http.StatusBadRequest, p.name+" must be a non-negative integer")
				return
			}
			*p.dst = n
		}
	}
	if v := q.Get("from"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
		filter.To = &t
	}

	opps, err := s.store.ListOpportunities(r.Context(), filter)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	metas, err := s.store.ListForecastMetadata(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"opportunities": forecast.EnrichAll(opps, metas),
	})
}

func (s *Server) handleGetOpportunity(w http.ResponseWriter, r *http.Request) {
	id, ok := opportunityID(w, r)
	if !ok {
		return
	}
	opp, err := s.store.GetOpportunity(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if opp == nil {
		respondError(w, http.StatusNotFound, "opportunity not found")
		return
	}
	meta, err := s.store.GetForecastMetadata(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, forecast.Enrich(*opp, meta))
}

func (s *Server) handleGetForecast(w http.ResponseWriter, r *http.Request) {
	id, ok := opportunityID(w, r)
	if !ok {
		return
	}
	meta, err := s.store.GetForecastMetadata(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if meta == nil {
		respondError(w, http.StatusNotFound, "no forecast metadata for opportunity")
		return
	}
	respondJSON(w, http.StatusOK, meta)
}

type forecastRequest struct {
	Probability     int      `json:"probability"`
	IsCommit        bool     `json:"is_commit"`
	RevenueOverride *float64 `json:"revenue_override"`
	ProfitOverride  *float64 `json:"profit_override"`
	IsExcluded      bool     `json:"is_excluded"`
	ExclusionReason string   `json:"exclusion_reason"`
	Notes           string   `json:"notes"`
	ReviewedBy      string   `json:"reviewed_by"`
}

// handlePutForecast creates or replaces the reviewer annotation on an
// opportunity and stamps the review time.
func (s *Server) handlePutForecast(w http.ResponseWriter, r *http.Request) {
	id, ok := opportunityID(w, r)
	if !ok {
		return
	}

	var req forecastRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		if err == io.EOF {
			respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	if req.Probability < 0 || req.Probability > 100 {
		respondError(w, http.StatusBadRequest, "probability must be between 0 and 100")
		return
	}
	if req.RevenueOverride != nil && *req.RevenueOverride < 0 {
		respondError(w, http.StatusBadRequest, "revenue_override must not be negative")
		return
	}

	opp, err := s.store.GetOpportunity(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if opp == nil {
		respondError(w, http.StatusNotFound, "opportunity not found")
		return
	}

	now := s.now().UTC()
	meta := model.ForecastMetadata{
		OpportunityID:   id,
		Probability:     req.Probability,
		IsCommit:        req.IsCommit,
		RevenueOverride: req.RevenueOverride,
		ProfitOverride:  req.ProfitOverride,
		IsExcluded:      req.IsExcluded,
		ExclusionReason: req.ExclusionReason,
		Notes:           req.Notes,
		LastReviewedAt:  &now,
		ReviewedBy:      req.ReviewedBy,
	}
	if err := s.store.UpsertForecastMetadata(r.Context(), meta); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, forecast.Enrich(*opp, &meta))
}

// handleDeleteForecast removes the annotation, returning the opportunity to
// the unreviewed pool.
func (s *Server) handleDeleteForecast(w http.ResponseWriter, r *http.Request) {
	id, ok := opportunityID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteForecastMetadata(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
