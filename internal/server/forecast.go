package server

import (
	"net/http"
	"time"

	"github.com/xthestreams/current-rms-watcher/internal/forecast"
	"github.com/xthestreams/current-rms-watcher/internal/model"
	"github.com/xthestreams/current-rms-watcher/internal/store"
)

const defaultWindowDays = 90

// shortWindowDays is the span at or below which the time series defaults to
// weekly buckets instead of monthly ones.
const shortWindowDays = 89

func parseDate(v string) (time.Time, error) {
	return time.Parse("2006-01-02", v)
}

// window is the inclusive StartsAt date range a forecast view covers.
type window struct {
	from time.Time
	to   time.Time
}

func (wn window) spanDays() int {
	return int(wn.to.Sub(wn.from).Hours() / 24)
}

// parseWindow reads from/to query params (YYYY-MM-DD). Absent params
// default to a window starting today and spanning 90 days.
func (s *Server) parseWindow(r *http.Request) (window, string) {
	now := s.now().UTC()
	wn := window{
		from: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
	}
	wn.to = wn.from.AddDate(0, 0, defaultWindowDays)

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return window{}, "from must be YYYY-MM-DD"
		}
		wn.from = t
		wn.to = t.AddDate(0, 0, defaultWindowDays)
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return window{}, "to must be YYYY-MM-DD"
		}
		// End of day so the upper bound is inclusive.
		wn.to = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if wn.to.Before(wn.from) {
		return window{}, "to must not precede from"
	}
	return wn, ""
}

// loadEnriched fetches opportunities in the window, joins forecast
// metadata, and computes derived fields.
func (s *Server) loadEnriched(r *http.Request, wn window) ([]model.EnrichedOpportunity, error) {
	ctx := r.Context()

	filter := store.OpportunityFilter{
		From:  &wn.from,
		To:    &wn.to,
		State: r.URL.Query().Get("state"),
		Owner: r.URL.Query().Get("owner"),
	}
	opps, err := s.store.ListOpportunities(ctx, filter)
	if err != nil {
		return nil, err
	}
	metas, err := s.store.ListForecastMetadata(ctx)
	if err != nil {
		return nil, err
	}
	return forecast.EnrichAll(opps, metas), nil
}

func (s *Server) handleForecastSummary(w http.ResponseWriter, r *http.Request) {
	wn, msg := s.parseWindow(r)
	if msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	enriched, err := s.loadEnriched(r, wn)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, forecast.CalculateSummary(enriched))
}

func (s *Server) handleForecastByOwner(w http.ResponseWriter, r *http.Request) {
	s.handleGrouped(w, r, forecast.ByOwner)
}

func (s *Server) handleForecastByCustomer(w http.ResponseWriter, r *http.Request) {
	s.handleGrouped(w, r, forecast.ByCustomer)
}

func (s *Server) handleGrouped(w http.ResponseWriter, r *http.Request, group func([]model.EnrichedOpportunity) []forecast.GroupAggregate) {
	wn, msg := s.parseWindow(r)
	if msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	enriched, err := s.loadEnriched(r, wn)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"groups": group(enriched)})
}

func (s *Server) handleForecastByBand(w http.ResponseWriter, r *http.Request) {
	wn, msg := s.parseWindow(r)
	if msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	enriched, err := s.loadEnriched(r, wn)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"bands": forecast.ByProbabilityBand(enriched)})
}

// handleForecastTimeSeries buckets by ISO week when the window spans 89
// days or fewer, by month otherwise. A granularity query param of "week"
// or "month" overrides the heuristic.
func (s *Server) handleForecastTimeSeries(w http.ResponseWriter, r *http.Request) {
	wn, msg := s.parseWindow(r)
	if msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	byWeek := wn.spanDays() <= shortWindowDays
	switch r.URL.Query().Get("granularity") {
	case "":
	case "week":
		byWeek = true
	case "month":
		byWeek = false
	default:
		respondError(w, http.StatusBadRequest, "granularity must be week or month")
		return
	}

	enriched, err := s.loadEnriched(r, wn)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	granularity := "month"
	if byWeek {
		granularity = "week"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"granularity": granularity,
		"periods":     forecast.TimeSeries(enriched, byWeek),
	})
}
