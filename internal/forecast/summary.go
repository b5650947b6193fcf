package forecast

import "github.com/xthestreams/current-rms-watcher/internal/model"

// Summary is the global pipeline rollup. Every input opportunity lands in
// exactly one of: excluded, unreviewed, or pipeline (where it is further
// split into commit or upside), so ExcludedCount + UnreviewedCount +
// CommitCount + UpsideCount always equals TotalCount.
type Summary struct {
	TotalCount int `json:"total_count"`

	PipelineCount   int     `json:"pipeline_count"`
	PipelineRevenue float64 `json:"pipeline_revenue"`
	PipelineProfit  float64 `json:"pipeline_profit"`
	WeightedRevenue float64 `json:"weighted_revenue"`
	WeightedProfit  float64 `json:"weighted_profit"`

	CommitCount   int     `json:"commit_count"`
	CommitRevenue float64 `json:"commit_revenue"`
	CommitProfit  float64 `json:"commit_profit"`

	UpsideCount   int     `json:"upside_count"`
	UpsideRevenue float64 `json:"upside_revenue"`
	UpsideProfit  float64 `json:"upside_profit"`

	UnreviewedCount   int     `json:"unreviewed_count"`
	UnreviewedRevenue float64 `json:"unreviewed_revenue"`

	ExcludedCount   int     `json:"excluded_count"`
	ExcludedRevenue float64 `json:"excluded_revenue"`
}

// CalculateSummary partitions enriched opportunities into disjoint buckets
// in priority order: excluded first, then unreviewed, then pipeline.
// Exclusion wins even when the metadata also carries a commit flag.
// Unreviewed revenue is the raw charge total (there is no probability to
// weight by); pipeline uses effective values and commit/upside use weighted
// values.
func CalculateSummary(enriched []model.EnrichedOpportunity) Summary {
	var s Summary
	s.TotalCount = len(enriched)

	for i := range enriched {
		e := &enriched[i]

		if e.Excluded() {
			s.ExcludedCount++
			s.ExcludedRevenue += e.EffectiveRevenue
			continue
		}

		if !e.Reviewed() {
			s.UnreviewedCount++
			s.UnreviewedRevenue += e.ChargeTotal.Float()
			continue
		}

		s.PipelineCount++
		s.PipelineRevenue += e.EffectiveRevenue
		s.PipelineProfit += e.EffectiveProfit
		s.WeightedRevenue += e.WeightedRevenue
		s.WeightedProfit += e.WeightedProfit

		if e.Forecast.IsCommit {
			s.CommitCount++
			s.CommitRevenue += e.WeightedRevenue
			s.CommitProfit += e.WeightedProfit
		} else {
			s.UpsideCount++
			s.UpsideRevenue += e.WeightedRevenue
			s.UpsideProfit += e.WeightedProfit
		}
	}

	return s
}
