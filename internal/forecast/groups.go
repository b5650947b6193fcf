package forecast

import (
	"sort"

	"github.com/xthestreams/current-rms-watcher/internal/model"
)

const (
	unassignedOwner = "Unassigned"
	unknownCustomer = "Unknown Customer"
)

// GroupAggregate is the rollup for a single owner or customer.
type GroupAggregate struct {
	Name             string  `json:"name"`
	OpportunityCount int     `json:"opportunity_count"`
	PipelineRevenue  float64 `json:"pipeline_revenue"`
	PipelineProfit   float64 `json:"pipeline_profit"`
	WeightedRevenue  float64 `json:"weighted_revenue"`
	WeightedProfit   float64 `json:"weighted_profit"`
	CommitRevenue    float64 `json:"commit_revenue"`
	UpsideRevenue    float64 `json:"upside_revenue"`
	AvgProbability   float64 `json:"avg_probability"`
}

// ByOwner groups non-excluded opportunities by owner name and returns the
// aggregates sorted descending by weighted revenue. The ordering is a UI
// contract: top performers first. Excluded opportunities are omitted
// entirely, not even counted (the owner and customer views reflect live
// pipeline only; excluded totals appear in the global summary alone).
func ByOwner(enriched []model.EnrichedOpportunity) []GroupAggregate {
	return groupBy(enriched, func(e *model.EnrichedOpportunity) string {
		if e.OwnerName == "" {
			return unassignedOwner
		}
		return e.OwnerName
	})
}

// ByCustomer groups non-excluded opportunities by organisation name, sorted
// descending by weighted revenue. Same exclusion asymmetry as ByOwner.
func ByCustomer(enriched []model.EnrichedOpportunity) []GroupAggregate {
	return groupBy(enriched, func(e *model.EnrichedOpportunity) string {
		if e.OrganisationName == "" {
			return unknownCustomer
		}
		return e.OrganisationName
	})
}

func groupBy(enriched []model.EnrichedOpportunity, key func(*model.EnrichedOpportunity) string) []GroupAggregate {
	groups := make(map[string]*GroupAggregate)
	probabilitySums := make(map[string]float64)

	for i := range enriched {
		e := &enriched[i]
		if e.Excluded() {
			continue
		}

		name := key(e)
		g, ok := groups[name]
		if !ok {
			g = &GroupAggregate{Name: name}
			groups[name] = g
		}

		g.OpportunityCount++
		g.PipelineRevenue += e.EffectiveRevenue
		g.PipelineProfit += e.EffectiveProfit
		g.WeightedRevenue += e.WeightedRevenue
		g.WeightedProfit += e.WeightedProfit

		if e.Reviewed() {
			probabilitySums[name] += float64(e.Forecast.Probability)
			if e.Forecast.IsCommit {
				g.CommitRevenue += e.WeightedRevenue
			} else {
				g.UpsideRevenue += e.WeightedRevenue
			}
		}
	}

	out := make([]GroupAggregate, 0, len(groups))
	for name, g := range groups {
		g.AvgProbability = probabilitySums[name] / float64(g.OpportunityCount)
		out = append(out, *g)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].WeightedRevenue != out[j].WeightedRevenue {
			return out[i].WeightedRevenue > out[j].WeightedRevenue
		}
		return out[i].Name < out[j].Name
	})
	return out
}
