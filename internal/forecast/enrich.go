// Package forecast computes pipeline forecast aggregates from mirrored
// opportunities: per-opportunity derived values, global summaries, owner and
// customer breakdowns, probability-band distribution, and time series.
// Everything here is pure arithmetic over already-fetched rows; no I/O.
package forecast

import (
	"github.com/xthestreams/current-rms-watcher/internal/model"
)

// Enrich joins an opportunity with its optional forecast metadata and
// computes the derived financial fields. With nil metadata ("unreviewed")
// the effective values fall back to the base values and the weighted values
// are zero, since there is no probability to weight by.
func Enrich(opp model.Opportunity, meta *model.ForecastMetadata) model.EnrichedOpportunity {
	e := model.EnrichedOpportunity{
		Opportunity: opp,
		Forecast:    meta,
	}

	charge := opp.ChargeTotal.Float()
	e.BaseProfit = charge - opp.ProvisionalCostTotal.Float()
	if charge != 0 {
		e.BaseMargin = e.BaseProfit / charge
	}

	e.EffectiveRevenue = charge
	e.EffectiveProfit = e.BaseProfit

	var probability float64
	if meta != nil {
		probability = float64(meta.Probability)
		if meta.RevenueOverride != nil {
			e.EffectiveRevenue = *meta.RevenueOverride
		}
		if meta.ProfitOverride != nil {
			e.EffectiveProfit = *meta.ProfitOverride
		}
	}

	e.WeightedRevenue = e.EffectiveRevenue * probability / 100
	e.WeightedProfit = e.EffectiveProfit * probability / 100

	return e
}

// EnrichAll joins opportunities with their metadata by opportunity ID.
// Opportunities without a metadata entry are enriched as unreviewed.
func EnrichAll(opps []model.Opportunity, metas []model.ForecastMetadata) []model.EnrichedOpportunity {
	byID := make(map[int]*model.ForecastMetadata, len(metas))
	for i := range metas {
		byID[metas[i].OpportunityID] = &metas[i]
	}

	enriched := make([]model.EnrichedOpportunity, len(opps))
	for i, opp := range opps {
		enriched[i] = Enrich(opp, byID[opp.ID])
	}
	return enriched
}
