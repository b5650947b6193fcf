package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xthestreams/current-rms-watcher/internal/model"
	"github.com/xthestreams/current-rms-watcher/pkg/currentrms"
)

func opp(id int, charge, cost float64) model.Opportunity {
	return model.Opportunity{
		ID:                   id,
		Subject:              "Test job",
		ChargeTotal:          currentrms.Money(charge),
		ProvisionalCostTotal: currentrms.Money(cost),
	}
}

func meta(id, probability int) *model.ForecastMetadata {
	return &model.ForecastMetadata{OpportunityID: id, Probability: probability}
}

func f64(v float64) *float64 { return &v }

func TestEnrichDerivedFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opp  model.Opportunity
		meta *model.ForecastMetadata

		wantBaseProfit float64
		wantBaseMargin float64
		wantEffRev     float64
		wantEffProfit  float64
		wantWRev       float64
		wantWProfit    float64
	}{
		{
			name:           "reviewed at 50 percent",
			opp:            opp(1, 10000, 6000),
			meta:           meta(1, 50),
			wantBaseProfit: 4000,
			wantBaseMargin: 0.4,
			wantEffRev:     10000,
			wantEffProfit:  4000,
			wantWRev:       5000,
			wantWProfit:    2000,
		},
		{
			name:           "unreviewed has zero weighted values",
			opp:            opp(2, 8000, 5000),
			wantBaseProfit: 3000,
			wantBaseMargin: 0.375,
			wantEffRev:     8000,
			wantEffProfit:  3000,
			wantWRev:       0,
			wantWProfit:    0,
		},
		{
			name: "revenue override replaces charge",
			opp:  opp(3, 10000, 6000),
			meta: &model.ForecastMetadata{
				OpportunityID:   3,
				Probability:     80,
				RevenueOverride: f64(12000),
			},
			wantBaseProfit: 4000,
			wantBaseMargin: 0.4,
			wantEffRev:     12000,
			wantEffProfit:  4000,
			wantWRev:       9600,
			wantWProfit:    3200,
		},
		{
			name: "profit override independent of revenue",
			opp:  opp(4, 10000, 6000),
			meta: &model.ForecastMetadata{
				OpportunityID:  4,
				Probability:    100,
				ProfitOverride: f64(2500),
			},
			wantBaseProfit: 4000,
			wantBaseMargin: 0.4,
			wantEffRev:     10000,
			wantEffProfit:  2500,
			wantWRev:       10000,
			wantWProfit:    2500,
		},
		{
			name:           "zero charge yields zero margin not NaN",
			opp:            opp(5, 0, 1500),
			meta:           meta(5, 40),
			wantBaseProfit: -1500,
			wantBaseMargin: 0,
			wantEffRev:     0,
			wantEffProfit:  -1500,
			wantWRev:       0,
			wantWProfit:    -600,
		},
		{
			name:           "zero probability zeroes weighted values",
			opp:            opp(6, 5000, 2000),
			meta:           meta(6, 0),
			wantBaseProfit: 3000,
			wantBaseMargin: 0.6,
			wantEffRev:     5000,
			wantEffProfit:  3000,
			wantWRev:       0,
			wantWProfit:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := Enrich(tt.opp, tt.meta)

			assert.InDelta(t, tt.wantBaseProfit, e.BaseProfit, 1e-9)
			assert.InDelta(t, tt.wantBaseMargin, e.BaseMargin, 1e-9)
			assert.InDelta(t, tt.wantEffRev, e.EffectiveRevenue, 1e-9)
			assert.InDelta(t, tt.wantEffProfit, e.EffectiveProfit, 1e-9)
			assert.InDelta(t, tt.wantWRev, e.WeightedRevenue, 1e-9)
			assert.InDelta(t, tt.wantWProfit, e.WeightedProfit, 1e-9)
		})
	}
}

func TestEnrichAllJoinsByID(t *testing.T) {
	t.Parallel()

	opps := []model.Opportunity{opp(1, 1000, 400), opp(2, 2000, 800), opp(3, 3000, 900)}
	metas := []model.ForecastMetadata{
		{OpportunityID: 3, Probability: 90},
		{OpportunityID: 1, Probability: 10},
	}

	enriched := EnrichAll(opps, metas)
	assert.Len(t, enriched, 3)

	assert.True(t, enriched[0].Reviewed())
	assert.Equal(t, 10, enriched[0].Forecast.Probability)
	assert.False(t, enriched[1].Reviewed())
	assert.True(t, enriched[2].Reviewed())
	assert.Equal(t, 90, enriched[2].Forecast.Probability)
}
