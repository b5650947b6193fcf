package forecast

import "github.com/xthestreams/current-rms-watcher/internal/model"

// BandAggregate is the rollup for one fixed probability band.
type BandAggregate struct {
	Band            string  `json:"band"`
	Min             int     `json:"min"`
	Max             int     `json:"max"`
	Count           int     `json:"count"`
	PipelineRevenue float64 `json:"pipeline_revenue"`
	WeightedRevenue float64 `json:"weighted_revenue"`
}

// probabilityBands are inclusive on both ends and non-overlapping by
// construction; the first matching band wins.
var probabilityBands = []struct {
	label    string
	min, max int
}{
	{"0-25%", 0, 25},
	{"26-50%", 26, 50},
	{"51-75%", 51, 75},
	{"76-100%", 76, 100},
}

// ByProbabilityBand distributes reviewed, non-excluded opportunities across
// the four fixed probability bands by inclusive range test on the raw
// probability. All four bands are always present in order, zero-valued when
// empty. Excluded and unreviewed opportunities are skipped.
func ByProbabilityBand(enriched []model.EnrichedOpportunity) []BandAggregate {
	out := make([]BandAggregate, len(probabilityBands))
	for i, b := range probabilityBands {
		out[i] = BandAggregate{Band: b.label, Min: b.min, Max: b.max}
	}

	for i := range enriched {
		e := &enriched[i]
		if e.Excluded() || !e.Reviewed() {
			continue
		}

		p := e.Forecast.Probability
		for j, b := range probabilityBands {
			if p >= b.min && p <= b.max {
				out[j].Count++
				out[j].PipelineRevenue += e.EffectiveRevenue
				out[j].WeightedRevenue += e.WeightedRevenue
				break
			}
		}
	}

	return out
}
