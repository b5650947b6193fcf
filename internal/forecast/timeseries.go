package forecast

import (
	"fmt"
	"sort"
	"time"

	"github.com/xthestreams/current-rms-watcher/internal/model"
)

// PeriodBucket is the forecast rollup for a single week or month, keyed by
// a zero-padded period string whose lexicographic order is chronological.
type PeriodBucket struct {
	Period string `json:"period"` // "2025-W03" or "2025-01"
	Label  string `json:"label"`  // "Jan 13" (week start) or "Jan"

	CommitRevenue     float64 `json:"commit_revenue"`
	CommitProfit      float64 `json:"commit_profit"`
	UpsideRevenue     float64 `json:"upside_revenue"`
	UpsideProfit      float64 `json:"upside_profit"`
	UnreviewedRevenue float64 `json:"unreviewed_revenue"`
	UnreviewedProfit  float64 `json:"unreviewed_profit"`
}

// TimeSeries buckets opportunities by start date into ISO weeks (byWeek) or
// calendar months. Opportunities without a start date are skipped; excluded
// ones contribute nothing; unreviewed ones add unweighted revenue and profit
// to the unreviewed series; reviewed ones add weighted values to the commit
// or upside series. Output is sorted ascending by period key.
//
// Whether to bucket by week or month is caller policy (the dashboard uses
// weeks for windows of 89 days or less), not decided here.
func TimeSeries(enriched []model.EnrichedOpportunity, byWeek bool) []PeriodBucket {
	buckets := make(map[string]*PeriodBucket)

	for i := range enriched {
		e := &enriched[i]
		if e.StartsAt == nil || e.Excluded() {
			continue
		}

		key, label := periodOf(*e.StartsAt, byWeek)
		b, ok := buckets[key]
		if !ok {
			b = &PeriodBucket{Period: key, Label: label}
			buckets[key] = b
		}

		switch {
		case !e.Reviewed():
			b.UnreviewedRevenue += e.ChargeTotal.Float()
			b.UnreviewedProfit += e.BaseProfit
		case e.Forecast.IsCommit:
			b.CommitRevenue += e.WeightedRevenue
			b.CommitProfit += e.WeightedProfit
		default:
			b.UpsideRevenue += e.WeightedRevenue
			b.UpsideProfit += e.WeightedProfit
		}
	}

	out := make([]PeriodBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

// periodOf returns the bucket key and human label for a start date.
func periodOf(t time.Time, byWeek bool) (key, label string) {
	if !byWeek {
		return t.Format("2006-01"), t.Format("Jan")
	}

	year, week := t.ISOWeek()
	key = fmt.Sprintf("%04d-W%02d", year, week)

	// Label with the Monday that starts the ISO week.
	offset := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -offset)
	return key, monday.Format("Jan 2")
}
