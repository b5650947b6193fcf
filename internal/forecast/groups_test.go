package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xthestreams/current-rms-watcher/internal/model"
)

func ownedOpp(id int, owner, customer string, charge float64) model.Opportunity {
	o := opp(id, charge, charge/2)
	o.OwnerName = owner
	o.OrganisationName = customer
	return o
}

func TestByOwner(t *testing.T) {
	t.Parallel()

	enriched := []model.EnrichedOpportunity{
		enrich(ownedOpp(1, "Alice", "Acme", 10000), &model.ForecastMetadata{OpportunityID: 1, Probability: 50}),
		enrich(ownedOpp(2, "Alice", "Acme", 4000), &model.ForecastMetadata{OpportunityID: 2, Probability: 100, IsCommit: true}),
		enrich(ownedOpp(3, "Bob", "Globex", 20000), &model.ForecastMetadata{OpportunityID: 3, Probability: 10}),
		// Unreviewed: counted with probability 0 in the average.
		enrich(ownedOpp(4, "Bob", "Globex", 1000), nil),
		// Excluded rows vanish from group views entirely.
		enrich(ownedOpp(5, "Carol", "Initech", 50000), &model.ForecastMetadata{OpportunityID: 5, Probability: 90, IsExcluded: true}),
	}

	groups := ByOwner(enriched)
	require.Len(t, groups, 2, "excluded-only owners are absent")

	// Sorted descending by weighted revenue: Alice 9000 over Bob 2000.
	assert.Equal(t, "Alice", groups[0].Name)
	assert.Equal(t, 2, groups[0].OpportunityCount)
	assert.InDelta(t, 9000, groups[0].WeightedRevenue, 1e-9)
	assert.InDelta(t, 75, groups[0].AvgProbability, 1e-9)

	assert.Equal(t, "Bob", groups[1].Name)
	assert.Equal(t, 2, groups[1].OpportunityCount)
	assert.InDelta(t, 2000, groups[1].WeightedRevenue, 1e-9)
	assert.InDelta(t, 5, groups[1].AvgProbability, 1e-9)
}

func TestByOwnerUnassignedFallback(t *testing.T) {
	t.Parallel()

	enriched := []model.EnrichedOpportunity{
		enrich(ownedOpp(1, "", "Acme", 5000), &model.ForecastMetadata{OpportunityID: 1, Probability: 20}),
	}

	groups := ByOwner(enriched)
	require.Len(t, groups, 1)
	assert.Equal(t, "Unassigned", groups[0].Name)
}

func TestByCustomer(t *testing.T) {
	t.Parallel()

	enriched := []model.EnrichedOpportunity{
		enrich(ownedOpp(1, "Alice", "Acme", 10000), &model.ForecastMetadata{OpportunityID: 1, Probability: 40}),
		enrich(ownedOpp(2, "Bob", "", 8000), &model.ForecastMetadata{OpportunityID: 2, Probability: 60}),
	}

	groups := ByCustomer(enriched)
	require.Len(t, groups, 2)

	// Unknown Customer leads at 4800 weighted over Acme's 4000.
	assert.Equal(t, "Unknown Customer", groups[0].Name)
	assert.InDelta(t, 4800, groups[0].WeightedRevenue, 1e-9)
	assert.Equal(t, "Acme", groups[1].Name)
	assert.InDelta(t, 4000, groups[1].WeightedRevenue, 1e-9)
}

func TestGroupByEmptyInput(t *testing.T) {
	t.Parallel()
	assert.Empty(t, ByOwner(nil))
	assert.Empty(t, ByCustomer(nil))
}
