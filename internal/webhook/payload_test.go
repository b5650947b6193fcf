package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xthestreams/current-rms-watcher/pkg/currentrms"
)

func TestParsePayloadFullBody(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"event": "opportunity_update",
		"opportunity": {
			"id": 42,
			"subject": "Conference AV package",
			"state_name": "Provisional",
			"charge_total": "5000.00",
			"provisional_cost_total": 3000,
			"member": {"id": 7, "name": "Acme Events"},
			"owner": {"id": 3, "name": "Alice"}
		}
	}`)

	p, err := ParsePayload(body)
	require.NoError(t, err)

	assert.Equal(t, "opportunity_update", p.Event)
	assert.Equal(t, 42, p.OpportunityID)
	require.NotNil(t, p.Opportunity)
	assert.Equal(t, "Conference AV package", p.Opportunity.Subject)
	assert.InDelta(t, 5000, p.Opportunity.ChargeTotal.Float(), 1e-9)
}

func TestParsePayloadIDOnly(t *testing.T) {
	t.Parallel()

	p, err := ParsePayload([]byte(`{"event": "opportunity_create", "subject_type": "opportunity", "subject_id": 99}`))
	require.NoError(t, err)

	assert.Equal(t, 99, p.OpportunityID)
	assert.Nil(t, p.Opportunity)
}

func TestParsePayloadRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{broken`},
		{"missing event", `{"opportunity": {"id": 1}}`},
		{"no opportunity id", `{"event": "opportunity_update"}`},
		{"zero subject id", `{"event": "opportunity_update", "subject_id": 0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParsePayload([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestToModel(t *testing.T) {
	t.Parallel()

	starts := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	wire := &currentrms.Opportunity{
		ID:                   5,
		Subject:              "Wedding marquee",
		StartsAt:             &starts,
		StateName:            "Reserved",
		ChargeTotal:          currentrms.Money(7500),
		ProvisionalCostTotal: currentrms.Money(4000),
		Member:               &currentrms.Party{ID: 1, Name: "Smith Family"},
		Owner:                &currentrms.Party{ID: 2, Name: "Bob"},
	}

	m := ToModel(wire)
	assert.Equal(t, 5, m.ID)
	assert.Equal(t, "Smith Family", m.OrganisationName)
	assert.Equal(t, "Bob", m.OwnerName)
	assert.Equal(t, &starts, m.StartsAt)
	assert.InDelta(t, 7500, m.ChargeTotal.Float(), 1e-9)
}

func TestToModelMissingParties(t *testing.T) {
	t.Parallel()

	m := ToModel(&currentrms.Opportunity{ID: 6})
	assert.Empty(t, m.OrganisationName)
	assert.Empty(t, m.OwnerName)
}
