package currentrms

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyUnmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"json number", `1234.56`, 1234.56},
		{"integer number", `1500`, 1500},
		{"negative number", `-250.5`, -250.5},
		{"numeric string", `"1234.56"`, 1234.56},
		{"integer string", `"42"`, 42},
		{"null", `null`, 0},
		{"empty string", `""`, 0},
		{"whitespace string", `"  "`, 0},
		{"non-numeric string", `"n/a"`, 0},
		{"scientific notation", `1.5e3`, 1500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var m Money
			require.NoError(t, json.Unmarshal([]byte(tt.in), &m))
			assert.InDelta(t, tt.want, m.Float(), 1e-9)
		})
	}
}

func TestMoneyUnmarshalAbsentField(t *testing.T) {
	t.Parallel()

	var payload struct {
		Charge Money `json:"charge_total"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{}`), &payload))
	assert.Zero(t, payload.Charge.Float())
}

func TestMoneyMarshalEmitsNumber(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(Money(1234.5))
	require.NoError(t, err)
	assert.Equal(t, `1234.5`, string(out))

	out, err = json.Marshal(Money(0))
	require.NoError(t, err)
	assert.Equal(t, `0`, string(out))
}

func TestMoneyRoundTripThroughOpportunity(t *testing.T) {
	t.Parallel()

	raw := `{
		"id": 17,
		"subject": "Festival main stage",
		"charge_total": "12500.00",
		"provisional_cost_total": 8000,
		"predicted_cost_total": null,
		"actual_cost_total": ""
	}`

	var o Opportunity
	require.NoError(t, json.Unmarshal([]byte(raw), &o))

	assert.Equal(t, 17, o.ID)
	assert.InDelta(t, 12500, o.ChargeTotal.Float(), 1e-9)
	assert.InDelta(t, 8000, o.ProvisionalCostTotal.Float(), 1e-9)
	assert.Zero(t, o.PredictedCostTotal.Float())
	assert.Zero(t, o.ActualCostTotal.Float())
}
