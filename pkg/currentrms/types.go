package currentrms

import (
	"encoding/json"
	"time"
)

// Party is a nested member or owner reference on an opportunity.
type Party struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Opportunity is the wire shape of a Current RMS opportunity, limited to the
// fields the watcher consumes. Monetary totals decode through Money so the
// API's number-or-string-or-null looseness never reaches callers.
type Opportunity struct {
	ID                   int                        `json:"id"`
	Subject              string                     `json:"subject"`
	StartsAt             *time.Time                 `json:"starts_at"`
	EndsAt               *time.Time                 `json:"ends_at"`
	StateName            string                     `json:"state_name"`
	ChargeTotal          Money                      `json:"charge_total"`
	ProvisionalCostTotal Money                      `json:"provisional_cost_total"`
	PredictedCostTotal   Money                      `json:"predicted_cost_total"`
	ActualCostTotal      Money                      `json:"actual_cost_total"`
	UpdatedAt            time.Time                  `json:"updated_at"`
	Member               *Party                     `json:"member,omitempty"`
	Owner                *Party                     `json:"owner,omitempty"`
	CustomFields         map[string]json.RawMessage `json:"custom_fields,omitempty"`
}

// MemberName returns the organisation (customer) name, or "" when absent.
func (o *Opportunity) MemberName() string {
	if o.Member == nil {
		return ""
	}
	return o.Member.Name
}

// OwnerName returns the salesperson name, or "" when absent.
func (o *Opportunity) OwnerName() string {
	if o.Owner == nil {
		return ""
	}
	return o.Owner.Name
}

// Webhook is a webhook subscription registered with Current RMS.
type Webhook struct {
	ID        int    `json:"id,omitempty"`
	Name      string `json:"name"`
	TargetURL string `json:"target_url"`
	Event     string `json:"event"`
	Active    bool   `json:"active"`
}
