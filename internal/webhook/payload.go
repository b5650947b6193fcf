// Package webhook parses and processes inbound Current RMS webhook
// deliveries, keeping the local opportunity mirror in sync.
package webhook

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/xthestreams/current-rms-watcher/internal/model"
	"github.com/xthestreams/current-rms-watcher/pkg/currentrms"
)

// Payload is a decoded webhook delivery. Current RMS sends the event name
// plus either the full opportunity body or, for some event types, only the
// subject record's id. Opportunity is nil in the id-only case and the
// processor refetches before upserting.
type Payload struct {
	Event         string
	OpportunityID int
	Opportunity   *currentrms.Opportunity
}

// Deleted reports whether the event removes the subject record.
func (p *Payload) Deleted() bool {
	return strings.HasSuffix(p.Event, "_delete") || strings.HasSuffix(p.Event, "_destroy")
}

type wirePayload struct {
	Event       string                  `json:"event"`
	Opportunity *currentrms.Opportunity `json:"opportunity,omitempty"`
	// Id-only variant.
	SubjectType string `json:"subject_type,omitempty"`
	SubjectID   int    `json:"subject_id,omitempty"`
}

// ParsePayload decodes a webhook body. It accepts both the full-body and
// id-only delivery shapes; anything without an event name or a resolvable
// opportunity id is rejected.
func ParsePayload(body []byte) (*Payload, error) {
	var wire wirePayload
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, eris.Wrap(err, "webhook: decode payload")
	}
	if wire.Event == "" {
		return nil, eris.New("webhook: payload missing event name")
	}

	p := &Payload{Event: wire.Event, Opportunity: wire.Opportunity}
	switch {
	case wire.Opportunity != nil && wire.Opportunity.ID != 0:
		p.OpportunityID = wire.Opportunity.ID
	case wire.SubjectID != 0:
		p.OpportunityID = wire.SubjectID
	default:
		return nil, eris.Errorf("webhook: event %q carries no opportunity id", wire.Event)
	}
	return p, nil
}

// ToModel converts a wire opportunity into the mirror representation.
func ToModel(o *currentrms.Opportunity) model.Opportunity {
	return model.Opportunity{
		ID:                   o.ID,
		Subject:              o.Subject,
		OrganisationName:     o.MemberName(),
		OwnerName:            o.OwnerName(),
		StartsAt:             o.StartsAt,
		EndsAt:               o.EndsAt,
		StateName:            o.StateName,
		ChargeTotal:          o.ChargeTotal,
		ProvisionalCostTotal: o.ProvisionalCostTotal,
		PredictedCostTotal:   o.PredictedCostTotal,
		ActualCostTotal:      o.ActualCostTotal,
		UpdatedAt:            o.UpdatedAt,
	}
}
