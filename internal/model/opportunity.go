package model

import (
	"time"

	"github.com/xthestreams/current-rms-watcher/pkg/currentrms"
)

// Opportunity is a read-only mirror of a Current RMS rental opportunity.
// Created and mutated exclusively by the external system; this application
// only consumes webhook notifications and API reads.
type Opportunity struct {
	ID                   int              `json:"id"`
	Subject              string           `json:"subject"`
	OrganisationName     string           `json:"organisation_name"`
	OwnerName            string           `json:"owner_name"`
	StartsAt             *time.Time       `json:"starts_at"`
	EndsAt               *time.Time       `json:"ends_at"`
	StateName            string           `json:"state_name"`
	ChargeTotal          currentrms.Money `json:"charge_total"`
	ProvisionalCostTotal currentrms.Money `json:"provisional_cost_total"`
	PredictedCostTotal   currentrms.Money `json:"predicted_cost_total"`
	ActualCostTotal      currentrms.Money `json:"actual_cost_total"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// ForecastMetadata is the reviewer-owned 1:1 annotation on an opportunity.
// At most one row exists per opportunity; absence means "unreviewed".
type ForecastMetadata struct {
	OpportunityID   int        `json:"opportunity_id"`
	Probability     int        `json:"probability"` // 0-100
	IsCommit        bool       `json:"is_commit"`
	RevenueOverride *float64   `json:"revenue_override,omitempty"`
	ProfitOverride  *float64   `json:"profit_override,omitempty"`
	IsExcluded      bool       `json:"is_excluded"`
	ExclusionReason string     `json:"exclusion_reason,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	LastReviewedAt  *time.Time `json:"last_reviewed_at,omitempty"`
	ReviewedBy      string     `json:"reviewed_by,omitempty"`
}

// EnrichedOpportunity is an Opportunity joined with its optional forecast
// metadata plus derived values. The derived fields are always recomputed
// from their sources and never persisted, so they cannot drift.
type EnrichedOpportunity struct {
	Opportunity
	Forecast *ForecastMetadata `json:"forecast,omitempty"`

	BaseProfit       float64 `json:"base_profit"`
	BaseMargin       float64 `json:"base_margin"`
	EffectiveRevenue float64 `json:"effective_revenue"`
	EffectiveProfit  float64 `json:"effective_profit"`
	WeightedRevenue  float64 `json:"weighted_revenue"`
	WeightedProfit   float64 `json:"weighted_profit"`
}

// Reviewed reports whether a reviewer has recorded forecast metadata.
func (e *EnrichedOpportunity) Reviewed() bool {
	return e.Forecast != nil
}

// Excluded reports whether the opportunity is suppressed from forecast totals.
func (e *EnrichedOpportunity) Excluded() bool {
	return e.Forecast != nil && e.Forecast.IsExcluded
}

// WebhookEventStatus represents the processing state of a webhook delivery.
type WebhookEventStatus string

const (
	WebhookEventReceived  WebhookEventStatus = "received"
	WebhookEventProcessed WebhookEventStatus = "processed"
	WebhookEventFailed    WebhookEventStatus = "failed"
)

// WebhookEvent records a single webhook delivery from Current RMS.
type WebhookEvent struct {
	ID            string             `json:"id"`
	Event         string             `json:"event"`
	OpportunityID int                `json:"opportunity_id"`
	Payload       []byte             `json:"payload,omitempty"`
	Status        WebhookEventStatus `json:"status"`
	Error         string             `json:"error,omitempty"`
	ReceivedAt    time.Time          `json:"received_at"`
}
