// Package store persists mirrored opportunities, forecast metadata, webhook
// deliveries, and settings. Two drivers are provided: Postgres (pgxpool) for
// hosted deployments and SQLite for local runs, selected by config.
package store

import (
	"context"
	"time"

	"github.com/xthestreams/current-rms-watcher/internal/model"
)

// OpportunityFilter specifies criteria for listing mirrored opportunities.
type OpportunityFilter struct {
	State  string     `json:"state,omitempty"`
	Owner  string     `json:"owner,omitempty"`
	From   *time.Time `json:"from,omitempty"` // StartsAt window, inclusive
	To     *time.Time `json:"to,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
}

// EventFilter specifies criteria for listing webhook deliveries.
type EventFilter struct {
	Status model.WebhookEventStatus `json:"status,omitempty"`
	Limit  int                      `json:"limit,omitempty"`
}

// Store defines the persistence interface for the watcher.
type Store interface {
	// Opportunity mirror
	UpsertOpportunity(ctx context.Context, opp model.Opportunity) error
	GetOpportunity(ctx context.Context, id int) (*model.Opportunity, error)
	ListOpportunities(ctx context.Context, filter OpportunityFilter) ([]model.Opportunity, error)
	// DeleteOpportunity removes the mirror row and its forecast metadata.
	// Deleting a missing opportunity is not an error.
	DeleteOpportunity(ctx context.Context, id int) error

	// Forecast metadata (at most one row per opportunity)
	GetForecastMetadata(ctx context.Context, oppID int) (*model.ForecastMetadata, error)
	ListForecastMetadata(ctx context.Context) ([]model.ForecastMetadata, error)
	UpsertForecastMetadata(ctx context.Context, meta model.ForecastMetadata) error
	DeleteForecastMetadata(ctx context.Context, oppID int) error

	// Webhook delivery log
	RecordWebhookEvent(ctx context.Context, ev model.WebhookEvent) error
	MarkWebhookEvent(ctx context.Context, id string, status model.WebhookEventStatus, errMsg string) error
	ListWebhookEvents(ctx context.Context, filter EventFilter) ([]model.WebhookEvent, error)

	// Settings (JSON blobs keyed by name)
	GetSetting(ctx context.Context, key string) ([]byte, error)
	PutSetting(ctx context.Context, key string, value []byte) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
