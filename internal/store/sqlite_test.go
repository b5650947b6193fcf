package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xthestreams/current-rms-watcher/internal/model"
	"github.com/xthestreams/current-rms-watcher/pkg/currentrms"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sqliteOpportunity(id int, starts time.Time) model.Opportunity {
	return model.Opportunity{
		ID:                   id,
		Subject:              "Arena load-in",
		OrganisationName:     "Acme Events",
		OwnerName:            "Alice",
		StartsAt:             &starts,
		StateName:            "Provisional",
		ChargeTotal:          currentrms.Money(15000),
		ProvisionalCostTotal: currentrms.Money(9000),
		UpdatedAt:            time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteOpportunityRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	starts := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	opp := sqliteOpportunity(42, starts)
	require.NoError(t, st.UpsertOpportunity(ctx, opp))

	got, err := st.GetOpportunity(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Arena load-in", got.Subject)
	assert.Equal(t, "Acme Events", got.OrganisationName)
	require.NotNil(t, got.StartsAt)
	assert.True(t, got.StartsAt.Equal(starts))
	assert.Nil(t, got.EndsAt)
	assert.InDelta(t, 15000, got.ChargeTotal.Float(), 1e-9)
	assert.InDelta(t, 9000, got.ProvisionalCostTotal.Float(), 1e-9)
}

func TestSQLiteUpsertOpportunityOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	opp := sqliteOpportunity(7, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, st.UpsertOpportunity(ctx, opp))

	opp.Subject = "Arena load-in (revised)"
	opp.ChargeTotal = currentrms.Money(18000)
	require.NoError(t, st.UpsertOpportunity(ctx, opp))

	got, err := st.GetOpportunity(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Arena load-in (revised)", got.Subject)
	assert.InDelta(t, 18000, got.ChargeTotal.Float(), 1e-9)
}

func TestSQLiteGetOpportunityMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetOpportunity(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteListOpportunitiesFilters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i, day := range []int{1, 10, 20} {
		opp := sqliteOpportunity(i+1, time.Date(2025, 6, day, 0, 0, 0, 0, time.UTC))
		if i == 2 {
			opp.StateName = "Confirmed"
			opp.OwnerName = "Bob"
		}
		require.NoError(t, st.UpsertOpportunity(ctx, opp))
	}

	from := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	got, err := st.ListOpportunities(ctx, OpportunityFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].ID)
	assert.Equal(t, 3, got[1].ID)

	got, err = st.ListOpportunities(ctx, OpportunityFilter{State: "Confirmed"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].ID)

	got, err = st.ListOpportunities(ctx, OpportunityFilter{Owner: "Alice", Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].ID)

	got, err = st.ListOpportunities(ctx, OpportunityFilter{Owner: "Alice", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].ID)
}

func TestSQLiteDeleteOpportunityCascades(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertOpportunity(ctx, sqliteOpportunity(5, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, st.UpsertForecastMetadata(ctx, model.ForecastMetadata{OpportunityID: 5, Probability: 50}))

	require.NoError(t, st.DeleteOpportunity(ctx, 5))

	opp, err := st.GetOpportunity(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, opp)
	meta, err := st.GetForecastMetadata(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, meta)

	// Deleting a missing opportunity is not an error.
	require.NoError(t, st.DeleteOpportunity(ctx, 5))
}

func TestSQLiteForecastMetadataRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	override := 12000.0
	reviewed := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
	meta := model.ForecastMetadata{
		OpportunityID:   42,
		Probability:     75,
		IsCommit:        true,
		RevenueOverride: &override,
		IsExcluded:      false,
		Notes:           "strong verbal commitment",
		LastReviewedAt:  &reviewed,
		ReviewedBy:      "alice",
	}
	require.NoError(t, st.UpsertForecastMetadata(ctx, meta))

	got, err := st.GetForecastMetadata(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 75, got.Probability)
	assert.True(t, got.IsCommit)
	require.NotNil(t, got.RevenueOverride)
	assert.InDelta(t, 12000, *got.RevenueOverride, 1e-9)
	assert.Nil(t, got.ProfitOverride)
	require.NotNil(t, got.LastReviewedAt)
	assert.True(t, got.LastReviewedAt.Equal(reviewed))
	assert.Equal(t, "alice", got.ReviewedBy)

	// Replace and re-read.
	meta.Probability = 90
	meta.RevenueOverride = nil
	require.NoError(t, st.UpsertForecastMetadata(ctx, meta))
	got, err = st.GetForecastMetadata(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 90, got.Probability)
	assert.Nil(t, got.RevenueOverride)

	list, err := st.ListForecastMetadata(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, st.DeleteForecastMetadata(ctx, 42))
	got, err = st.GetForecastMetadata(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteWebhookEventLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ev := model.WebhookEvent{
		ID:            "ev-1",
		Event:         "opportunity_update",
		OpportunityID: 42,
		Payload:       []byte(`{"event":"opportunity_update"}`),
		Status:        model.WebhookEventReceived,
		ReceivedAt:    time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.RecordWebhookEvent(ctx, ev))
	require.NoError(t, st.MarkWebhookEvent(ctx, "ev-1", model.WebhookEventFailed, "disk full"))

	events, err := st.ListWebhookEvents(ctx, EventFilter{Status: model.WebhookEventFailed})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ev-1", events[0].ID)
	assert.Equal(t, "disk full", events[0].Error)

	events, err = st.ListWebhookEvents(ctx, EventFilter{Status: model.WebhookEventProcessed})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSQLiteMarkWebhookEventMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.MarkWebhookEvent(context.Background(), "ghost", model.WebhookEventProcessed, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook event not found")
}

func TestSQLiteListWebhookEventsNewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"ev-old", "ev-new"} {
		require.NoError(t, st.RecordWebhookEvent(ctx, model.WebhookEvent{
			ID:         id,
			Event:      "opportunity_update",
			Status:     model.WebhookEventReceived,
			ReceivedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := st.ListWebhookEvents(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ev-new", events[0].ID)

	events, err = st.ListWebhookEvents(ctx, EventFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ev-new", events[0].ID)
}

func TestSQLiteSettingsRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutSetting(ctx, "risk_factors", []byte(`[{"id":"venue_access"}]`)))

	got, err := st.GetSetting(ctx, "risk_factors")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"venue_access"}]`, string(got))

	// Overwrite wins.
	require.NoError(t, st.PutSetting(ctx, "risk_factors", []byte(`[]`)))
	got, err = st.GetSetting(ctx, "risk_factors")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(got))
}

func TestSQLiteGetSettingMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetSetting(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}
