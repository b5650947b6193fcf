package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xthestreams/current-rms-watcher/internal/model"
	"github.com/xthestreams/current-rms-watcher/internal/resilience"
	"github.com/xthestreams/current-rms-watcher/internal/store"
	"github.com/xthestreams/current-rms-watcher/pkg/currentrms"
)

// fakeStore records webhook processor interactions in memory.
type fakeStore struct {
	opportunities map[int]model.Opportunity
	events        map[string]model.WebhookEvent
	upsertErr     error
	recordErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		opportunities: make(map[int]model.Opportunity),
		events:        make(map[string]model.WebhookEvent),
	}
}

func (f *fakeStore) UpsertOpportunity(_ context.Context, opp model.Opportunity) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.opportunities[opp.ID] = opp
	return nil
}

func (f *fakeStore) GetOpportunity(_ context.Context, id int) (*model.Opportunity, error) {
	o, ok := f.opportunities[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (f *fakeStore) DeleteOpportunity(_ context.Context, id int) error {
	delete(f.opportunities, id)
	return nil
}

func (f *fakeStore) ListOpportunities(context.Context, store.OpportunityFilter) ([]model.Opportunity, error) {
	return nil, nil
}

func (f *fakeStore) GetForecastMetadata(context.Context, int) (*model.ForecastMetadata, error) {
	return nil, nil
}

func (f *fakeStore) ListForecastMetadata(context.Context) ([]model.ForecastMetadata, error) {
	return nil, nil
}

func (f *fakeStore) UpsertForecastMetadata(context.Context, model.ForecastMetadata) error {
	return nil
}

func (f *fakeStore) DeleteForecastMetadata(context.Context, int) error { return nil }

func (f *fakeStore) RecordWebhookEvent(_ context.Context, ev model.WebhookEvent) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.events[ev.ID] = ev
	return nil
}

func (f *fakeStore) MarkWebhookEvent(_ context.Context, id string, status model.WebhookEventStatus, errMsg string) error {
	ev, ok := f.events[id]
	if !ok {
		return eris.Errorf("no event %s", id)
	}
	ev.Status = status
	ev.Error = errMsg
	f.events[id] = ev
	return nil
}

func (f *fakeStore) ListWebhookEvents(context.Context, store.EventFilter) ([]model.WebhookEvent, error) {
	out := make([]model.WebhookEvent, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeStore) GetSetting(context.Context, string) ([]byte, error) { return nil, nil }
func (f *fakeStore) PutSetting(context.Context, string, []byte) error  { return nil }
func (f *fakeStore) Migrate(context.Context) error                     { return nil }
func (f *fakeStore) Close() error                                      { return nil }

// fakeClient serves a fixed opportunity for refetch tests.
type fakeClient struct {
	opportunity *currentrms.Opportunity
	err         error
	calls       int
}

func (f *fakeClient) GetOpportunity(context.Context, int) (*currentrms.Opportunity, error) {
	f.calls++
	return f.opportunity, f.err
}

func (f *fakeClient) ListOpportunities(context.Context, currentrms.ListOptions) (*currentrms.OpportunityPage, error) {
	return nil, eris.New("not implemented")
}

func (f *fakeClient) UpdateCustomFields(context.Context, int, map[string]any) error {
	return nil
}

func (f *fakeClient) CreateWebhook(context.Context, currentrms.Webhook) (*currentrms.Webhook, error) {
	return nil, eris.New("not implemented")
}

func (f *fakeClient) ListWebhooks(context.Context) ([]currentrms.Webhook, error) {
	return nil, eris.New("not implemented")
}

func (f *fakeClient) DeleteWebhook(context.Context, int) error { return nil }

func noRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 1}
}

func singleEvent(t *testing.T, fs *fakeStore) model.WebhookEvent {
	t.Helper()
	events, err := fs.ListWebhookEvents(context.Background(), store.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	return events[0]
}

func TestProcessFullBody(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	p := NewProcessor(fs, nil, WithRetryConfig(noRetry()))

	body := []byte(`{
		"event": "opportunity_update",
		"opportunity": {"id": 42, "subject": "Gala dinner", "charge_total": 9000}
	}`)
	require.NoError(t, p.Process(context.Background(), body))

	stored, ok := fs.opportunities[42]
	require.True(t, ok)
	assert.Equal(t, "Gala dinner", stored.Subject)
	assert.InDelta(t, 9000, stored.ChargeTotal.Float(), 1e-9)

	ev := singleEvent(t, fs)
	assert.Equal(t, model.WebhookEventProcessed, ev.Status)
	assert.Equal(t, "opportunity_update", ev.Event)
	assert.Equal(t, 42, ev.OpportunityID)
	assert.Empty(t, ev.Error)
}

func TestProcessIDOnlyRefetches(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fc := &fakeClient{opportunity: &currentrms.Opportunity{
		ID:          99,
		Subject:     "Refetched job",
		ChargeTotal: currentrms.Money(1200),
	}}
	p := NewProcessor(fs, fc, WithRetryConfig(noRetry()))

	body := []byte(`{"event": "opportunity_create", "subject_id": 99}`)
	require.NoError(t, p.Process(context.Background(), body))

	assert.Equal(t, 1, fc.calls)
	stored, ok := fs.opportunities[99]
	require.True(t, ok)
	assert.Equal(t, "Refetched job", stored.Subject)
}

func TestProcessDeleteRemovesMirrorRow(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.opportunities[42] = model.Opportunity{ID: 42, Subject: "Gala dinner"}
	p := NewProcessor(fs, nil, WithRetryConfig(noRetry()))

	body := []byte(`{"event": "opportunity_delete", "subject_id": 42}`)
	require.NoError(t, p.Process(context.Background(), body))

	_, ok := fs.opportunities[42]
	assert.False(t, ok)

	ev := singleEvent(t, fs)
	assert.Equal(t, model.WebhookEventProcessed, ev.Status)
}

func TestProcessIDOnlyWithoutClientFails(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	p := NewProcessor(fs, nil, WithRetryConfig(noRetry()))

	err := p.Process(context.Background(), []byte(`{"event": "opportunity_create", "subject_id": 7}`))
	require.Error(t, err)

	ev := singleEvent(t, fs)
	assert.Equal(t, model.WebhookEventFailed, ev.Status)
	assert.NotEmpty(t, ev.Error)
}

func TestProcessInvalidPayloadRecordsFailure(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	p := NewProcessor(fs, nil, WithRetryConfig(noRetry()))

	err := p.Process(context.Background(), []byte(`{"event": ""}`))
	require.Error(t, err)

	ev := singleEvent(t, fs)
	assert.Equal(t, model.WebhookEventFailed, ev.Status)
}

func TestProcessUpsertFailureMarksFailed(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.upsertErr = eris.New("disk full")
	p := NewProcessor(fs, nil, WithRetryConfig(noRetry()))

	body := []byte(`{"event": "opportunity_update", "opportunity": {"id": 1}}`)
	err := p.Process(context.Background(), body)
	require.Error(t, err)

	ev := singleEvent(t, fs)
	assert.Equal(t, model.WebhookEventFailed, ev.Status)
	assert.Contains(t, ev.Error, "disk full")
}

func TestProcessStampsReceivedAt(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fixed := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	p := NewProcessor(fs, nil,
		WithRetryConfig(noRetry()),
		WithClock(func() time.Time { return fixed }),
	)

	body := []byte(`{"event": "opportunity_update", "opportunity": {"id": 2}}`)
	require.NoError(t, p.Process(context.Background(), body))

	ev := singleEvent(t, fs)
	assert.True(t, ev.ReceivedAt.Equal(fixed))
}
