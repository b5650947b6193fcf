package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xthestreams/current-rms-watcher/internal/model"
	"github.com/xthestreams/current-rms-watcher/internal/resilience"
	"github.com/xthestreams/current-rms-watcher/internal/store"
	"github.com/xthestreams/current-rms-watcher/pkg/currentrms"
)

// Processor records each webhook delivery, updates the opportunity mirror,
// and marks the delivery's outcome. A failed delivery is kept with its error
// so it stays visible through the events API.
type Processor struct {
	store  store.Store
	client currentrms.Client
	retry  resilience.RetryConfig
	now    func() time.Time
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithRetryConfig overrides the store-write retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) ProcessorOption {
	return func(p *Processor) { p.retry = cfg }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a webhook processor. client may be nil, in which case
// id-only deliveries fail instead of refetching.
func NewProcessor(s store.Store, client currentrms.Client, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:  s,
		client: client,
		retry:  resilience.DefaultRetryConfig(),
		now:    time.Now,
	}
	p.retry.OnRetry = resilience.RetryLogger("store", "webhook upsert")
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process handles one raw webhook body end to end. The delivery is recorded
// before any processing so a crash mid-way still leaves an audit row. The
// returned error describes the processing failure; the delivery row carries
// the same message with status failed.
func (p *Processor) Process(ctx context.Context, body []byte) error {
	eventID := uuid.NewString()

	payload, parseErr := ParsePayload(body)

	ev := model.WebhookEvent{
		ID:         eventID,
		Status:     model.WebhookEventReceived,
		Payload:    body,
		ReceivedAt: p.now().UTC(),
	}
	if payload != nil {
		ev.Event = payload.Event
		ev.OpportunityID = payload.OpportunityID
	}
	if err := p.store.RecordWebhookEvent(ctx, ev); err != nil {
		return eris.Wrap(err, "webhook: record delivery")
	}

	if parseErr != nil {
		p.fail(ctx, eventID, parseErr)
		return parseErr
	}

	if err := p.apply(ctx, payload); err != nil {
		p.fail(ctx, eventID, err)
		return err
	}

	if err := p.store.MarkWebhookEvent(ctx, eventID, model.WebhookEventProcessed, ""); err != nil {
		return eris.Wrap(err, "webhook: mark processed")
	}

	zap.L().Info("webhook processed",
		zap.String("event_id", eventID),
		zap.String("event", payload.Event),
		zap.Int("opportunity_id", payload.OpportunityID),
	)
	return nil
}

// apply updates the mirror for one parsed payload, refetching from the API
// when the delivery carried only an id. Delete events remove the mirror row
// and its forecast metadata.
func (p *Processor) apply(ctx context.Context, payload *Payload) error {
	if payload.Deleted() {
		err := resilience.Do(ctx, p.retry, func(ctx context.Context) error {
			return p.store.DeleteOpportunity(ctx, payload.OpportunityID)
		})
		return eris.Wrapf(err, "webhook: delete opportunity %d", payload.OpportunityID)
	}

	opp := payload.Opportunity
	if opp == nil {
		if p.client == nil {
			return eris.Errorf("webhook: event %q has no body and no API client is configured", payload.Event)
		}
		fetched, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) (*currentrms.Opportunity, error) {
			return p.client.GetOpportunity(ctx, payload.OpportunityID)
		})
		if err != nil {
			return eris.Wrapf(err, "webhook: fetch opportunity %d", payload.OpportunityID)
		}
		if fetched == nil {
			return eris.Errorf("webhook: opportunity %d not found upstream", payload.OpportunityID)
		}
		opp = fetched
	}

	err := resilience.Do(ctx, p.retry, func(ctx context.Context) error {
		return p.store.UpsertOpportunity(ctx, ToModel(opp))
	})
	if err != nil {
		return eris.Wrapf(err, "webhook: upsert opportunity %d", opp.ID)
	}
	return nil
}

// fail marks the delivery failed. Marking is best effort; a second store
// failure here is only logged.
func (p *Processor) fail(ctx context.Context, eventID string, cause error) {
	if err := p.store.MarkWebhookEvent(ctx, eventID, model.WebhookEventFailed, cause.Error()); err != nil {
		zap.L().Error("failed to mark webhook event",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
	}
}
