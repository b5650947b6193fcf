package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/xthestreams/current-rms-watcher/internal/db"
	"github.com/xthestreams/current-rms-watcher/internal/model"
	"github.com/xthestreams/current-rms-watcher/pkg/currentrms"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for the
// hot webhook-ingest and dashboard-read paths.
var preparedStatements = map[string]string{
	"upsert_opportunity": `INSERT INTO opportunities
		(id, subject, organisation_name, owner_name, starts_at, ends_at, state_name,
		 charge_total, provisional_cost_total, predicted_cost_total, actual_cost_total, updated_at, mirrored_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
		 subject = $2, organisation_name = $3, owner_name = $4, starts_at = $5, ends_at = $6,
		 state_name = $7, charge_total = $8, provisional_cost_total = $9,
		 predicted_cost_total = $10, actual_cost_total = $11, updated_at = $12, mirrored_at = $13`,
	"get_opportunity": `SELECT id, subject, organisation_name, owner_name, starts_at, ends_at, state_name,
		 charge_total, provisional_cost_total, predicted_cost_total, actual_cost_total, updated_at
		 FROM opportunities WHERE id = $1`,
	"get_forecast_metadata": `SELECT opportunity_id, probability, is_commit, revenue_override, profit_override,
		 is_excluded, exclusion_reason, notes, last_reviewed_at, reviewed_by
		 FROM forecast_metadata WHERE opportunity_id = $1`,
	"record_webhook_event": `INSERT INTO webhook_events (id, event, opportunity_id, payload, status, error, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"mark_webhook_event": `UPDATE webhook_events SET status = $1, error = $2 WHERE id = $3`,
	"get_setting":        `SELECT value FROM settings WHERE key = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., the backfill's bulk upsert).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS opportunities (
	id                     BIGINT PRIMARY KEY,
	subject                TEXT NOT NULL DEFAULT '',
	organisation_name      TEXT NOT NULL DEFAULT '',
	owner_name             TEXT NOT NULL DEFAULT '',
	starts_at              TIMESTAMPTZ,
	ends_at                TIMESTAMPTZ,
	state_name             TEXT NOT NULL DEFAULT '',
	charge_total           DOUBLE PRECISION NOT NULL DEFAULT 0,
	provisional_cost_total DOUBLE PRECISION NOT NULL DEFAULT 0,
	predicted_cost_total   DOUBLE PRECISION NOT NULL DEFAULT 0,
	actual_cost_total      DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	mirrored_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS forecast_metadata (
	opportunity_id   BIGINT PRIMARY KEY,
	probability      INTEGER NOT NULL DEFAULT 0,
	is_commit        BOOLEAN NOT NULL DEFAULT false,
	revenue_override DOUBLE PRECISION,
	profit_override  DOUBLE PRECISION,
	is_excluded      BOOLEAN NOT NULL DEFAULT false,
	exclusion_reason TEXT NOT NULL DEFAULT '',
	notes            TEXT NOT NULL DEFAULT '',
	last_reviewed_at TIMESTAMPTZ,
	reviewed_by      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS webhook_events (
	id             TEXT PRIMARY KEY,
	event          TEXT NOT NULL,
	opportunity_id BIGINT NOT NULL DEFAULT 0,
	payload        JSONB,
	status         TEXT NOT NULL DEFAULT 'received',
	error          TEXT NOT NULL DEFAULT '',
	received_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_opportunities_starts_at ON opportunities(starts_at);
CREATE INDEX IF NOT EXISTS idx_opportunities_state ON opportunities(state_name);
CREATE INDEX IF NOT EXISTS idx_opportunities_owner ON opportunities(owner_name);
CREATE INDEX IF NOT EXISTS idx_webhook_events_received ON webhook_events(received_at DESC);
CREATE INDEX IF NOT EXISTS idx_webhook_events_status ON webhook_events(status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertOpportunity(ctx context.Context, opp model.Opportunity) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO opportunities
		 (id, subject, organisation_name, owner_name, starts_at, ends_at, state_name,
		  charge_total, provisional_cost_total, predicted_cost_total, actual_cost_total, updated_at, mirrored_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO UPDATE SET
		  subject = $2, organisation_name = $3, owner_name = $4, starts_at = $5, ends_at = $6,
		  state_name = $7, charge_total = $8, provisional_cost_total = $9,
		  predicted_cost_total = $10, actual_cost_total = $11, updated_at = $12, mirrored_at = $13`,
		opp.ID, opp.Subject, opp.OrganisationName, opp.OwnerName, opp.StartsAt, opp.EndsAt,
		opp.StateName, opp.ChargeTotal.Float(), opp.ProvisionalCostTotal.Float(),
		opp.PredictedCostTotal.Float(), opp.ActualCostTotal.Float(), opp.UpdatedAt, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert opportunity %d", opp.ID)
}

func (s *PostgresStore) GetOpportunity(ctx context.Context, id int) (*model.Opportunity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, subject, organisation_name, owner_name, starts_at, ends_at, state_name,
		 charge_total, provisional_cost_total, predicted_cost_total, actual_cost_total, updated_at
		 FROM opportunities WHERE id = $1`,
		id,
	)
	opp, err := scanOpportunity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get opportunity %d", id)
	}
	return opp, nil
}

func (s *PostgresStore) DeleteOpportunity(ctx context.Context, id int) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM forecast_metadata WHERE opportunity_id = $1`, id); err != nil {
		return eris.Wrapf(err, "postgres: delete forecast metadata %d", id)
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM opportunities WHERE id = $1`, id)
	return eris.Wrapf(err, "postgres: delete opportunity %d", id)
}

func (s *PostgresStore) ListOpportunities(ctx context.Context, filter OpportunityFilter) ([]model.Opportunity, error) {
	query := `SELECT id, subject, organisation_name, owner_name, starts_at, ends_at, state_name,
		 charge_total, provisional_cost_total, predicted_cost_total, actual_cost_total, updated_at
		 FROM opportunities WHERE true`
	args := []any{}
	argIdx := 1

	if filter.State != "" {
		query += fmt.Sprintf(` AND state_name = $%d`, argIdx)
		args = append(args, filter.State)
		argIdx++
	}
	if filter.Owner != "" {
		query += fmt.Sprintf(` AND owner_name = $%d`, argIdx)
		args = append(args, filter.Owner)
		argIdx++
	}
	if filter.From != nil {
		query += fmt.Sprintf(` AND starts_at >= $%d`, argIdx)
		args = append(args, *filter.From)
		argIdx++
	}
	if filter.To != nil {
		query += fmt.Sprintf(` AND starts_at <= $%d`, argIdx)
		args = append(args, *filter.To)
		argIdx++
	}
	query += ` ORDER BY starts_at ASC NULLS LAST, id ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list opportunities")
	}
	defer rows.Close()

	var opps []model.Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan opportunity")
		}
		opps = append(opps, *opp)
	}
	return opps, eris.Wrap(rows.Err(), "postgres: list opportunities iterate")
}

// scanOpportunity reads one opportunity row from a pgx.Row or pgx.Rows.
func scanOpportunity(row pgx.Row) (*model.Opportunity, error) {
	var opp model.Opportunity
	var charge, provisional, predicted, actual float64
	if err := row.Scan(&opp.ID, &opp.Subject, &opp.OrganisationName, &opp.OwnerName,
		&opp.StartsAt, &opp.EndsAt, &opp.StateName,
		&charge, &provisional, &predicted, &actual, &opp.UpdatedAt); err != nil {
		return nil, err
	}
	opp.ChargeTotal = currentrms.Money(charge)
	opp.ProvisionalCostTotal = currentrms.Money(provisional)
	opp.PredictedCostTotal = currentrms.Money(predicted)
	opp.ActualCostTotal = currentrms.Money(actual)
	return &opp, nil
}

func (s *PostgresStore) GetForecastMetadata(ctx context.Context, oppID int) (*model.ForecastMetadata, error) {
	var m model.ForecastMetadata
	err := s.pool.QueryRow(ctx,
		`SELECT opportunity_id, probability, is_commit, revenue_override, profit_override,
		 is_excluded, exclusion_reason, notes, last_reviewed_at, reviewed_by
		 FROM forecast_metadata WHERE opportunity_id = $1`,
		oppID,
	).Scan(&m.OpportunityID, &m.Probability, &m.IsCommit, &m.RevenueOverride, &m.ProfitOverride,
		&m.IsExcluded, &m.ExclusionReason, &m.Notes, &m.LastReviewedAt, &m.ReviewedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get forecast metadata %d", oppID)
	}
	return &m, nil
}

func (s *PostgresStore) ListForecastMetadata(ctx context.Context) ([]model.ForecastMetadata, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT opportunity_id, probability, is_commit, revenue_override, profit_override,
		 is_excluded, exclusion_reason, notes, last_reviewed_at, reviewed_by
		 FROM forecast_metadata`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list forecast metadata")
	}
	defer rows.Close()

	var metas []model.ForecastMetadata
	for rows.Next() {
		var m model.ForecastMetadata
		if err := rows.Scan(&m.OpportunityID, &m.Probability, &m.IsCommit, &m.RevenueOverride,
			&m.ProfitOverride, &m.IsExcluded, &m.ExclusionReason, &m.Notes,
			&m.LastReviewedAt, &m.ReviewedBy); err != nil {
			return nil, eris.Wrap(err, "postgres: scan forecast metadata")
		}
		metas = append(metas, m)
	}
	return metas, eris.Wrap(rows.Err(), "postgres: list forecast metadata iterate")
}

func (s *PostgresStore) UpsertForecastMetadata(ctx context.Context, meta model.ForecastMetadata) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO forecast_metadata
		 (opportunity_id, probability, is_commit, revenue_override, profit_override,
		  is_excluded, exclusion_reason, notes, last_reviewed_at, reviewed_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (opportunity_id) DO UPDATE SET
		  probability = $2, is_commit = $3, revenue_override = $4, profit_override = $5,
		  is_excluded = $6, exclusion_reason = $7, notes = $8, last_reviewed_at = $9, reviewed_by = $10`,
		meta.OpportunityID, meta.Probability, meta.IsCommit, meta.RevenueOverride, meta.ProfitOverride,
		meta.IsExcluded, meta.ExclusionReason, meta.Notes, meta.LastReviewedAt, meta.ReviewedBy,
	)
	return eris.Wrapf(err, "postgres: upsert forecast metadata %d", meta.OpportunityID)
}

func (s *PostgresStore) DeleteForecastMetadata(ctx context.Context, oppID int) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM forecast_metadata WHERE opportunity_id = $1`, oppID)
	return eris.Wrapf(err, "postgres: delete forecast metadata %d", oppID)
}

func (s *PostgresStore) RecordWebhookEvent(ctx context.Context, ev model.WebhookEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO webhook_events (id, event, opportunity_id, payload, status, error, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.Event, ev.OpportunityID, ev.Payload, string(ev.Status), ev.Error, ev.ReceivedAt,
	)
	return eris.Wrapf(err, "postgres: record webhook event %s", ev.ID)
}

func (s *PostgresStore) MarkWebhookEvent(ctx context.Context, id string, status model.WebhookEventStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE webhook_events SET status = $1, error = $2 WHERE id = $3`,
		string(status), errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark webhook event %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("webhook event not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) ListWebhookEvents(ctx context.Context, filter EventFilter) ([]model.WebhookEvent, error) {
	query := `SELECT id, event, opportunity_id, payload, status, error, received_at FROM webhook_events WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY received_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list webhook events")
	}
	defer rows.Close()

	var events []model.WebhookEvent
	for rows.Next() {
		var ev model.WebhookEvent
		var status string
		if err := rows.Scan(&ev.ID, &ev.Event, &ev.OpportunityID, &ev.Payload, &status, &ev.Error, &ev.ReceivedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan webhook event")
		}
		ev.Status = model.WebhookEventStatus(status)
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list webhook events iterate")
}

func (s *PostgresStore) GetSetting(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get setting %s", key)
	}
	return value, nil
}

func (s *PostgresStore) PutSetting(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = $3`,
		key, value, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put setting %s", key)
}
