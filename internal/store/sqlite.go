package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/xthestreams/current-rms-watcher/internal/model"
	"github.com/xthestreams/current-rms-watcher/pkg/currentrms"
)

// SQLiteStore implements Store using modernc.org/sqlite. It exists for local
// and single-node runs; the dashboard's hosted deployments use Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS opportunities (
	id                     INTEGER PRIMARY KEY,
	subject                TEXT NOT NULL DEFAULT '',
	organisation_name      TEXT NOT NULL DEFAULT '',
	owner_name             TEXT NOT NULL DEFAULT '',
	starts_at              TIMESTAMP,
	ends_at                TIMESTAMP,
	state_name             TEXT NOT NULL DEFAULT '',
	charge_total           REAL NOT NULL DEFAULT 0,
	provisional_cost_total REAL NOT NULL DEFAULT 0,
	predicted_cost_total   REAL NOT NULL DEFAULT 0,
	actual_cost_total      REAL NOT NULL DEFAULT 0,
	updated_at             TIMESTAMP NOT NULL,
	mirrored_at            TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS forecast_metadata (
	opportunity_id   INTEGER PRIMARY KEY,
	probability      INTEGER NOT NULL DEFAULT 0,
	is_commit        INTEGER NOT NULL DEFAULT 0,
	revenue_override REAL,
	profit_override  REAL,
	is_excluded      INTEGER NOT NULL DEFAULT 0,
	exclusion_reason TEXT NOT NULL DEFAULT '',
	notes            TEXT NOT NULL DEFAULT '',
	last_reviewed_at TIMESTAMP,
	reviewed_by      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS webhook_events (
	id             TEXT PRIMARY KEY,
	event          TEXT NOT NULL,
	opportunity_id INTEGER NOT NULL DEFAULT 0,
	payload        BLOB,
	status         TEXT NOT NULL DEFAULT 'received',
	error          TEXT NOT NULL DEFAULT '',
	received_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_opportunities_starts_at ON opportunities(starts_at);
CREATE INDEX IF NOT EXISTS idx_opportunities_state ON opportunities(state_name);
CREATE INDEX IF NOT EXISTS idx_webhook_events_received ON webhook_events(received_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertOpportunity(ctx context.Context, opp model.Opportunity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO opportunities
		 (id, subject, organisation_name, owner_name, starts_at, ends_at, state_name,
		  charge_total, provisional_cost_total, predicted_cost_total, actual_cost_total, updated_at, mirrored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		  subject = excluded.subject, organisation_name = excluded.organisation_name,
		  owner_name = excluded.owner_name, starts_at = excluded.starts_at, ends_at = excluded.ends_at,
		  state_name = excluded.state_name, charge_total = excluded.charge_total,
		  provisional_cost_total = excluded.provisional_cost_total,
		  predicted_cost_total = excluded.predicted_cost_total,
		  actual_cost_total = excluded.actual_cost_total,
		  updated_at = excluded.updated_at, mirrored_at = excluded.mirrored_at`,
		opp.ID, opp.Subject, opp.OrganisationName, opp.OwnerName, nullTime(opp.StartsAt), nullTime(opp.EndsAt),
		opp.StateName, opp.ChargeTotal.Float(), opp.ProvisionalCostTotal.Float(),
		opp.PredictedCostTotal.Float(), opp.ActualCostTotal.Float(), opp.UpdatedAt, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert opportunity %d", opp.ID)
}

func (s *SQLiteStore) GetOpportunity(ctx context.Context, id int) (*model.Opportunity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, subject, organisation_name, owner_name, starts_at, ends_at, state_name,
		 charge_total, provisional_cost_total, predicted_cost_total, actual_cost_total, updated_at
		 FROM opportunities WHERE id = ?`,
		id,
	)
	opp, err := scanSQLiteOpportunity(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get opportunity %d", id)
	}
	return opp, nil
}

func (s *SQLiteStore) DeleteOpportunity(ctx context.Context, id int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM forecast_metadata WHERE opportunity_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete forecast metadata %d", id)
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM opportunities WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: delete opportunity %d", id)
}

func (s *SQLiteStore) ListOpportunities(ctx context.Context, filter OpportunityFilter) ([]model.Opportunity, error) {
	query := `SELECT id, subject, organisation_name, owner_name, starts_at, ends_at, state_name,
		 charge_total, provisional_cost_total, predicted_cost_total, actual_cost_total, updated_at
		 FROM opportunities WHERE 1=1`
	args := []any{}

	if filter.State != "" {
		query += ` AND state_name = ?`
		args = append(args, filter.State)
	}
	if filter.Owner != "" {
		query += ` AND owner_name = ?`
		args = append(args, filter.Owner)
	}
	if filter.From != nil {
		query += ` AND starts_at >= ?`
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		query += ` AND starts_at <= ?`
		args = append(args, *filter.To)
	}
	query += ` ORDER BY starts_at ASC, id ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list opportunities")
	}
	defer rows.Close()

	var opps []model.Opportunity
	for rows.Next() {
		opp, err := scanSQLiteOpportunity(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan opportunity")
		}
		opps = append(opps, *opp)
	}
	return opps, eris.Wrap(rows.Err(), "sqlite: list opportunities iterate")
}

func scanSQLiteOpportunity(scan func(dest ...any) error) (*model.Opportunity, error) {
	var opp model.Opportunity
	var starts, ends sql.NullTime
	var charge, provisional, predicted, actual float64
	if err := scan(&opp.ID, &opp.Subject, &opp.OrganisationName, &opp.OwnerName,
		&starts, &ends, &opp.StateName,
		&charge, &provisional, &predicted, &actual, &opp.UpdatedAt); err != nil {
		return nil, err
	}
	if starts.Valid {
		t := starts.Time
		opp.StartsAt = &t
	}
	if ends.Valid {
		t := ends.Time
		opp.EndsAt = &t
	}
	opp.ChargeTotal = currentrms.Money(charge)
	opp.ProvisionalCostTotal = currentrms.Money(provisional)
	opp.PredictedCostTotal = currentrms.Money(predicted)
	opp.ActualCostTotal = currentrms.Money(actual)
	return &opp, nil
}

func (s *SQLiteStore) GetForecastMetadata(ctx context.Context, oppID int) (*model.ForecastMetadata, error) {
	m, err := scanSQLiteMetadata(s.db.QueryRowContext(ctx,
		`SELECT opportunity_id, probability, is_commit, revenue_override, profit_override,
		 is_excluded, exclusion_reason, notes, last_reviewed_at, reviewed_by
		 FROM forecast_metadata WHERE opportunity_id = ?`,
		oppID,
	).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get forecast metadata %d", oppID)
	}
	return m, nil
}

func (s *SQLiteStore) ListForecastMetadata(ctx context.Context) ([]model.ForecastMetadata, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT opportunity_id, probability, is_commit, revenue_override, profit_override,
		 is_excluded, exclusion_reason, notes, last_reviewed_at, reviewed_by
		 FROM forecast_metadata`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list forecast metadata")
	}
	defer rows.Close()

	var metas []model.ForecastMetadata
	for rows.Next() {
		m, err := scanSQLiteMetadata(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan forecast metadata")
		}
		metas = append(metas, *m)
	}
	return metas, eris.Wrap(rows.Err(), "sqlite: list forecast metadata iterate")
}

func scanSQLiteMetadata(scan func(dest ...any) error) (*model.ForecastMetadata, error) {
	var m model.ForecastMetadata
	var revenueOverride, profitOverride sql.NullFloat64
	var isCommit, isExcluded bool
	var lastReviewed sql.NullTime
	if err := scan(&m.OpportunityID, &m.Probability, &isCommit, &revenueOverride, &profitOverride,
		&isExcluded, &m.ExclusionReason, &m.Notes, &lastReviewed, &m.ReviewedBy); err != nil {
		return nil, err
	}
	m.IsCommit = isCommit
	m.IsExcluded = isExcluded
	if revenueOverride.Valid {
		v := revenueOverride.Float64
		m.RevenueOverride = &v
	}
	if profitOverride.Valid {
		v := profitOverride.Float64
		m.ProfitOverride = &v
	}
	if lastReviewed.Valid {
		t := lastReviewed.Time
		m.LastReviewedAt = &t
	}
	return &m, nil
}

func (s *SQLiteStore) UpsertForecastMetadata(ctx context.Context, meta model.ForecastMetadata) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO forecast_metadata
		 (opportunity_id, probability, is_commit, revenue_override, profit_override,
		  is_excluded, exclusion_reason, notes, last_reviewed_at, reviewed_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (opportunity_id) DO UPDATE SET
		  probability = excluded.probability, is_commit = excluded.is_commit,
		  revenue_override = excluded.revenue_override, profit_override = excluded.profit_override,
		  is_excluded = excluded.is_excluded, exclusion_reason = excluded.exclusion_reason,
		  notes = excluded.notes, last_reviewed_at = excluded.last_reviewed_at,
		  reviewed_by = excluded.reviewed_by`,
		meta.OpportunityID, meta.Probability, meta.IsCommit, nullFloat(meta.RevenueOverride),
		nullFloat(meta.ProfitOverride), meta.IsExcluded, meta.ExclusionReason, meta.Notes,
		nullTime(meta.LastReviewedAt), meta.ReviewedBy,
	)
	return eris.Wrapf(err, "sqlite: upsert forecast metadata %d", meta.OpportunityID)
}

func (s *SQLiteStore) DeleteForecastMetadata(ctx context.Context, oppID int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM forecast_metadata WHERE opportunity_id = ?`, oppID)
	return eris.Wrapf(err, "sqlite: delete forecast metadata %d", oppID)
}

func (s *SQLiteStore) RecordWebhookEvent(ctx context.Context, ev model.WebhookEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_events (id, event, opportunity_id, payload, status, error, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Event, ev.OpportunityID, ev.Payload, string(ev.Status), ev.Error, ev.ReceivedAt,
	)
	return eris.Wrapf(err, "sqlite: record webhook event %s", ev.ID)
}

func (s *SQLiteStore) MarkWebhookEvent(ctx context.Context, id string, status model.WebhookEventStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE webhook_events SET status = ?, error = ? WHERE id = ?`,
		string(status), errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark webhook event %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("webhook event not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) ListWebhookEvents(ctx context.Context, filter EventFilter) ([]model.WebhookEvent, error) {
	query := `SELECT id, event, opportunity_id, payload, status, error, received_at FROM webhook_events WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY received_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list webhook events")
	}
	defer rows.Close()

	var events []model.WebhookEvent
	for rows.Next() {
		var ev model.WebhookEvent
		var status string
		if err := rows.Scan(&ev.ID, &ev.Event, &ev.OpportunityID, &ev.Payload, &status, &ev.Error, &ev.ReceivedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan webhook event")
		}
		ev.Status = model.WebhookEventStatus(status)
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list webhook events iterate")
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get setting %s", key)
	}
	return value, nil
}

func (s *SQLiteStore) PutSetting(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put setting %s", key)
}

// nullTime converts a *time.Time to a driver-friendly NULL-able value.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// nullFloat converts a *float64 to a driver-friendly NULL-able value.
func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
