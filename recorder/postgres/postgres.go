// Package postgres implements recorder.ProcessRecorder against PostgreSQL
// using pgx/v5, following the teacher's own transaction idiom
// (pool.Begin -> deferred Rollback -> ... -> Commit, see
// apps/abc-service/internal/service/item_service.go) generalized from one
// aggregate write + one outbox row to an arbitrary batch of stored events +
// one optional tracking row, all inside one pgx.Tx so notification ids are
// reserved (via a row-locked counter, not a bigserial) and inserted in the
// same transaction, leaving no gaps on rollback.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arc-self/eventcore/domain"
	"github.com/arc-self/eventcore/recorder"
)

// Connect parses dsn and opens an OTel-instrumented connection pool, the
// same pattern every teacher service's main.go uses:
// pgxpool.ParseConfig + otelpgx.NewTracer() wired into ConnConfig.Tracer.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, &domain.DatastoreError{Op: "parse dsn", Err: err}
	}
	cfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, &domain.DatastoreError{Op: "connect", Err: err}
	}
	return pool, nil
}

// uniqueViolation is Postgres's SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// Recorder is a PostgreSQL-backed recorder.ProcessRecorder. It expects the
// four tables created by Migrate to already exist.
type Recorder struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool. Callers construct the pool themselves (see
// cmd/notifyserver) with otelpgx.NewTracer() wired into
// pgxpool.ParseConfig(...).ConnConfig.Tracer, the same OTel-instrumented
// pattern audit-service's main.go uses.
func New(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Migrate creates the events, notifications, and tracking tables if they do
// not already exist. Intended for demos and tests; production deployments
// are expected to manage schema via their own migration tooling.
func (r *Recorder) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS eventcore_events (
	originator_id      uuid        NOT NULL,
	originator_version  bigint      NOT NULL,
	topic              text        NOT NULL,
	state              bytea       NOT NULL,
	PRIMARY KEY (originator_id, originator_version)
);

CREATE TABLE IF NOT EXISTS eventcore_notifications (
	id                  bigint      PRIMARY KEY,
	originator_id       uuid        NOT NULL,
	originator_version  bigint      NOT NULL,
	topic               text        NOT NULL,
	state               bytea       NOT NULL
);

CREATE TABLE IF NOT EXISTS eventcore_tracking (
	upstream_name    text   NOT NULL,
	notification_id  bigint NOT NULL,
	PRIMARY KEY (upstream_name, notification_id)
);

-- Single-row counter guarding the next notification id. Advancing it is
-- done under a row lock taken inside the same transaction that inserts the
-- notifications it allocates, so a rollback (duplicate version, aborted
-- write) also rolls back the counter advance and leaves no gap — a
-- bigserial/sequence column can't give that guarantee, since sequences
-- advance outside the transaction and never roll back.
CREATE TABLE IF NOT EXISTS eventcore_notification_seq (
	id       smallint PRIMARY KEY,
	next_id  bigint   NOT NULL
);

INSERT INTO eventcore_notification_seq (id, next_id) VALUES (1, 1)
ON CONFLICT (id) DO NOTHING;
`)
	if err != nil {
		return &domain.DatastoreError{Op: "migrate", Err: err}
	}
	return nil
}

// InsertEvents implements recorder.AggregateRecorder.
func (r *Recorder) InsertEvents(ctx context.Context, items []recorder.StoredItem) error {
	return r.InsertEventsWithTracking(ctx, items, nil)
}

// InsertEventsWithTracking implements recorder.ProcessRecorder: every item
// and its notification row, plus the optional tracking row, are written in
// one pgx.Tx. A unique-constraint violation on any statement — duplicate
// (originator_id, originator_version) or duplicate tracking row — rolls
// back the whole transaction and surfaces as *domain.IntegrityError.
func (r *Recorder) InsertEventsWithTracking(ctx context.Context, items []recorder.StoredItem, tracking *recorder.Tracking) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return &domain.DatastoreError{Op: "begin insert_events", Err: err}
	}
	defer tx.Rollback(ctx)

	if tracking != nil {
		if _, err := tx.Exec(ctx,
			`INSERT INTO eventcore_tracking (upstream_name, notification_id) VALUES ($1, $2)`,
			tracking.UpstreamName, tracking.NotificationID,
		); err != nil {
			if isUniqueViolation(err) {
				return domain.NewIntegrityError("duplicate tracking row", err)
			}
			return &domain.DatastoreError{Op: "insert tracking", Err: err}
		}
	}

	var nextID uint64
	if len(items) > 0 {
		// FOR UPDATE serializes writers on this single row: a concurrent
		// insert blocks here until this transaction commits or rolls back,
		// and a rollback (duplicate version below, or any later failure)
		// undoes the advance in the same statement that reserved it, so the
		// ids handed out are always gap-free and strictly increasing.
		if err := tx.QueryRow(ctx,
			`SELECT next_id FROM eventcore_notification_seq WHERE id = 1 FOR UPDATE`,
		).Scan(&nextID); err != nil {
			return &domain.DatastoreError{Op: "lock notification_seq", Err: err}
		}
		if _, err := tx.Exec(ctx,
			`UPDATE eventcore_notification_seq SET next_id = $1 WHERE id = 1`,
			nextID+uint64(len(items)),
		); err != nil {
			return &domain.DatastoreError{Op: "advance notification_seq", Err: err}
		}
	}

	for i, item := range items {
		if _, err := tx.Exec(ctx,
			`INSERT INTO eventcore_events (originator_id, originator_version, topic, state) VALUES ($1, $2, $3, $4)`,
			item.OriginatorID, item.OriginatorVersion, item.Topic, item.State,
		); err != nil {
			if isUniqueViolation(err) {
				return domain.NewIntegrityError("duplicate (originator_id, originator_version)", err)
			}
			return &domain.DatastoreError{Op: "insert event", Err: err}
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO eventcore_notifications (id, originator_id, originator_version, topic, state) VALUES ($1, $2, $3, $4, $5)`,
			nextID+uint64(i), item.OriginatorID, item.OriginatorVersion, item.Topic, item.State,
		); err != nil {
			return &domain.DatastoreError{Op: "insert notification", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &domain.DatastoreError{Op: "commit insert_events", Err: err}
	}
	return nil
}

// SelectEvents implements recorder.AggregateRecorder.
func (r *Recorder) SelectEvents(ctx context.Context, originatorID domain.AggregateID, opts recorder.SelectOptions) ([]recorder.StoredItem, error) {
	if opts.Limit != nil && *opts.Limit <= 0 {
		return []recorder.StoredItem{}, nil
	}

	query := `SELECT originator_id, originator_version, topic, state FROM eventcore_events WHERE originator_id = $1`
	args := []interface{}{originatorID}

	if opts.GT != nil {
		args = append(args, *opts.GT)
		query += fmt.Sprintf(" AND originator_version > $%d", len(args))
	}
	if opts.LTE != nil {
		args = append(args, *opts.LTE)
		query += fmt.Sprintf(" AND originator_version <= $%d", len(args))
	}
	if opts.Desc {
		query += " ORDER BY originator_version DESC"
	} else {
		query += " ORDER BY originator_version ASC"
	}
	if opts.Limit != nil {
		args = append(args, *opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &domain.DatastoreError{Op: "select_events", Err: err}
	}
	defer rows.Close()

	var out []recorder.StoredItem
	for rows.Next() {
		var item recorder.StoredItem
		if err := rows.Scan(&item.OriginatorID, &item.OriginatorVersion, &item.Topic, &item.State); err != nil {
			return nil, &domain.DatastoreError{Op: "scan event", Err: err}
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.DatastoreError{Op: "select_events rows", Err: err}
	}
	if out == nil {
		out = []recorder.StoredItem{}
	}
	return out, nil
}

// SelectNotifications implements recorder.ApplicationRecorder.
func (r *Recorder) SelectNotifications(ctx context.Context, start uint64, limit int) ([]recorder.Notification, error) {
	if limit <= 0 {
		return []recorder.Notification{}, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, originator_id, originator_version, topic, state FROM eventcore_notifications WHERE id >= $1 ORDER BY id ASC LIMIT $2`,
		start, limit,
	)
	if err != nil {
		return nil, &domain.DatastoreError{Op: "select_notifications", Err: err}
	}
	defer rows.Close()

	var out []recorder.Notification
	for rows.Next() {
		var n recorder.Notification
		if err := rows.Scan(&n.ID, &n.OriginatorID, &n.OriginatorVersion, &n.Topic, &n.State); err != nil {
			return nil, &domain.DatastoreError{Op: "scan notification", Err: err}
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.DatastoreError{Op: "select_notifications rows", Err: err}
	}
	if out == nil {
		out = []recorder.Notification{}
	}
	return out, nil
}

// MaxNotificationID implements recorder.ApplicationRecorder.
func (r *Recorder) MaxNotificationID(ctx context.Context) (uint64, error) {
	var max uint64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM eventcore_notifications`).Scan(&max)
	if err != nil {
		return 0, &domain.DatastoreError{Op: "max_notification_id", Err: err}
	}
	return max, nil
}

// MaxTrackingID implements recorder.ProcessRecorder.
func (r *Recorder) MaxTrackingID(ctx context.Context, upstreamName string) (uint64, error) {
	var max uint64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(notification_id), 0) FROM eventcore_tracking WHERE upstream_name = $1`,
		upstreamName,
	).Scan(&max)
	if err != nil {
		return 0, &domain.DatastoreError{Op: "max_tracking_id", Err: err}
	}
	return max, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}

var _ recorder.ProcessRecorder = (*Recorder)(nil)
