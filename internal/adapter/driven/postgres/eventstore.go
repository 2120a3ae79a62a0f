package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/pkg/observability"
)

const (
	eventsTable = "alert_events"

	// appendLockKey serializes appends so sequences become visible in order
	appendLockKey = 7_204_311

	uniqueViolation = "23505"
)

// EventStore implements port.EventStore on PostgreSQL
type EventStore struct {
	pool    *pgxpool.Pool
	metrics *observability.Metrics
}

// NewEventStore creates a new event store. metrics may be nil.
func NewEventStore(pool *pgxpool.Pool, metrics *observability.Metrics) *EventStore {
	return &EventStore{pool: pool, metrics: metrics}
}

// Append stores events if the alert is still at expectedVersion
func (s *EventStore) Append(ctx context.Context, alertID uuid.UUID, expectedVersion int64, events []domain.Event) ([]domain.Event, error) {
	defer s.metrics.ObserveQuery("append", eventsTable, time.Now())

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
		return nil, errors.Wrap(err, "lock")
	}

	var current int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM alert_events WHERE alert_id = $1`,
		alertID,
	).Scan(&current)
	if err != nil {
		return nil, errors.Wrap(err, "current version")
	}
	if current != expectedVersion {
		return nil, domain.ErrConcurrencyConflict
	}

	stored := make([]domain.Event, len(events))
	for i, e := range events {
		payload, err := domain.EncodePayload(e.Payload)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s", e.Type)
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO alert_events (event_id, alert_id, version, event_type, payload, occurred_at)
			 VALUES ($1, $2, $3, $4, $5::jsonb, $6)
			 RETURNING sequence`,
			e.ID, alertID, e.Version, string(e.Type), string(payload), e.OccurredAt,
		).Scan(&e.Sequence)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, domain.ErrConcurrencyConflict
			}
			return nil, errors.Wrap(err, "insert event")
		}
		stored[i] = e
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConcurrencyConflict
		}
		return nil, errors.Wrap(err, "commit")
	}
	return stored, nil
}

// Load returns one alert's history in version order
func (s *EventStore) Load(ctx context.Context, alertID uuid.UUID) ([]domain.Event, error) {
	defer s.metrics.ObserveQuery("load", eventsTable, time.Now())

	rows, err := s.pool.Query(ctx,
		`SELECT sequence, event_id, alert_id, version, event_type, payload, occurred_at
		 FROM alert_events WHERE alert_id = $1 ORDER BY version`,
		alertID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	return scanEvents(rows)
}

// LoadAfter returns events after afterSequence in global order
func (s *EventStore) LoadAfter(ctx context.Context, afterSequence int64, limit int) ([]domain.Event, error) {
	defer s.metrics.ObserveQuery("load_after", eventsTable, time.Now())

	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT sequence, event_id, alert_id, version, event_type, payload, occurred_at
		 FROM alert_events WHERE sequence > $1 ORDER BY sequence LIMIT $2`,
		afterSequence, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]domain.Event, error) {
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e         domain.Event
			eventType string
			payload   []byte
		)
		if err := rows.Scan(&e.Sequence, &e.ID, &e.AlertID, &e.Version, &eventType, &payload, &e.OccurredAt); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		e.Type = domain.EventType(eventType)
		e.OccurredAt = e.OccurredAt.UTC()

		p, err := domain.DecodePayload(e.Type, payload)
		if err != nil {
			return nil, errors.Wrapf(err, "decode event %d", e.Sequence)
		}
		e.Payload = p
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate events")
	}
	return events, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
