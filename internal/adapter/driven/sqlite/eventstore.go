// Package sqlite provides an embedded SQLite event store.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/pkg/observability"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const (
	eventsTable = "alert_events"

	schema = `
CREATE TABLE IF NOT EXISTS alert_events (
	sequence    INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id    TEXT NOT NULL UNIQUE,
	alert_id    TEXT NOT NULL,
	version     INTEGER NOT NULL,
	event_type  TEXT NOT NULL,
	payload     TEXT NOT NULL,
	occurred_at INTEGER NOT NULL,
	UNIQUE (alert_id, version)
);
`
)

// EventStore implements port.EventStore on a local SQLite file
type EventStore struct {
	db      *sql.DB
	metrics *observability.Metrics
}

// Open opens the database at path and creates the schema. metrics may be
// nil.
func Open(path string, metrics *observability.Metrics) (*EventStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create storage dir")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite db")
	}
	// One connection makes the version check and insert atomic
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite db")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create schema")
	}
	return &EventStore{db: db, metrics: metrics}, nil
}

// Ping checks that the database is reachable
func (s *EventStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the SQLite handle
func (s *EventStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *EventStore) Append(ctx context.Context, alertID uuid.UUID, expectedVersion int64, events []domain.Event) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.metrics.ObserveQuery("append", eventsTable, time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM alert_events WHERE alert_id = ?`,
		alertID.String(),
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
		res, err := tx.ExecContext(ctx,
			`INSERT INTO alert_events (event_id, alert_id, version, event_type, payload, occurred_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID.String(), alertID.String(), e.Version, string(e.Type), string(payload), e.OccurredAt.UTC().UnixNano(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, domain.ErrConcurrencyConflict
			}
			return nil, errors.Wrap(err, "insert event")
		}
		if e.Sequence, err = res.LastInsertId(); err != nil {
			return nil, errors.Wrap(err, "sequence")
		}
		stored[i] = e
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit")
	}
	return stored, nil
}

func (s *EventStore) Load(ctx context.Context, alertID uuid.UUID) ([]domain.Event, error) {
	defer s.metrics.ObserveQuery("load", eventsTable, time.Now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT sequence, event_id, alert_id, version, event_type, payload, occurred_at
		 FROM alert_events WHERE alert_id = ? ORDER BY version`,
		alertID.String(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	return scanEvents(rows)
}

func (s *EventStore) LoadAfter(ctx context.Context, afterSequence int64, limit int) ([]domain.Event, error) {
	defer s.metrics.ObserveQuery("load_after", eventsTable, time.Now())

	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT sequence, event_id, alert_id, version, event_type, payload, occurred_at
		 FROM alert_events WHERE sequence > ? ORDER BY sequence LIMIT ?`,
		afterSequence, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e                domain.Event
			eventID, alertID string
			eventType        string
			payload          string
			occurredAtNanos  int64
		)
		if err := rows.Scan(&e.Sequence, &eventID, &alertID, &e.Version, &eventType, &payload, &occurredAtNanos); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}

		var err error
		if e.ID, err = uuid.Parse(eventID); err != nil {
			return nil, errors.Wrapf(err, "event id of sequence %d", e.Sequence)
		}
		if e.AlertID, err = uuid.Parse(alertID); err != nil {
			return nil, errors.Wrapf(err, "alert id of sequence %d", e.Sequence)
		}
		e.Type = domain.EventType(eventType)
		e.OccurredAt = time.Unix(0, occurredAtNanos).UTC()
		if e.Payload, err = domain.DecodePayload(e.Type, []byte(payload)); err != nil {
			return nil, errors.Wrapf(err, "decode event %d", e.Sequence)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate events")
	}
	return events, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
