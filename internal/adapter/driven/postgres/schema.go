package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventsSchema = `
CREATE TABLE IF NOT EXISTS alert_events (
	sequence    BIGSERIAL PRIMARY KEY,
	event_id    UUID NOT NULL UNIQUE,
	alert_id    UUID NOT NULL,
	version     BIGINT NOT NULL,
	event_type  TEXT NOT NULL,
	payload     JSONB NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	UNIQUE (alert_id, version)
);
`

const documentsSchema = `
CREATE TABLE IF NOT EXISTS alert_documents (
	alert_id   TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	status     TEXT GENERATED ALWAYS AS (doc->>'status') STORED,
	doc        JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS alert_documents_status_idx ON alert_documents (status, created_at DESC);
CREATE INDEX IF NOT EXISTS alert_documents_created_idx ON alert_documents (created_at DESC);
`

// Migrate creates the event and document tables if they do not exist
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, eventsSchema); err != nil {
		return errors.Wrap(err, "create event tables")
	}
	if _, err := pool.Exec(ctx, documentsSchema); err != nil {
		return errors.Wrap(err, "create document tables")
	}
	return nil
}
