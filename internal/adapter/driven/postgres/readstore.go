package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/pkg/observability"
)

const documentsTable = "alert_documents"

// ReadStore implements port.ReadStore as a JSONB document table
type ReadStore struct {
	pool    *pgxpool.Pool
	metrics *observability.Metrics
}

// NewReadStore creates a new read store. metrics may be nil.
func NewReadStore(pool *pgxpool.Pool, metrics *observability.Metrics) *ReadStore {
	return &ReadStore{pool: pool, metrics: metrics}
}

func (s *ReadStore) Upsert(ctx context.Context, doc domain.AlertDocument) error {
	defer s.metrics.ObserveQuery("upsert", documentsTable, time.Now())

	raw, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "encode document")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO alert_documents (alert_id, created_at, doc) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (alert_id) DO UPDATE SET created_at = EXCLUDED.created_at, doc = EXCLUDED.doc`,
		doc.AlertID, doc.CreatedAt, string(raw),
	)
	if err != nil {
		return errors.Wrap(err, "upsert document")
	}
	return nil
}

func (s *ReadStore) Get(ctx context.Context, alertID string) (*domain.AlertDocument, error) {
	defer s.metrics.ObserveQuery("get", documentsTable, time.Now())

	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM alert_documents WHERE alert_id = $1`, alertID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, errors.Wrap(err, "get document")
	}

	var doc domain.AlertDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	return &doc, nil
}

func (s *ReadStore) Update(ctx context.Context, update domain.DocumentUpdate) error {
	defer s.metrics.ObserveQuery("update", documentsTable, time.Now())

	raw, err := json.Marshal(update.Fields)
	if err != nil {
		return errors.Wrap(err, "encode fields")
	}
	tag, err := s.pool.Exec(ctx, updateSQL, update.AlertID, string(raw))
	if err != nil {
		return errors.Wrap(err, "update document")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// BulkUpdate sends all updates in one batch, which runs as one implicit
// transaction. Updates for missing documents are reported after the rest
// were applied.
func (s *ReadStore) BulkUpdate(ctx context.Context, updates []domain.DocumentUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	defer s.metrics.ObserveQuery("bulk_update", documentsTable, time.Now())

	batch := &pgx.Batch{}
	for _, u := range updates {
		raw, err := json.Marshal(u.Fields)
		if err != nil {
			return errors.Wrapf(err, "encode fields for %s", u.AlertID)
		}
		batch.Queue(updateSQL, u.AlertID, string(raw))
	}

	results := s.pool.SendBatch(ctx, batch)
	missing := 0
	for range updates {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return errors.Wrap(err, "bulk update")
		}
		if tag.RowsAffected() == 0 {
			missing++
		}
	}
	if err := results.Close(); err != nil {
		return errors.Wrap(err, "close batch")
	}
	if missing > 0 {
		return errors.Wrapf(domain.ErrDocumentNotFound, "%d of %d updates", missing, len(updates))
	}
	return nil
}

func (s *ReadStore) Search(ctx context.Context, query domain.AlertQuery) (*domain.DocumentPage, error) {
	defer s.metrics.ObserveQuery("search", documentsTable, time.Now())

	query = query.Normalize()
	where, args := searchFilter(query)

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM alert_documents`+where, args...).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "count documents")
	}

	args = append(args, query.Limit, query.Offset())
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT doc FROM alert_documents%s ORDER BY created_at DESC, alert_id LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args),
	), args...)
	if err != nil {
		return nil, errors.Wrap(err, "search documents")
	}
	defer rows.Close()

	items := make([]domain.AlertDocument, 0, query.Limit)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "scan document")
		}
		var doc domain.AlertDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, errors.Wrap(err, "decode document")
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate documents")
	}

	return &domain.DocumentPage{Items: items, Total: total, Page: query.Page, Limit: query.Limit}, nil
}

// Reset drops and recreates the document table
func (s *ReadStore) Reset(ctx context.Context) error {
	defer s.metrics.ObserveQuery("reset", documentsTable, time.Now())

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DROP TABLE IF EXISTS alert_documents`); err != nil {
		return errors.Wrap(err, "drop documents")
	}
	if _, err := tx.Exec(ctx, documentsSchema); err != nil {
		return errors.Wrap(err, "create documents")
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// updateSQL merges fields into the document. A versioned update that is not
// newer than the stored document leaves it unchanged but still matches the
// row, so it is not reported as missing.
const updateSQL = `UPDATE alert_documents SET doc = CASE
		WHEN NOT ($2::jsonb ? 'version')
			OR COALESCE((doc->>'version')::bigint, 0) < ($2::jsonb->>'version')::bigint
		THEN doc || $2::jsonb
		ELSE doc
	END
	WHERE alert_id = $1`

func searchFilter(q domain.AlertQuery) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if q.Status != "" {
		add("status = $%d", string(q.Status))
	}
	if q.From != nil {
		add("created_at >= $%d", *q.From)
	}
	if q.To != nil {
		add("created_at <= $%d", *q.To)
	}
	if q.Keyword != "" {
		pattern := "%" + likeEscaper.Replace(q.Keyword) + "%"
		args = append(args, pattern)
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(doc->>'description' ILIKE $%d OR doc->>'source' ILIKE $%d)", n, n))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
