package service

import (
	"context"
	"strings"
	"time"

	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
)

// AlertQueryService implements port.AlertQueryService over the read store
type AlertQueryService struct {
	store port.ReadStore
}

// NewAlertQueryService creates a new query service
func NewAlertQueryService(store port.ReadStore) *AlertQueryService {
	return &AlertQueryService{store: store}
}

// GetByID returns one read-model document
func (s *AlertQueryService) GetByID(ctx context.Context, id string) (*domain.AlertDocument, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &domain.ValidationError{Field: "alertId", Message: "must not be empty"}
	}
	return s.store.Get(ctx, id)
}

// List returns all documents, newest first
func (s *AlertQueryService) List(ctx context.Context, page, limit int) (*port.AlertDocumentList, error) {
	return s.Search(ctx, domain.AlertQuery{Page: page, Limit: limit})
}

// ByStatus returns documents in the given status
func (s *AlertQueryService) ByStatus(ctx context.Context, status domain.AlertStatus, page, limit int) (*port.AlertDocumentList, error) {
	parsed, ok := domain.ParseStatus(string(status))
	if !ok {
		return nil, &domain.ValidationError{Field: "status", Message: "unknown status " + string(status)}
	}
	return s.Search(ctx, domain.AlertQuery{Status: parsed, Page: page, Limit: limit})
}

// ByTimeRange returns documents created within [from, to]
func (s *AlertQueryService) ByTimeRange(ctx context.Context, from, to time.Time, page, limit int) (*port.AlertDocumentList, error) {
	return s.Search(ctx, domain.AlertQuery{From: &from, To: &to, Page: page, Limit: limit})
}

// ByKeyword returns documents whose description or source contains keyword
func (s *AlertQueryService) ByKeyword(ctx context.Context, keyword string, page, limit int) (*port.AlertDocumentList, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, &domain.ValidationError{Field: "q", Message: "must not be blank"}
	}
	return s.Search(ctx, domain.AlertQuery{Keyword: keyword, Page: page, Limit: limit})
}

// Search runs a combined query
func (s *AlertQueryService) Search(ctx context.Context, query domain.AlertQuery) (*port.AlertDocumentList, error) {
	ctx, span := observability.StartSpan(ctx, "alert.search")
	defer span.End()

	if query.From != nil && query.To != nil && query.From.After(*query.To) {
		return nil, &domain.ValidationError{Field: "from", Message: "must not be after to"}
	}
	query = query.Normalize()
	span.SetAttributes(
		attribute.String("query.status", string(query.Status)),
		attribute.Int("query.page", query.Page),
		attribute.Int("query.limit", query.Limit),
	)

	result, err := s.store.Search(ctx, query)
	if err != nil {
		observability.RecordError(ctx, err)
		return nil, err
	}

	return &port.AlertDocumentList{
		Alerts: result.Items,
		Total:  result.Total,
		Page:   query.Page,
		Limit:  query.Limit,
	}, nil
}
