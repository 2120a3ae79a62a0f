package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/internal/core/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDocuments(store *mocks.MockReadStore) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	docs := []domain.AlertDocument{
		{AlertID: "a1", Status: domain.AlertStatusActive, Description: "Disk full on db-1", Source: "monitor", CreatedAt: base},
		{AlertID: "a2", Status: domain.AlertStatusResolved, Description: "CPU spike", Source: "ingest-nagios", CreatedAt: base.Add(time.Hour)},
		{AlertID: "a3", Status: domain.AlertStatusActive, Description: "Memory pressure", Source: "monitor", CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, d := range docs {
		store.AddDocument(d)
	}
}

func TestAlertQueryService_GetByID(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockReadStore()
	seedDocuments(store)
	svc := NewAlertQueryService(store)

	t.Run("found", func(t *testing.T) {
		doc, err := svc.GetByID(ctx, "a2")

		require.NoError(t, err)
		assert.Equal(t, "CPU spike", doc.Description)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := svc.GetByID(ctx, "nope")

		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("blank id", func(t *testing.T) {
		_, err := svc.GetByID(ctx, "  ")

		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestAlertQueryService_List(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockReadStore()
	seedDocuments(store)
	svc := NewAlertQueryService(store)

	t.Run("newest first with defaults", func(t *testing.T) {
		result, err := svc.List(ctx, 0, 0)

		require.NoError(t, err)
		assert.Equal(t, int64(3), result.Total)
		assert.Equal(t, 1, result.Page)
		assert.Equal(t, domain.DefaultPageLimit, result.Limit)
		require.Len(t, result.Alerts, 3)
		assert.Equal(t, "a3", result.Alerts[0].AlertID)
	})

	t.Run("clamps limit", func(t *testing.T) {
		result, err := svc.List(ctx, 1, 500)

		require.NoError(t, err)
		assert.Equal(t, domain.MaxPageLimit, result.Limit)
		assert.Equal(t, domain.MaxPageLimit, store.LastQuery.Limit)
	})

	t.Run("second page", func(t *testing.T) {
		result, err := svc.List(ctx, 2, 2)

		require.NoError(t, err)
		assert.Equal(t, int64(3), result.Total)
		require.Len(t, result.Alerts, 1)
		assert.Equal(t, "a1", result.Alerts[0].AlertID)
	})

	t.Run("store error", func(t *testing.T) {
		failing := mocks.NewMockReadStore()
		failing.SearchErr = errors.New("index unavailable")

		_, err := NewAlertQueryService(failing).List(ctx, 1, 10)

		assert.ErrorContains(t, err, "index unavailable")
	})
}

func TestAlertQueryService_Filters(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockReadStore()
	seedDocuments(store)
	svc := NewAlertQueryService(store)

	t.Run("by status", func(t *testing.T) {
		result, err := svc.ByStatus(ctx, "active", 1, 10)

		require.NoError(t, err)
		assert.Equal(t, int64(2), result.Total)
		assert.Equal(t, domain.AlertStatusActive, store.LastQuery.Status)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := svc.ByStatus(ctx, "SNOOZED", 1, 10)

		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("by time range", func(t *testing.T) {
		from := time.Date(2024, 3, 1, 0, 30, 0, 0, time.UTC)
		to := time.Date(2024, 3, 1, 1, 30, 0, 0, time.UTC)

		result, err := svc.ByTimeRange(ctx, from, to, 1, 10)

		require.NoError(t, err)
		require.Len(t, result.Alerts, 1)
		assert.Equal(t, "a2", result.Alerts[0].AlertID)
	})

	t.Run("inverted time range", func(t *testing.T) {
		from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
		to := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

		_, err := svc.ByTimeRange(ctx, from, to, 1, 10)

		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("by keyword matches description and source", func(t *testing.T) {
		result, err := svc.ByKeyword(ctx, "DISK", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Total)

		result, err = svc.ByKeyword(ctx, "nagios", 1, 10)
		require.NoError(t, err)
		require.Len(t, result.Alerts, 1)
		assert.Equal(t, "a2", result.Alerts[0].AlertID)
	})

	t.Run("blank keyword", func(t *testing.T) {
		_, err := svc.ByKeyword(ctx, " ", 1, 10)

		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("combined search", func(t *testing.T) {
		result, err := svc.Search(ctx, domain.AlertQuery{Status: domain.AlertStatusActive, Keyword: "monitor"})

		require.NoError(t, err)
		assert.Equal(t, int64(2), result.Total)
	})
}
