//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	pgadapter "github.com/orchestrix/orchestrix-alerts/internal/adapter/driven/postgres"
	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/internal/core/service"
	"github.com/orchestrix/orchestrix-alerts/internal/projection"
)

// TestContext holds the test database and cleanup functions
type TestContext struct {
	Pool      *pgxpool.Pool
	Container testcontainers.Container
	Ctx       context.Context
}

// setupTestDB creates a test database container
func setupTestDB(t *testing.T) *TestContext {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("alerts_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, pgadapter.Migrate(ctx, pool))

	return &TestContext{
		Pool:      pool,
		Container: container,
		Ctx:       ctx,
	}
}

// cleanup closes connections and terminates container
func (tc *TestContext) cleanup(t *testing.T) {
	tc.Pool.Close()
	if err := tc.Container.Terminate(tc.Ctx); err != nil {
		t.Logf("failed to terminate container: %v", err)
	}
}

func TestEventStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := setupTestDB(t)
	defer tc.cleanup(t)

	store := pgadapter.NewEventStore(tc.Pool, nil)
	svc := service.NewAlertService(store, nil)

	t.Run("Append and Load", func(t *testing.T) {
		created, err := svc.Create(tc.Ctx, port.CreateAlertInput{
			Severity:    domain.AlertSeverityHigh,
			Description: "disk full",
			Details:     map[string]any{"host": "db-1"},
		})
		require.NoError(t, err)
		id := created.Alert.ID
		_, err = svc.AddNote(tc.Ctx, id, port.AddNoteInput{Text: "on it", Author: "alice"})
		require.NoError(t, err)

		events, err := store.Load(tc.Ctx, id)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, domain.EventAlertCreated, events[0].Type)
		assert.Less(t, events[0].Sequence, events[1].Sequence)

		alert, err := svc.Get(tc.Ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "db-1", alert.Details["host"])
		require.Len(t, alert.Notes, 1)
		assert.Equal(t, "on it", alert.Notes[0].Text)
	})

	t.Run("Stale expected version conflicts", func(t *testing.T) {
		created, err := svc.Create(tc.Ctx, port.CreateAlertInput{Severity: domain.AlertSeverityLow, Description: "queue backlog"})
		require.NoError(t, err)

		_, err = store.Append(tc.Ctx, created.Alert.ID, 0, created.Events)

		assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	})

	t.Run("Concurrent commands all land", func(t *testing.T) {
		created, err := svc.Create(tc.Ctx, port.CreateAlertInput{Severity: domain.AlertSeverityMedium, Description: "latency spike"})
		require.NoError(t, err)
		id := created.Alert.ID

		var wg sync.WaitGroup
		errs := make([]error, 3)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.AddNote(tc.Ctx, id, port.AddNoteInput{Text: "note", Author: "bot"})
			}(i)
		}
		wg.Wait()

		events, err := store.Load(tc.Ctx, id)
		require.NoError(t, err)
		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
			}
		}
		assert.Len(t, events, 1+succeeded)
	})

	t.Run("LoadAfter pages in sequence order", func(t *testing.T) {
		first, err := store.LoadAfter(tc.Ctx, 0, 2)
		require.NoError(t, err)
		require.Len(t, first, 2)

		rest, err := store.LoadAfter(tc.Ctx, first[1].Sequence, 100)
		require.NoError(t, err)
		require.NotEmpty(t, rest)
		assert.Greater(t, rest[0].Sequence, first[1].Sequence)
	})
}

func TestReadStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := setupTestDB(t)
	defer tc.cleanup(t)

	events := pgadapter.NewEventStore(tc.Pool, nil)
	docs := pgadapter.NewReadStore(tc.Pool, nil)
	svc := service.NewAlertService(events, nil)
	p := projection.NewProjector(docs, events, projection.Config{BatchSize: 100, BatchTimeout: time.Hour})
	p.Start(tc.Ctx)
	defer func() { _ = p.Stop(tc.Ctx) }()

	created, err := svc.Create(tc.Ctx, port.CreateAlertInput{Severity: domain.AlertSeverityHigh, Description: "Disk full on db-1"})
	require.NoError(t, err)
	id := created.Alert.ID
	_, err = svc.Acknowledge(tc.Ctx, id, port.AcknowledgeAlertInput{AcknowledgedBy: "alice"})
	require.NoError(t, err)
	_, err = svc.AddNote(tc.Ctx, id, port.AddNoteInput{Text: "clearing logs", Author: "alice"})
	require.NoError(t, err)
	_, err = svc.Create(tc.Ctx, port.CreateAlertInput{Severity: domain.AlertSeverityLow, Description: "CPU warm"})
	require.NoError(t, err)

	t.Run("Rebuild from event store", func(t *testing.T) {
		replayed, err := p.Rebuild(tc.Ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), replayed)

		doc, err := docs.Get(tc.Ctx, id.String())
		require.NoError(t, err)
		assert.Equal(t, domain.AlertStatusAcknowledged, doc.Status)
		assert.Equal(t, "alice", doc.AcknowledgedBy)
		require.Len(t, doc.Notes, 1)
		assert.Equal(t, int64(3), doc.Version)
	})

	t.Run("Search filters", func(t *testing.T) {
		page, err := docs.Search(tc.Ctx, domain.AlertQuery{Status: domain.AlertStatusAcknowledged})
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)

		page, err = docs.Search(tc.Ctx, domain.AlertQuery{Keyword: "disk"})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, id.String(), page.Items[0].AlertID)

		page, err = docs.Search(tc.Ctx, domain.AlertQuery{Keyword: "100%"})
		require.NoError(t, err)
		assert.Zero(t, page.Total)

		page, err = docs.Search(tc.Ctx, domain.AlertQuery{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
		assert.Len(t, page.Items, 1)
	})

	t.Run("Missing documents", func(t *testing.T) {
		_, err := docs.Get(tc.Ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

		err = docs.BulkUpdate(tc.Ctx, []domain.DocumentUpdate{
			{AlertID: uuid.NewString(), Fields: map[string]any{"assignee": "nobody"}},
		})
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("Stale updates are ignored", func(t *testing.T) {
		err := docs.BulkUpdate(tc.Ctx, []domain.DocumentUpdate{
			{AlertID: id.String(), Fields: map[string]any{"status": domain.AlertStatusActive, "version": int64(2)}},
		})
		require.NoError(t, err)

		doc, err := docs.Get(tc.Ctx, id.String())
		require.NoError(t, err)
		assert.Equal(t, domain.AlertStatusAcknowledged, doc.Status)
		assert.Equal(t, int64(3), doc.Version)
	})
}
