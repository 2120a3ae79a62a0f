package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/internal/core/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*EventStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alerts.db")
	store, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ", nil)

	assert.Error(t, err)
}

func TestEventStore(t *testing.T) {
	ctx := context.Background()
	store, path := openTestStore(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := service.NewAlertService(store, nil, service.WithClock(func() time.Time { return now }))

	created, err := svc.Create(ctx, port.CreateAlertInput{
		Severity:    domain.AlertSeverityCritical,
		Description: "replication lag",
		Details:     map[string]any{"replica": "db-2"},
	})
	require.NoError(t, err)
	id := created.Alert.ID
	ack, err := svc.Acknowledge(ctx, id, port.AcknowledgeAlertInput{AcknowledgedBy: "alice", Notes: "watching"})
	require.NoError(t, err)

	t.Run("replays stored history", func(t *testing.T) {
		got, err := svc.Get(ctx, id)

		require.NoError(t, err)
		assert.Equal(t, *ack.Alert, *got)
	})

	t.Run("assigns increasing sequences", func(t *testing.T) {
		events, err := store.LoadAfter(ctx, 0, 10)

		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, int64(1), events[0].Sequence)
		assert.Equal(t, int64(2), events[1].Sequence)
		assert.Equal(t, now, events[1].OccurredAt)
	})

	t.Run("rejects stale version", func(t *testing.T) {
		_, err := store.Append(ctx, id, 1, ack.Events)

		assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	})

	t.Run("survives reopen", func(t *testing.T) {
		require.NoError(t, store.Close())
		reopened, err := Open(path, nil)
		require.NoError(t, err)
		defer reopened.Close()

		events, err := reopened.Load(ctx, id)

		require.NoError(t, err)
		assert.Len(t, events, 2)
		state, err := domain.Replay(events)
		require.NoError(t, err)
		assert.Equal(t, domain.AlertStatusAcknowledged, state.Status)
	})
}
