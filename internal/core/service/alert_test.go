package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/internal/core/service/mocks"
	"github.com/orchestrix/orchestrix-alerts/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store *mocks.MockEventStore, pub *mocks.MockEventPublisher, opts ...AlertServiceOption) *AlertService {
	opts = append([]AlertServiceOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	if pub == nil {
		return NewAlertService(store, nil, opts...)
	}
	return NewAlertService(store, pub, opts...)
}

func createInput(source string) port.CreateAlertInput {
	return port.CreateAlertInput{
		Severity:    domain.AlertSeverityHigh,
		Description: "disk full",
		Source:      &source,
	}
}

func TestAlertService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("stores and publishes created event", func(t *testing.T) {
		store := mocks.NewMockEventStore()
		pub := mocks.NewMockEventPublisher()
		svc := newTestService(store, pub)

		result, err := svc.Create(ctx, createInput("monitor"))

		require.NoError(t, err)
		assert.True(t, result.Changed)
		require.Len(t, result.Events, 1)
		assert.Equal(t, int64(1), result.Events[0].Sequence)
		assert.Equal(t, domain.AlertStatusActive, result.Alert.Status)
		assert.Equal(t, "monitor", result.Alert.Source)
		assert.Equal(t, fixedNow, result.Alert.CreatedAt)
		assert.Len(t, store.Events(result.Alert.ID), 1)
		assert.Equal(t, result.Events, pub.Published)
	})

	t.Run("defaults source", func(t *testing.T) {
		svc := newTestService(mocks.NewMockEventStore(), nil)

		result, err := svc.Create(ctx, port.CreateAlertInput{Severity: domain.AlertSeverityLow, Description: "queue backing up"})

		require.NoError(t, err)
		assert.Equal(t, domain.DefaultSource, result.Alert.Source)
	})

	t.Run("uses supplied id and rejects duplicates", func(t *testing.T) {
		svc := newTestService(mocks.NewMockEventStore(), nil)
		id := uuid.New()
		input := createInput("monitor")
		input.AlertID = &id

		_, err := svc.Create(ctx, input)
		require.NoError(t, err)
		_, err = svc.Create(ctx, input)

		assert.ErrorIs(t, err, domain.ErrAlertAlreadyExists)
	})

	t.Run("validation error stores nothing", func(t *testing.T) {
		store := mocks.NewMockEventStore()
		svc := newTestService(store, nil)

		_, err := svc.Create(ctx, port.CreateAlertInput{Severity: "SEVERE", Description: "disk full"})

		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, 0, store.AppendCalls)
	})

	t.Run("publish failure does not fail the command", func(t *testing.T) {
		store := mocks.NewMockEventStore()
		pub := mocks.NewMockEventPublisher()
		pub.PublishErr = errors.New("bus closed")
		svc := newTestService(store, pub)

		result, err := svc.Create(ctx, createInput("monitor"))

		require.NoError(t, err)
		assert.Len(t, store.Events(result.Alert.ID), 1)
	})
}

func TestAlertService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockEventStore()
	pub := mocks.NewMockEventPublisher()
	svc := newTestService(store, pub)

	created, err := svc.Create(ctx, createInput("monitor"))
	require.NoError(t, err)
	id := created.Alert.ID

	ack, err := svc.Acknowledge(ctx, id, port.AcknowledgeAlertInput{AcknowledgedBy: "alice"})
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusAcknowledged, ack.Alert.Status)

	res, err := svc.Resolve(ctx, id, port.ResolveAlertInput{ResolvedBy: "bob", ResolutionDetails: "cleared space"})
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusResolved, res.Alert.Status)

	closed, err := svc.Close(ctx, id, port.CloseAlertInput{ClosedBy: "bob"})
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusClosed, closed.Alert.Status)
	assert.Empty(t, closed.Warnings)

	events := store.Events(id)
	require.Len(t, events, 4)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Version)
	}
	assert.Len(t, pub.Published, 4)

	_, err = svc.AddNote(ctx, id, port.AddNoteInput{Text: "too late", Author: "bob"})
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, *closed.Alert, *got)
}

func TestAlertService_NoOps(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockEventStore()
	pub := mocks.NewMockEventPublisher()
	svc := newTestService(store, pub)

	created, err := svc.Create(ctx, createInput("monitor"))
	require.NoError(t, err)
	id := created.Alert.ID

	_, err = svc.Assign(ctx, id, port.AssignAlertInput{Assignee: "carol"})
	require.NoError(t, err)

	t.Run("same assignee", func(t *testing.T) {
		result, err := svc.Assign(ctx, id, port.AssignAlertInput{Assignee: "carol"})

		require.NoError(t, err)
		assert.False(t, result.Changed)
		assert.Empty(t, result.Events)
		assert.Equal(t, []string{domain.WarnSameAssignee}, result.Warnings)
		assert.Len(t, store.Events(id), 2)
	})

	t.Run("unchanged update", func(t *testing.T) {
		desc := "disk full"

		result, err := svc.Update(ctx, id, port.UpdateAlertInput{Description: &desc})

		require.NoError(t, err)
		assert.False(t, result.Changed)
		assert.Len(t, store.Events(id), 2)
		assert.Len(t, pub.Published, 2)
	})
}

func TestAlertService_LenientClose(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(mocks.NewMockEventStore(), nil)

	created, err := svc.Create(ctx, createInput("monitor"))
	require.NoError(t, err)

	result, err := svc.Close(ctx, created.Alert.ID, port.CloseAlertInput{ClosedBy: "bob"})

	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, []string{domain.WarnClosedWithoutFixed}, result.Warnings)
}

func TestAlertService_ConcurrencyRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("retries after conflict", func(t *testing.T) {
		store := mocks.NewMockEventStore()
		reg := prometheus.NewRegistry()
		m := observability.NewMetrics(reg, "test")
		svc := newTestService(store, nil, WithMetrics(m))

		created, err := svc.Create(ctx, createInput("monitor"))
		require.NoError(t, err)
		store.ConflictsBeforeAppend = 2

		result, err := svc.Acknowledge(ctx, created.Alert.ID, port.AcknowledgeAlertInput{AcknowledgedBy: "alice"})

		require.NoError(t, err)
		assert.True(t, result.Changed)
		assert.Equal(t, 4, store.AppendCalls)
		assert.Equal(t, float64(2), testutil.ToFloat64(m.ConcurrencyRetries.WithLabelValues(domain.CommandAcknowledge)))
		assert.Equal(t, float64(1), testutil.ToFloat64(m.CommandsTotal.WithLabelValues(domain.CommandAcknowledge, "accepted")))
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		store := mocks.NewMockEventStore()
		svc := newTestService(store, nil, WithMaxAttempts(3))

		created, err := svc.Create(ctx, createInput("monitor"))
		require.NoError(t, err)
		store.ConflictsBeforeAppend = 3

		_, err = svc.Acknowledge(ctx, created.Alert.ID, port.AcknowledgeAlertInput{AcknowledgedBy: "alice"})

		assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
		assert.Equal(t, 4, store.AppendCalls)
	})
}

func TestAlertService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown alert", func(t *testing.T) {
		svc := newTestService(mocks.NewMockEventStore(), nil)

		_, err := svc.Get(ctx, uuid.New())

		assert.ErrorIs(t, err, domain.ErrAlertNotFound)
	})

	t.Run("store failure", func(t *testing.T) {
		store := mocks.NewMockEventStore()
		store.LoadErr = errors.New("connection refused")
		svc := newTestService(store, nil)

		_, err := svc.Get(ctx, uuid.New())

		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("commands on unknown alert", func(t *testing.T) {
		svc := newTestService(mocks.NewMockEventStore(), nil)

		_, err := svc.Delete(ctx, uuid.New(), port.DeleteAlertInput{DeletedBy: "ops"})

		assert.ErrorIs(t, err, domain.ErrAlertNotFound)
	})
}
