package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
)

// AlertRepository loads and saves alert aggregates over an event store
type AlertRepository struct {
	store port.EventStore
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(store port.EventStore) *AlertRepository {
	return &AlertRepository{store: store}
}

// Load rebuilds the alert from its history. An alert without history is
// returned as the zero state.
func (r *AlertRepository) Load(ctx context.Context, id uuid.UUID) (domain.Alert, error) {
	events, err := r.store.Load(ctx, id)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("load alert %s: %w", id, err)
	}
	state, err := domain.Replay(events)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("replay alert %s: %w", id, err)
	}
	return state, nil
}

// Save appends events if the alert is still at expectedVersion
func (r *AlertRepository) Save(ctx context.Context, id uuid.UUID, expectedVersion int64, events []domain.Event) ([]domain.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}
	stored, err := r.store.Append(ctx, id, expectedVersion, events)
	if err != nil {
		return nil, fmt.Errorf("save alert %s: %w", id, err)
	}
	return stored, nil
}
