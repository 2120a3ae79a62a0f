package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
)

// EventStore keeps the event log in process memory
type EventStore struct {
	mu      sync.RWMutex
	streams map[uuid.UUID][]domain.Event
	log     []domain.Event
}

// NewEventStore creates an empty in-memory event store
func NewEventStore() *EventStore {
	return &EventStore{streams: make(map[uuid.UUID][]domain.Event)}
}

func (s *EventStore) Append(ctx context.Context, alertID uuid.UUID, expectedVersion int64, events []domain.Event) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if int64(len(s.streams[alertID])) != expectedVersion {
		return nil, domain.ErrConcurrencyConflict
	}

	stored := make([]domain.Event, len(events))
	for i, e := range events {
		e.Sequence = int64(len(s.log)) + 1
		s.log = append(s.log, e)
		stored[i] = e
	}
	s.streams[alertID] = append(s.streams[alertID], stored...)
	return stored, nil
}

func (s *EventStore) Load(ctx context.Context, alertID uuid.UUID) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Event(nil), s.streams[alertID]...), nil
}

func (s *EventStore) LoadAfter(ctx context.Context, afterSequence int64, limit int) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	// sequences are dense and start at 1
	start := sort.Search(len(s.log), func(i int) bool { return s.log[i].Sequence > afterSequence })
	end := len(s.log)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return append([]domain.Event(nil), s.log[start:end]...), nil
}
