package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
)

// ============================================================================
// SECONDARY PORTS (Driven)
// These interfaces define what the application NEEDS from the outside world.
// They are IMPLEMENTED by adapters (postgres, sqlite, memory, temporal, etc.)
// ============================================================================

// EventStore is the append-only source of truth for alert events
type EventStore interface {
	// Append stores events for one alert if its current version equals
	// expectedVersion, otherwise it fails with domain.ErrConcurrencyConflict.
	// The returned events carry their assigned global sequence.
	Append(ctx context.Context, alertID uuid.UUID, expectedVersion int64, events []domain.Event) ([]domain.Event, error)

	// Load returns the full history of one alert in version order
	Load(ctx context.Context, alertID uuid.UUID) ([]domain.Event, error)

	// LoadAfter returns up to limit events with a sequence greater than
	// afterSequence, in sequence order
	LoadAfter(ctx context.Context, afterSequence int64, limit int) ([]domain.Event, error)
}

// EventPublisher delivers stored events to subscribers
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.Event) error
}

// EventSubscriber consumes published events
type EventSubscriber interface {
	Name() string
	Handle(ctx context.Context, event domain.Event) error
}

// ResettableSubscriber can discard its derived state and rebuild it
type ResettableSubscriber interface {
	EventSubscriber
	Rebuild(ctx context.Context) (int64, error)
}

// SubscriptionResetter asks a named subscriber to rebuild its state. The
// rebuild is serialized with the subscriber's live deliveries.
type SubscriptionResetter interface {
	Reset(ctx context.Context, subscriber string) (int64, error)
}

// ReadStore holds the denormalized alert documents
type ReadStore interface {
	Upsert(ctx context.Context, doc domain.AlertDocument) error
	Get(ctx context.Context, alertID string) (*domain.AlertDocument, error)
	Update(ctx context.Context, update domain.DocumentUpdate) error
	BulkUpdate(ctx context.Context, updates []domain.DocumentUpdate) error
	Search(ctx context.Context, query domain.AlertQuery) (*domain.DocumentPage, error)

	// Reset drops and recreates the document index
	Reset(ctx context.Context) error
}

// ProjectionReplayer drives a projection rebuild in steps
type ProjectionReplayer interface {
	// BeginRebuild discards pending updates and resets the read store
	BeginRebuild(ctx context.Context) error
	// ReplayPage projects up to limit events after afterSequence and returns
	// the last sequence seen and the number of events replayed
	ReplayPage(ctx context.Context, afterSequence int64, limit int) (int64, int, error)
	// FinishRebuild flushes the rebuilt state and resumes live handling
	FinishRebuild(ctx context.Context) error
}

// WorkflowStarter starts projection rebuilds via Temporal
type WorkflowStarter interface {
	StartRebuild(ctx context.Context) (*RebuildResult, error)
}
