package service

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/pkg/observability"
	"github.com/orchestrix/orchestrix-alerts/pkg/util"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMaxAttempts bounds how often a command is re-decided after an
// optimistic concurrency conflict
const DefaultMaxAttempts = 3

// lockStripes is the number of mutexes commands for different alerts share
const lockStripes = 64

// Command outcomes, used as metric labels
const (
	outcomeAccepted = "accepted"
	outcomeNoop     = "noop"
	outcomeInvalid  = "invalid"
	outcomeNotFound = "not_found"
	outcomeRejected = "rejected"
	outcomeConflict = "conflict"
	outcomeError    = "error"
)

// AlertService implements port.AlertCommandService
type AlertService struct {
	repo        *AlertRepository
	publisher   port.EventPublisher
	metrics     *observability.Metrics
	now         func() time.Time
	newID       func() uuid.UUID
	maxAttempts int
	locks       alertLocks
}

// alertLocks serializes commands on the same alert within the process, so
// the events of one alert reach the publisher in version order.
type alertLocks [lockStripes]sync.Mutex

func (l *alertLocks) lock(id uuid.UUID) func() {
	m := &l[binary.BigEndian.Uint32(id[12:])%lockStripes]
	m.Lock()
	return m.Unlock
}

// AlertServiceOption configures an AlertService
type AlertServiceOption func(*AlertService)

// WithClock overrides the time source used for event timestamps
func WithClock(now func() time.Time) AlertServiceOption {
	return func(s *AlertService) { s.now = now }
}

// WithIDGenerator overrides the generator for alert, event and note ids
func WithIDGenerator(newID func() uuid.UUID) AlertServiceOption {
	return func(s *AlertService) { s.newID = newID }
}

// WithMaxAttempts sets the number of decide/append attempts per command
func WithMaxAttempts(n int) AlertServiceOption {
	return func(s *AlertService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithMetrics sets the metrics the service records to
func WithMetrics(m *observability.Metrics) AlertServiceOption {
	return func(s *AlertService) { s.metrics = m }
}

// NewAlertService creates a new alert command service.
// A nil publisher disables event publication.
func NewAlertService(store port.EventStore, publisher port.EventPublisher, opts ...AlertServiceOption) *AlertService {
	s := &AlertService{
		repo:        NewAlertRepository(store),
		publisher:   publisher,
		now:         time.Now,
		newID:       uuid.New,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a new alert
func (s *AlertService) Create(ctx context.Context, input port.CreateAlertInput) (*port.CommandResult, error) {
	id := s.newID()
	if input.AlertID != nil {
		id = *input.AlertID
	}
	source := util.Deref(input.Source)
	if source == "" {
		source = domain.DefaultSource
	}
	return s.execute(ctx, domain.CreateAlert{
		AlertID:        id,
		Severity:       input.Severity,
		Description:    input.Description,
		Source:         source,
		Details:        input.Details,
		EventTimestamp: input.EventTimestamp,
		InitiatedBy:    input.InitiatedBy,
	})
}

// Update overwrites the supplied editable fields
func (s *AlertService) Update(ctx context.Context, id uuid.UUID, input port.UpdateAlertInput) (*port.CommandResult, error) {
	return s.execute(ctx, domain.UpdateAlert{
		AlertID:     id,
		Severity:    input.Severity,
		Description: input.Description,
		Details:     input.Details,
		UpdatedBy:   input.UpdatedBy,
	})
}

// Acknowledge marks an active alert as acknowledged
func (s *AlertService) Acknowledge(ctx context.Context, id uuid.UUID, input port.AcknowledgeAlertInput) (*port.CommandResult, error) {
	return s.execute(ctx, domain.AcknowledgeAlert{
		AlertID:        id,
		AcknowledgedBy: input.AcknowledgedBy,
		Notes:          input.Notes,
	})
}

// Resolve marks an alert as resolved
func (s *AlertService) Resolve(ctx context.Context, id uuid.UUID, input port.ResolveAlertInput) (*port.CommandResult, error) {
	return s.execute(ctx, domain.ResolveAlert{
		AlertID:           id,
		ResolvedBy:        input.ResolvedBy,
		ResolutionDetails: input.ResolutionDetails,
	})
}

// Close closes an alert
func (s *AlertService) Close(ctx context.Context, id uuid.UUID, input port.CloseAlertInput) (*port.CommandResult, error) {
	return s.execute(ctx, domain.CloseAlert{
		AlertID:  id,
		ClosedBy: input.ClosedBy,
		Reason:   input.Reason,
	})
}

// AddNote appends a note to an alert
func (s *AlertService) AddNote(ctx context.Context, id uuid.UUID, input port.AddNoteInput) (*port.CommandResult, error) {
	return s.execute(ctx, domain.AddNote{
		AlertID: id,
		Text:    input.Text,
		Author:  input.Author,
	})
}

// Assign changes the alert's assignee
func (s *AlertService) Assign(ctx context.Context, id uuid.UUID, input port.AssignAlertInput) (*port.CommandResult, error) {
	return s.execute(ctx, domain.AssignAlert{
		AlertID:    id,
		Assignee:   input.Assignee,
		AssignedBy: input.AssignedBy,
	})
}

// Delete logically deletes an alert
func (s *AlertService) Delete(ctx context.Context, id uuid.UUID, input port.DeleteAlertInput) (*port.CommandResult, error) {
	return s.execute(ctx, domain.DeleteAlert{
		AlertID:   id,
		DeletedBy: input.DeletedBy,
		Reason:    input.Reason,
	})
}

// Get returns the current aggregate state from the event store
func (s *AlertService) Get(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	ctx, span := observability.StartSpan(ctx, "alert.get")
	defer span.End()

	state, err := s.repo.Load(ctx, id)
	if err != nil {
		observability.RecordError(ctx, err)
		return nil, err
	}
	if !state.Exists() {
		return nil, domain.ErrAlertNotFound
	}
	return &state, nil
}

func (s *AlertService) execute(ctx context.Context, cmd domain.Command) (*port.CommandResult, error) {
	id := cmd.Target()
	ctx, span := observability.StartSpan(ctx, "alert."+cmd.Name())
	defer span.End()
	span.SetAttributes(
		attribute.String("alert.id", id.String()),
		attribute.String("alert.command", cmd.Name()),
	)

	start := time.Now()
	result, outcome, err := s.run(ctx, cmd)
	if s.metrics != nil {
		s.metrics.CommandsTotal.WithLabelValues(cmd.Name(), outcome).Inc()
		s.metrics.CommandDuration.WithLabelValues(cmd.Name()).Observe(time.Since(start).Seconds())
	}
	span.SetAttributes(attribute.String("alert.outcome", outcome))
	if err != nil {
		if outcome == outcomeError || outcome == outcomeConflict {
			observability.RecordError(ctx, err)
		}
		return nil, err
	}
	return result, nil
}

func (s *AlertService) run(ctx context.Context, cmd domain.Command) (*port.CommandResult, string, error) {
	id := cmd.Target()

	// Held across append and publish. Another process appending to the same
	// alert still surfaces as a concurrency conflict.
	unlock := s.locks.lock(id)
	defer unlock()

	for attempt := 1; ; attempt++ {
		state, err := s.repo.Load(ctx, id)
		if err != nil {
			return nil, outcomeError, err
		}

		decision, err := domain.Decide(state, cmd, s.now(), s.newID)
		if err != nil {
			return nil, classify(err), err
		}

		for _, w := range decision.Warnings {
			observability.LogWarn(ctx, w,
				slog.String("alert_id", id.String()),
				slog.String("command", cmd.Name()),
				slog.String("status", string(state.Status)),
			)
		}

		if !decision.Changed() {
			return &port.CommandResult{Alert: &state, Warnings: decision.Warnings}, outcomeNoop, nil
		}

		stored, err := s.repo.Save(ctx, id, state.Version, decision.Events)
		if errors.Is(err, domain.ErrConcurrencyConflict) && attempt < s.maxAttempts {
			if s.metrics != nil {
				s.metrics.ConcurrencyRetries.WithLabelValues(cmd.Name()).Inc()
			}
			observability.LogDebug(ctx, "retrying command after concurrent modification",
				slog.String("alert_id", id.String()),
				slog.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, classify(err), err
		}

		next := state
		for _, e := range stored {
			next = domain.Apply(next, e)
			if s.metrics != nil {
				s.metrics.EventsAppendedTotal.WithLabelValues(string(e.Type)).Inc()
			}
		}

		s.publish(ctx, stored)

		return &port.CommandResult{
			Alert:    &next,
			Events:   stored,
			Changed:  true,
			Warnings: decision.Warnings,
		}, outcomeAccepted, nil
	}
}

// publish hands stored events to the bus. Failures are logged, not returned.
func (s *AlertService) publish(ctx context.Context, events []domain.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		if s.metrics != nil {
			s.metrics.PublishFailuresTotal.Inc()
		}
		observability.LogError(ctx, "failed to publish alert events", err,
			slog.String("alert_id", events[0].AlertID.String()),
			slog.Int("count", len(events)),
		)
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return outcomeInvalid
	case errors.Is(err, domain.ErrAlertNotFound):
		return outcomeNotFound
	case errors.Is(err, domain.ErrInvalidStateTransition), errors.Is(err, domain.ErrAlertAlreadyExists):
		return outcomeRejected
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return outcomeConflict
	default:
		return outcomeError
	}
}
