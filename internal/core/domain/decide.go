package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Warnings returned alongside accepted commands
const (
	WarnNoChanges          = "update changed no fields"
	WarnSameAssignee       = "alert already assigned to this assignee"
	WarnClosedWithoutFixed = "alert closed without prior resolution"
)

// Decision is the outcome of an accepted command.
// An empty Events slice means the command was an accepted no-op.
type Decision struct {
	Events   []Event
	Warnings []string
}

// Changed reports whether the decision emits any event
func (d Decision) Changed() bool {
	return len(d.Events) > 0
}

// Decide validates cmd against the current state and returns the events it
// produces. It never mutates state. newID generates event and note ids and
// defaults to uuid.New.
func Decide(state Alert, cmd Command, now time.Time, newID func() uuid.UUID) (Decision, error) {
	if cmd == nil {
		return Decision{}, ErrUnknownCommand
	}
	if newID == nil {
		newID = uuid.New
	}
	if cmd.Target() == uuid.Nil {
		return Decision{}, invalid("alertId", "must not be empty")
	}
	if err := validate(cmd); err != nil {
		return Decision{}, err
	}

	if _, ok := cmd.(CreateAlert); ok {
		if state.Exists() {
			return Decision{}, fmt.Errorf("%w: %s", ErrAlertAlreadyExists, cmd.Target())
		}
	} else if !state.Exists() {
		return Decision{}, fmt.Errorf("%w: %s", ErrAlertNotFound, cmd.Target())
	}

	d := decider{id: cmd.Target(), state: state, now: now.UTC(), newID: newID}

	switch c := cmd.(type) {
	case CreateAlert:
		return d.create(c), nil
	case UpdateAlert:
		return d.update(c)
	case AcknowledgeAlert:
		if !state.CanAcknowledge() {
			return Decision{}, d.reject(c)
		}
		return d.emit(AlertAcknowledged{
			AcknowledgedBy: strings.TrimSpace(c.AcknowledgedBy),
			AcknowledgedAt: d.now,
			Notes:          strings.TrimSpace(c.Notes),
			NewStatus:      AlertStatusAcknowledged,
		}), nil
	case ResolveAlert:
		if !state.CanResolve() {
			return Decision{}, d.reject(c)
		}
		return d.emit(AlertResolved{
			ResolvedBy:        strings.TrimSpace(c.ResolvedBy),
			ResolutionDetails: strings.TrimSpace(c.ResolutionDetails),
			ResolvedAt:        d.now,
			NewStatus:         AlertStatusResolved,
		}), nil
	case CloseAlert:
		if !state.CanEdit() {
			return Decision{}, d.reject(c)
		}
		dec := d.emit(AlertClosed{
			ClosedBy:  strings.TrimSpace(c.ClosedBy),
			ClosedAt:  d.now,
			Reason:    strings.TrimSpace(c.Reason),
			NewStatus: AlertStatusClosed,
		})
		if state.Status != AlertStatusResolved {
			dec.Warnings = append(dec.Warnings, WarnClosedWithoutFixed)
		}
		return dec, nil
	case AddNote:
		if !state.CanEdit() {
			return Decision{}, d.reject(c)
		}
		return d.emit(NoteAdded{Note: AlertNote{
			ID:        newID(),
			Text:      strings.TrimSpace(c.Text),
			Author:    strings.TrimSpace(c.Author),
			Timestamp: d.now,
		}}), nil
	case AssignAlert:
		if !state.CanEdit() {
			return Decision{}, d.reject(c)
		}
		assignee := strings.TrimSpace(c.Assignee)
		if assignee == state.Assignee {
			return Decision{Warnings: []string{WarnSameAssignee}}, nil
		}
		return d.emit(AlertAssigned{
			Assignee:   assignee,
			AssignedAt: d.now,
			AssignedBy: strings.TrimSpace(c.AssignedBy),
		}), nil
	case DeleteAlert:
		if state.Status == AlertStatusDeleted {
			return Decision{}, d.reject(c)
		}
		return d.emit(AlertDeleted{
			DeletedBy: strings.TrimSpace(c.DeletedBy),
			DeletedAt: d.now,
			Reason:    strings.TrimSpace(c.Reason),
			NewStatus: AlertStatusDeleted,
		}), nil
	default:
		return Decision{}, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

type decider struct {
	id    uuid.UUID
	state Alert
	now   time.Time
	newID func() uuid.UUID
}

func (d decider) create(c CreateAlert) Decision {
	source := strings.TrimSpace(c.Source)
	if source == "" {
		source = DefaultSource
	}
	eventTime := d.now
	if c.EventTimestamp != nil && !c.EventTimestamp.IsZero() {
		eventTime = c.EventTimestamp.UTC()
	}
	severity, _ := ParseSeverity(string(c.Severity))
	return d.emit(AlertCreated{
		Severity:       severity,
		Description:    strings.TrimSpace(c.Description),
		Source:         source,
		Details:        NewAlertDetails(c.Details),
		InitialStatus:  AlertStatusActive,
		CreatedAt:      d.now,
		EventTimestamp: eventTime,
		InitiatedBy:    strings.TrimSpace(c.InitiatedBy),
	})
}

func (d decider) update(c UpdateAlert) (Decision, error) {
	if !d.state.CanEdit() {
		return Decision{}, d.reject(c)
	}

	severity := d.state.Severity
	if c.Severity != nil {
		severity, _ = ParseSeverity(string(*c.Severity))
	}
	description := d.state.Description
	if c.Description != nil {
		description = strings.TrimSpace(*c.Description)
	}
	details := d.state.Details.Clone()
	if c.Details != nil {
		details = NewAlertDetails(c.Details)
	}

	if severity == d.state.Severity &&
		description == d.state.Description &&
		details.Equal(d.state.Details) {
		return Decision{Warnings: []string{WarnNoChanges}}, nil
	}

	return d.emit(AlertUpdated{
		Severity:    severity,
		Description: description,
		Details:     details,
		UpdatedAt:   d.now,
		UpdatedBy:   strings.TrimSpace(c.UpdatedBy),
	}), nil
}

func (d decider) emit(p EventPayload) Decision {
	return Decision{Events: []Event{{
		ID:         d.newID(),
		AlertID:    d.id,
		Version:    d.state.Version + 1,
		Type:       p.EventType(),
		OccurredAt: d.now,
		Payload:    p,
	}}}
}

func (d decider) reject(cmd Command) error {
	return &InvalidStateTransitionError{
		AlertID: cmd.Target(),
		Status:  d.state.Status,
		Command: cmd.Name(),
	}
}

func validate(cmd Command) error {
	switch c := cmd.(type) {
	case CreateAlert:
		if _, ok := ParseSeverity(string(c.Severity)); !ok {
			return invalid("severity", fmt.Sprintf("unknown severity %q", c.Severity))
		}
		return validateDescription(c.Description)
	case UpdateAlert:
		if c.Severity != nil {
			if _, ok := ParseSeverity(string(*c.Severity)); !ok {
				return invalid("severity", fmt.Sprintf("unknown severity %q", *c.Severity))
			}
		}
		if c.Description != nil {
			return validateDescription(*c.Description)
		}
	case AcknowledgeAlert:
		return required("acknowledgedBy", c.AcknowledgedBy)
	case ResolveAlert:
		if err := required("resolvedBy", c.ResolvedBy); err != nil {
			return err
		}
		return required("resolutionDetails", c.ResolutionDetails)
	case CloseAlert:
		return required("closedBy", c.ClosedBy)
	case AddNote:
		if err := required("text", c.Text); err != nil {
			return err
		}
		return required("author", c.Author)
	case AssignAlert:
		return required("assignee", c.Assignee)
	}
	return nil
}

func validateDescription(value string) error {
	v := strings.TrimSpace(value)
	if v == "" {
		return invalid("description", "must not be blank")
	}
	n := utf8.RuneCountInString(v)
	if n < DescriptionMinLength || n > DescriptionMaxLength {
		return invalid("description", fmt.Sprintf("must be between %d and %d characters", DescriptionMinLength, DescriptionMaxLength))
	}
	return nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "is required")
	}
	return nil
}
