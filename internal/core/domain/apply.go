package domain

import (
	"fmt"
	"slices"
	"time"
)

// Apply folds one event into the alert state and returns the new state.
// It is pure: the input state is not modified. Unknown payloads only advance
// the version.
func Apply(state Alert, e Event) Alert {
	next := state.Clone()
	next.ID = e.AlertID
	next.Version = e.Version

	switch p := e.Payload.(type) {
	case AlertCreated:
		next.Severity = p.Severity
		next.Description = p.Description
		next.Source = p.Source
		next.Status = p.InitialStatus
		next.Details = p.Details.Clone()
		next.CreatedAt = p.CreatedAt
		next.UpdatedAt = p.CreatedAt
		next.EventTimestamp = p.EventTimestamp
		if next.EventTimestamp.IsZero() {
			next.EventTimestamp = p.CreatedAt
		}
		next.InitiatedBy = p.InitiatedBy
		next.Notes = []AlertNote{}
	case AlertUpdated:
		next.Severity = p.Severity
		next.Description = p.Description
		next.Details = p.Details.Clone()
		next.UpdatedBy = p.UpdatedBy
		touch(&next, p.UpdatedAt)
	case AlertAcknowledged:
		next.Status = p.NewStatus
		next.AcknowledgedAt = timePtr(p.AcknowledgedAt)
		next.AcknowledgedBy = p.AcknowledgedBy
		next.AcknowledgementNotes = p.Notes
		next.UpdatedBy = p.AcknowledgedBy
		touch(&next, p.AcknowledgedAt)
	case AlertResolved:
		next.Status = p.NewStatus
		next.ResolvedAt = timePtr(p.ResolvedAt)
		next.ResolvedBy = p.ResolvedBy
		next.ResolutionDetails = p.ResolutionDetails
		next.UpdatedBy = p.ResolvedBy
		touch(&next, p.ResolvedAt)
	case AlertClosed:
		next.Status = p.NewStatus
		next.ClosedAt = timePtr(p.ClosedAt)
		next.ClosedBy = p.ClosedBy
		next.ClosingReason = p.Reason
		next.UpdatedBy = p.ClosedBy
		touch(&next, p.ClosedAt)
	case NoteAdded:
		next.Notes = append(slices.Clone(next.Notes), p.Note)
		next.UpdatedBy = p.Note.Author
		touch(&next, p.Note.Timestamp)
	case AlertAssigned:
		next.Assignee = p.Assignee
		next.AssignedAt = timePtr(p.AssignedAt)
		next.AssignedBy = p.AssignedBy
		next.UpdatedBy = p.AssignedBy
		touch(&next, p.AssignedAt)
	case AlertDeleted:
		next.Status = p.NewStatus
		next.DeletedAt = timePtr(p.DeletedAt)
		next.DeletedBy = p.DeletedBy
		next.DeletionReason = p.Reason
		next.UpdatedBy = p.DeletedBy
		touch(&next, p.DeletedAt)
	}
	return next
}

// Replay rebuilds an alert from its full history. The events must belong to
// one alert and carry contiguous versions starting at 1.
func Replay(events []Event) (Alert, error) {
	var state Alert
	for i, e := range events {
		if e.Version != state.Version+1 {
			return Alert{}, fmt.Errorf("%w: event %d has version %d, expected %d", ErrCorruptHistory, i, e.Version, state.Version+1)
		}
		if i == 0 {
			if e.Type != EventAlertCreated {
				return Alert{}, fmt.Errorf("%w: history starts with %s", ErrCorruptHistory, e.Type)
			}
		} else if e.AlertID != state.ID {
			return Alert{}, fmt.Errorf("%w: event %d belongs to alert %s", ErrCorruptHistory, i, e.AlertID)
		}
		if e.Payload == nil || e.Payload.EventType() != e.Type {
			return Alert{}, fmt.Errorf("%w: %s", ErrUnknownEvent, e.Type)
		}
		state = Apply(state, e)
	}
	return state, nil
}

// touch advances UpdatedAt without ever moving it backwards
func touch(a *Alert, t time.Time) {
	if t.After(a.UpdatedAt) {
		a.UpdatedAt = t
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
