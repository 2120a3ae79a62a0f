package projection

import (
	"slices"
	"time"

	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
)

// Document field names as stored in the read model
const (
	fieldVersion              = "version"
	fieldSeverity             = "severity"
	fieldDescription          = "description"
	fieldStatus               = "status"
	fieldDetails              = "details"
	fieldUpdatedAt            = "updatedAt"
	fieldUpdatedBy            = "updatedBy"
	fieldAcknowledgedAt       = "acknowledgedAt"
	fieldAcknowledgedBy       = "acknowledgedBy"
	fieldAcknowledgementNotes = "acknowledgementNotes"
	fieldResolvedAt           = "resolvedAt"
	fieldResolvedBy           = "resolvedBy"
	fieldResolutionDetails    = "resolutionDetails"
	fieldClosedAt             = "closedAt"
	fieldClosedBy             = "closedBy"
	fieldClosingReason        = "closingReason"
	fieldAssignee             = "assignee"
	fieldAssignedAt           = "assignedAt"
	fieldAssignedBy           = "assignedBy"
	fieldDeletedAt            = "deletedAt"
	fieldDeletedBy            = "deletedBy"
	fieldDeletionReason       = "deletionReason"
	fieldNotes                = "notes"
)

// ToDocument renders the aggregate state as a read-model document
func ToDocument(a domain.Alert) domain.AlertDocument {
	details := a.Details.Clone()
	if details == nil {
		details = domain.AlertDetails{}
	}
	notes := slices.Clone(a.Notes)
	if notes == nil {
		notes = []domain.AlertNote{}
	}
	return domain.AlertDocument{
		AlertID:              a.ID.String(),
		Version:              a.Version,
		Severity:             a.Severity,
		Description:          a.Description,
		Source:               a.Source,
		Status:               a.Status,
		Details:              details,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
		EventTimestamp:       a.EventTimestamp,
		InitiatedBy:          a.InitiatedBy,
		UpdatedBy:            a.UpdatedBy,
		AcknowledgedAt:       a.AcknowledgedAt,
		AcknowledgedBy:       a.AcknowledgedBy,
		AcknowledgementNotes: a.AcknowledgementNotes,
		ResolvedAt:           a.ResolvedAt,
		ResolvedBy:           a.ResolvedBy,
		ResolutionDetails:    a.ResolutionDetails,
		ClosedAt:             a.ClosedAt,
		ClosedBy:             a.ClosedBy,
		ClosingReason:        a.ClosingReason,
		Assignee:             a.Assignee,
		AssignedAt:           a.AssignedAt,
		AssignedBy:           a.AssignedBy,
		DeletedAt:            a.DeletedAt,
		DeletedBy:            a.DeletedBy,
		DeletionReason:       a.DeletionReason,
		Notes:                notes,
	}
}

// CreatedDocument builds the initial document for an alert.created event
func CreatedDocument(e domain.Event) domain.AlertDocument {
	return ToDocument(domain.Apply(domain.Alert{}, e))
}

// FieldUpdate maps a non-creation event to a partial document update.
// NoteAdded needs the current notes and is handled by the projector; it
// and unknown payloads report false.
func FieldUpdate(e domain.Event) (domain.DocumentUpdate, bool) {
	var fields map[string]any

	switch p := e.Payload.(type) {
	case domain.AlertUpdated:
		details := p.Details.Clone()
		if details == nil {
			details = domain.AlertDetails{}
		}
		fields = touched(p.UpdatedAt, p.UpdatedBy, map[string]any{
			fieldSeverity:    p.Severity,
			fieldDescription: p.Description,
			fieldDetails:     details,
		})
	case domain.AlertAcknowledged:
		fields = touched(p.AcknowledgedAt, p.AcknowledgedBy, map[string]any{
			fieldStatus:               p.NewStatus,
			fieldAcknowledgedAt:       p.AcknowledgedAt,
			fieldAcknowledgedBy:       p.AcknowledgedBy,
			fieldAcknowledgementNotes: p.Notes,
		})
	case domain.AlertResolved:
		fields = touched(p.ResolvedAt, p.ResolvedBy, map[string]any{
			fieldStatus:            p.NewStatus,
			fieldResolvedAt:        p.ResolvedAt,
			fieldResolvedBy:        p.ResolvedBy,
			fieldResolutionDetails: p.ResolutionDetails,
		})
	case domain.AlertClosed:
		fields = touched(p.ClosedAt, p.ClosedBy, map[string]any{
			fieldStatus:        p.NewStatus,
			fieldClosedAt:      p.ClosedAt,
			fieldClosedBy:      p.ClosedBy,
			fieldClosingReason: p.Reason,
		})
	case domain.AlertAssigned:
		fields = touched(p.AssignedAt, p.AssignedBy, map[string]any{
			fieldAssignee:   p.Assignee,
			fieldAssignedAt: p.AssignedAt,
			fieldAssignedBy: p.AssignedBy,
		})
	case domain.AlertDeleted:
		fields = touched(p.DeletedAt, p.DeletedBy, map[string]any{
			fieldStatus:         p.NewStatus,
			fieldDeletedAt:      p.DeletedAt,
			fieldDeletedBy:      p.DeletedBy,
			fieldDeletionReason: p.Reason,
		})
	default:
		return domain.DocumentUpdate{}, false
	}

	fields[fieldVersion] = e.Version
	return domain.DocumentUpdate{AlertID: e.AlertID.String(), Fields: fields}, true
}

// NoteUpdate appends note to notes. It reports false when a note with the
// same id is already present.
func NoteUpdate(e domain.Event, note domain.AlertNote, notes []domain.AlertNote) (domain.DocumentUpdate, bool) {
	if slices.ContainsFunc(notes, func(n domain.AlertNote) bool { return n.ID == note.ID }) {
		return domain.DocumentUpdate{}, false
	}
	next := append(slices.Clone(notes), note)
	fields := touched(note.Timestamp, note.Author, map[string]any{fieldNotes: next})
	fields[fieldVersion] = e.Version
	return domain.DocumentUpdate{AlertID: e.AlertID.String(), Fields: fields}, true
}

func touched(at time.Time, by string, fields map[string]any) map[string]any {
	fields[fieldUpdatedAt] = at
	fields[fieldUpdatedBy] = by
	return fields
}
