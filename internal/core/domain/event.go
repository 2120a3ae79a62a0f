package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of an alert event
type EventType string

const (
	EventAlertCreated      EventType = "alert.created"
	EventAlertUpdated      EventType = "alert.updated"
	EventAlertAcknowledged EventType = "alert.acknowledged"
	EventAlertResolved     EventType = "alert.resolved"
	EventAlertClosed       EventType = "alert.closed"
	EventNoteAdded         EventType = "alert.note_added"
	EventAlertAssigned     EventType = "alert.assigned"
	EventAlertDeleted      EventType = "alert.deleted"
)

// Event is an immutable fact about one alert.
// Version is the position in the alert's own history, starting at 1.
// Sequence is the global append order and is assigned by the event store.
type Event struct {
	ID         uuid.UUID
	AlertID    uuid.UUID
	Version    int64
	Sequence   int64
	Type       EventType
	OccurredAt time.Time
	Payload    EventPayload
}

// EventPayload is the type-specific body of an event
type EventPayload interface {
	EventType() EventType
}

// AlertCreated is emitted once, when the alert is opened
type AlertCreated struct {
	Severity       AlertSeverity `json:"severity"`
	Description    string        `json:"description"`
	Source         string        `json:"source"`
	Details        AlertDetails  `json:"details"`
	InitialStatus  AlertStatus   `json:"initialStatus"`
	CreatedAt      time.Time     `json:"createdAt"`
	EventTimestamp time.Time     `json:"eventTimestamp"`
	InitiatedBy    string        `json:"initiatedBy,omitempty"`
}

// AlertUpdated carries the resulting values of every editable field,
// not a diff, so replay never depends on prior state
type AlertUpdated struct {
	Severity    AlertSeverity `json:"severity"`
	Description string        `json:"description"`
	Details     AlertDetails  `json:"details"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	UpdatedBy   string        `json:"updatedBy,omitempty"`
}

type AlertAcknowledged struct {
	AcknowledgedBy string      `json:"acknowledgedBy"`
	AcknowledgedAt time.Time   `json:"acknowledgedAt"`
	Notes          string      `json:"notes,omitempty"`
	NewStatus      AlertStatus `json:"newStatus"`
}

type AlertResolved struct {
	ResolvedBy        string      `json:"resolvedBy"`
	ResolutionDetails string      `json:"resolutionDetails"`
	ResolvedAt        time.Time   `json:"resolvedAt"`
	NewStatus         AlertStatus `json:"newStatus"`
}

type AlertClosed struct {
	ClosedBy  string      `json:"closedBy"`
	ClosedAt  time.Time   `json:"closedAt"`
	Reason    string      `json:"reason,omitempty"`
	NewStatus AlertStatus `json:"newStatus"`
}

type NoteAdded struct {
	Note AlertNote `json:"note"`
}

type AlertAssigned struct {
	Assignee   string    `json:"assignee"`
	AssignedAt time.Time `json:"assignedAt"`
	AssignedBy string    `json:"assignedBy,omitempty"`
}

type AlertDeleted struct {
	DeletedBy string      `json:"deletedBy,omitempty"`
	DeletedAt time.Time   `json:"deletedAt"`
	Reason    string      `json:"reason,omitempty"`
	NewStatus AlertStatus `json:"newStatus"`
}

func (AlertCreated) EventType() EventType      { return EventAlertCreated }
func (AlertUpdated) EventType() EventType      { return EventAlertUpdated }
func (AlertAcknowledged) EventType() EventType { return EventAlertAcknowledged }
func (AlertResolved) EventType() EventType     { return EventAlertResolved }
func (AlertClosed) EventType() EventType       { return EventAlertClosed }
func (NoteAdded) EventType() EventType         { return EventNoteAdded }
func (AlertAssigned) EventType() EventType     { return EventAlertAssigned }
func (AlertDeleted) EventType() EventType      { return EventAlertDeleted }

// EncodePayload serializes an event payload for storage
func EncodePayload(p EventPayload) ([]byte, error) {
	if p == nil {
		return nil, ErrUnknownEvent
	}
	return json.Marshal(p)
}

// DecodePayload restores a stored payload of the given type
func DecodePayload(t EventType, raw []byte) (EventPayload, error) {
	var p EventPayload
	switch t {
	case EventAlertCreated:
		p = &AlertCreated{}
	case EventAlertUpdated:
		p = &AlertUpdated{}
	case EventAlertAcknowledged:
		p = &AlertAcknowledged{}
	case EventAlertResolved:
		p = &AlertResolved{}
	case EventAlertClosed:
		p = &AlertClosed{}
	case EventNoteAdded:
		p = &NoteAdded{}
	case EventAlertAssigned:
		p = &AlertAssigned{}
	case EventAlertDeleted:
		p = &AlertDeleted{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, t)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return deref(p), nil
}

func deref(p EventPayload) EventPayload {
	switch v := p.(type) {
	case *AlertCreated:
		if v.Details == nil {
			v.Details = AlertDetails{}
		}
		return *v
	case *AlertUpdated:
		if v.Details == nil {
			v.Details = AlertDetails{}
		}
		return *v
	case *AlertAcknowledged:
		return *v
	case *AlertResolved:
		return *v
	case *AlertClosed:
		return *v
	case *NoteAdded:
		return *v
	case *AlertAssigned:
		return *v
	case *AlertDeleted:
		return *v
	}
	return p
}
