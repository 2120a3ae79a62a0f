package domain

import (
	"time"

	"github.com/google/uuid"
)

// Command names, used in errors, logs and metrics
const (
	CommandCreate      = "create"
	CommandUpdate      = "update"
	CommandAcknowledge = "acknowledge"
	CommandResolve     = "resolve"
	CommandClose       = "close"
	CommandAddNote     = "add_note"
	CommandAssign      = "assign"
	CommandDelete      = "delete"
)

// Command is a request to change one alert. The set of commands is closed:
// Decide switches over the concrete types below.
type Command interface {
	Target() uuid.UUID
	Name() string
}

// CreateAlert opens a new alert
type CreateAlert struct {
	AlertID        uuid.UUID
	Severity       AlertSeverity
	Description    string
	Source         string
	Details        map[string]any
	EventTimestamp *time.Time
	InitiatedBy    string
}

// UpdateAlert overwrites the supplied fields. Nil fields are left untouched.
type UpdateAlert struct {
	AlertID     uuid.UUID
	Severity    *AlertSeverity
	Description *string
	Details     map[string]any
	UpdatedBy   string
}

// AcknowledgeAlert marks an active alert as seen
type AcknowledgeAlert struct {
	AlertID        uuid.UUID
	AcknowledgedBy string
	Notes          string
}

// ResolveAlert marks an alert as fixed
type ResolveAlert struct {
	AlertID           uuid.UUID
	ResolvedBy        string
	ResolutionDetails string
}

// CloseAlert ends an alert's lifecycle
type CloseAlert struct {
	AlertID  uuid.UUID
	ClosedBy string
	Reason   string
}

// AddNote appends a note to an alert
type AddNote struct {
	AlertID uuid.UUID
	Text    string
	Author  string
}

// AssignAlert changes the alert's assignee
type AssignAlert struct {
	AlertID    uuid.UUID
	Assignee   string
	AssignedBy string
}

// DeleteAlert logically deletes an alert. Its history is kept.
type DeleteAlert struct {
	AlertID   uuid.UUID
	DeletedBy string
	Reason    string
}

func (c CreateAlert) Target() uuid.UUID      { return c.AlertID }
func (c UpdateAlert) Target() uuid.UUID      { return c.AlertID }
func (c AcknowledgeAlert) Target() uuid.UUID { return c.AlertID }
func (c ResolveAlert) Target() uuid.UUID     { return c.AlertID }
func (c CloseAlert) Target() uuid.UUID       { return c.AlertID }
func (c AddNote) Target() uuid.UUID          { return c.AlertID }
func (c AssignAlert) Target() uuid.UUID      { return c.AlertID }
func (c DeleteAlert) Target() uuid.UUID      { return c.AlertID }

func (CreateAlert) Name() string      { return CommandCreate }
func (UpdateAlert) Name() string      { return CommandUpdate }
func (AcknowledgeAlert) Name() string { return CommandAcknowledge }
func (ResolveAlert) Name() string     { return CommandResolve }
func (CloseAlert) Name() string       { return CommandClose }
func (AddNote) Name() string          { return CommandAddNote }
func (AssignAlert) Name() string      { return CommandAssign }
func (DeleteAlert) Name() string      { return CommandDelete }
