package domain

import (
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultSource is assigned to alerts created without a source
const DefaultSource = "system"

// Description length bounds, in characters
const (
	DescriptionMinLength = 5
	DescriptionMaxLength = 1000
)

// AlertSeverity represents the severity of an alert
type AlertSeverity string

const (
	AlertSeverityCritical AlertSeverity = "CRITICAL"
	AlertSeverityHigh     AlertSeverity = "HIGH"
	AlertSeverityMedium   AlertSeverity = "MEDIUM"
	AlertSeverityLow      AlertSeverity = "LOW"
	AlertSeverityInfo     AlertSeverity = "INFO"
)

// AlertSeverities lists every known severity, most severe first
var AlertSeverities = []AlertSeverity{
	AlertSeverityCritical,
	AlertSeverityHigh,
	AlertSeverityMedium,
	AlertSeverityLow,
	AlertSeverityInfo,
}

// ParseSeverity parses a severity label case-insensitively
func ParseSeverity(value string) (AlertSeverity, bool) {
	s := AlertSeverity(strings.ToUpper(strings.TrimSpace(value)))
	return s, s.Valid()
}

// Valid reports whether the severity is a known value
func (s AlertSeverity) Valid() bool {
	return slices.Contains(AlertSeverities, s)
}

// AlertStatus represents the lifecycle status of an alert
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "ACTIVE"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusResolved     AlertStatus = "RESOLVED"
	AlertStatusClosed       AlertStatus = "CLOSED"
	AlertStatusDeleted      AlertStatus = "DELETED"
)

// AlertStatuses lists every known status
var AlertStatuses = []AlertStatus{
	AlertStatusActive,
	AlertStatusAcknowledged,
	AlertStatusResolved,
	AlertStatusClosed,
	AlertStatusDeleted,
}

// ParseStatus parses a status label case-insensitively
func ParseStatus(value string) (AlertStatus, bool) {
	s := AlertStatus(strings.ToUpper(strings.TrimSpace(value)))
	return s, slices.Contains(AlertStatuses, s)
}

// IsFinal reports whether the status no longer accepts edits
func (s AlertStatus) IsFinal() bool {
	return s == AlertStatusClosed || s == AlertStatusDeleted
}

// AlertDetails is an open key/value bag attached to an alert.
// Values are opaque to the aggregate and may be nested.
type AlertDetails map[string]any

// NewAlertDetails returns a deep copy of m. A nil map yields an empty bag.
func NewAlertDetails(m map[string]any) AlertDetails {
	d := make(AlertDetails, len(m))
	for k, v := range m {
		d[k] = copyValue(v)
	}
	return d
}

// Clone returns a deep copy of the bag
func (d AlertDetails) Clone() AlertDetails {
	return NewAlertDetails(d)
}

// Equal reports whether both bags hold the same keys and values
func (d AlertDetails) Equal(other AlertDetails) bool {
	if len(d) != len(other) {
		return false
	}
	return reflect.DeepEqual(map[string]any(d), map[string]any(other))
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = copyValue(inner)
		}
		return out
	case AlertDetails:
		return NewAlertDetails(t)
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = copyValue(inner)
		}
		return out
	default:
		return v
	}
}

// AlertNote is a single immutable note attached to an alert
type AlertNote struct {
	ID        uuid.UUID `json:"noteId"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// Alert is the aggregate state of one alert, rebuilt by folding its events
type Alert struct {
	ID             uuid.UUID
	Version        int64
	Severity       AlertSeverity
	Description    string
	Source         string
	Status         AlertStatus
	Details        AlertDetails
	CreatedAt      time.Time
	UpdatedAt      time.Time
	EventTimestamp time.Time
	InitiatedBy    string
	UpdatedBy      string

	AcknowledgedAt       *time.Time
	AcknowledgedBy       string
	AcknowledgementNotes string

	ResolvedAt        *time.Time
	ResolvedBy        string
	ResolutionDetails string

	ClosedAt      *time.Time
	ClosedBy      string
	ClosingReason string

	Assignee   string
	AssignedAt *time.Time
	AssignedBy string

	DeletedAt      *time.Time
	DeletedBy      string
	DeletionReason string

	Notes []AlertNote
}

// Exists reports whether the alert has been created
func (a Alert) Exists() bool {
	return a.Version > 0
}

// CanAcknowledge checks if the alert can be acknowledged
func (a Alert) CanAcknowledge() bool {
	return a.Status == AlertStatusActive
}

// CanResolve checks if the alert can be resolved
func (a Alert) CanResolve() bool {
	return a.Status == AlertStatusActive || a.Status == AlertStatusAcknowledged
}

// CanEdit checks if the alert still accepts updates, notes and assignment
func (a Alert) CanEdit() bool {
	return !a.Status.IsFinal()
}

// Clone returns a copy that shares no mutable state with a
func (a Alert) Clone() Alert {
	a.Details = a.Details.Clone()
	a.Notes = slices.Clone(a.Notes)
	return a
}
