package domain

import (
	"strings"
	"time"
)

// Query paging bounds
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// AlertDocument is the denormalized read-model view of one alert.
// It is derived from events and may lag behind the event store.
type AlertDocument struct {
	AlertID        string        `json:"alertId"`
	Version        int64         `json:"version"`
	Severity       AlertSeverity `json:"severity"`
	Description    string        `json:"description"`
	Source         string        `json:"source"`
	Status         AlertStatus   `json:"status"`
	Details        AlertDetails  `json:"details"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	EventTimestamp time.Time     `json:"eventTimestamp"`
	InitiatedBy    string        `json:"initiatedBy,omitempty"`
	UpdatedBy      string        `json:"updatedBy,omitempty"`

	AcknowledgedAt       *time.Time `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy       string     `json:"acknowledgedBy,omitempty"`
	AcknowledgementNotes string     `json:"acknowledgementNotes,omitempty"`

	ResolvedAt        *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy        string     `json:"resolvedBy,omitempty"`
	ResolutionDetails string     `json:"resolutionDetails,omitempty"`

	ClosedAt      *time.Time `json:"closedAt,omitempty"`
	ClosedBy      string     `json:"closedBy,omitempty"`
	ClosingReason string     `json:"closingReason,omitempty"`

	Assignee   string     `json:"assignee,omitempty"`
	AssignedAt *time.Time `json:"assignedAt,omitempty"`
	AssignedBy string     `json:"assignedBy,omitempty"`

	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
	DeletedBy      string     `json:"deletedBy,omitempty"`
	DeletionReason string     `json:"deletionReason,omitempty"`

	Notes []AlertNote `json:"notes"`
}

// DocumentUpdate is a partial update of one read-model document.
// Fields is keyed by the document's JSON field names.
type DocumentUpdate struct {
	AlertID string
	Fields  map[string]any
}

// AlertQuery selects read-model documents. Zero-valued filters match all.
type AlertQuery struct {
	Status  AlertStatus
	From    *time.Time
	To      *time.Time
	Keyword string
	Page    int
	Limit   int
}

// Normalize clamps paging to the supported bounds
func (q AlertQuery) Normalize() AlertQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	q.Keyword = strings.TrimSpace(q.Keyword)
	return q
}

// Offset returns the number of documents skipped before the current page
func (q AlertQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Matches reports whether doc satisfies every filter of the query
func (q AlertQuery) Matches(doc AlertDocument) bool {
	if q.Status != "" && doc.Status != q.Status {
		return false
	}
	if q.From != nil && doc.CreatedAt.Before(*q.From) {
		return false
	}
	if q.To != nil && doc.CreatedAt.After(*q.To) {
		return false
	}
	if q.Keyword != "" {
		kw := strings.ToLower(q.Keyword)
		if !strings.Contains(strings.ToLower(doc.Description), kw) &&
			!strings.Contains(strings.ToLower(doc.Source), kw) {
			return false
		}
	}
	return true
}

// DocumentPage is one page of query results, newest first
type DocumentPage struct {
	Items []AlertDocument
	Total int64
	Page  int
	Limit int
}
