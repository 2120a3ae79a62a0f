package port

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
)

// ============================================================================
// PRIMARY PORTS (Driving)
// These interfaces define what the application OFFERS to the outside world.
// They are IMPLEMENTED by the core services.
// They are CALLED by adapters (http handlers, ingestion, tests, etc.)
// ============================================================================

// AlertCommandService defines the primary port for alert state changes
type AlertCommandService interface {
	Create(ctx context.Context, input CreateAlertInput) (*CommandResult, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateAlertInput) (*CommandResult, error)
	Acknowledge(ctx context.Context, id uuid.UUID, input AcknowledgeAlertInput) (*CommandResult, error)
	Resolve(ctx context.Context, id uuid.UUID, input ResolveAlertInput) (*CommandResult, error)
	Close(ctx context.Context, id uuid.UUID, input CloseAlertInput) (*CommandResult, error)
	AddNote(ctx context.Context, id uuid.UUID, input AddNoteInput) (*CommandResult, error)
	Assign(ctx context.Context, id uuid.UUID, input AssignAlertInput) (*CommandResult, error)
	Delete(ctx context.Context, id uuid.UUID, input DeleteAlertInput) (*CommandResult, error)

	// Get returns the write-side state rebuilt from the event store
	Get(ctx context.Context, id uuid.UUID) (*domain.Alert, error)
}

// AlertQueryService defines the primary port for read-model queries
type AlertQueryService interface {
	GetByID(ctx context.Context, id string) (*domain.AlertDocument, error)
	List(ctx context.Context, page, limit int) (*AlertDocumentList, error)
	ByStatus(ctx context.Context, status domain.AlertStatus, page, limit int) (*AlertDocumentList, error)
	ByTimeRange(ctx context.Context, from, to time.Time, page, limit int) (*AlertDocumentList, error)
	ByKeyword(ctx context.Context, keyword string, page, limit int) (*AlertDocumentList, error)
	Search(ctx context.Context, query domain.AlertQuery) (*AlertDocumentList, error)
}

// IngestService defines the primary port for externally sourced alerts
type IngestService interface {
	Ingest(ctx context.Context, msg IngestMessage) (*CommandResult, error)
}

// ProjectionRebuilder defines the primary port for read-model rebuilds
type ProjectionRebuilder interface {
	RebuildAlerts(ctx context.Context) (*RebuildResult, error)
}

// ============================================================================
// DTOs (Data Transfer Objects)
// ============================================================================

// Command DTOs

type CreateAlertInput struct {
	AlertID        *uuid.UUID
	Severity       domain.AlertSeverity
	Description    string
	Source         *string
	Details        map[string]any
	EventTimestamp *time.Time
	InitiatedBy    string
}

type UpdateAlertInput struct {
	Severity    *domain.AlertSeverity
	Description *string
	Details     map[string]any
	UpdatedBy   string
}

type AcknowledgeAlertInput struct {
	AcknowledgedBy string
	Notes          string
}

type ResolveAlertInput struct {
	ResolvedBy        string
	ResolutionDetails string
}

type CloseAlertInput struct {
	ClosedBy string
	Reason   string
}

type AddNoteInput struct {
	Text   string
	Author string
}

type AssignAlertInput struct {
	Assignee   string
	AssignedBy string
}

type DeleteAlertInput struct {
	DeletedBy string
	Reason    string
}

// CommandResult is the outcome of an accepted command.
// Changed is false for accepted no-ops, in which case Events is empty.
type CommandResult struct {
	Alert    *domain.Alert
	Events   []domain.Event
	Changed  bool
	Warnings []string
}

// Query DTOs

type AlertDocumentList struct {
	Alerts []domain.AlertDocument
	Total  int64
	Page   int
	Limit  int
}

// Ingestion DTOs

// IngestMessage is an alert reported by an external system
type IngestMessage struct {
	MessageID    string
	SourceSystem string
	Severity     string
	Description  string
	Timestamp    time.Time
	Details      map[string]any
}

// Rebuild DTOs

// RebuildResult describes a started or completed projection rebuild
type RebuildResult struct {
	Mode           string
	WorkflowID     string
	RunID          string
	EventsReplayed int64
}

// Rebuild modes
const (
	RebuildModeInline   = "inline"
	RebuildModeWorkflow = "workflow"
)
