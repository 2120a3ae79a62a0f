package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Domain errors - these are business logic errors
var (
	// Command errors
	ErrValidation             = errors.New("validation failed")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrUnknownCommand         = errors.New("unknown command")

	// Aggregate errors
	ErrAlertNotFound       = errors.New("alert not found")
	ErrAlertAlreadyExists  = errors.New("alert already exists")
	ErrConcurrencyConflict = errors.New("concurrent modification of alert")
	ErrCorruptHistory      = errors.New("alert event history is corrupt")
	ErrUnknownEvent        = errors.New("unknown event type")

	// Read model errors
	ErrDocumentNotFound       = errors.New("alert document not found")
	ErrProjectionWriteFailure = errors.New("projection write failed")
	ErrProjectorStopped       = errors.New("projector is stopped")
)

// ValidationError reports malformed command input for a single field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is matches ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// InvalidStateTransitionError reports a command that is not legal for the
// alert's current status
type InvalidStateTransitionError struct {
	AlertID uuid.UUID
	Status  AlertStatus
	Command string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("alert %s cannot %s from status %s", e.AlertID, e.Command, e.Status)
}

// Is matches ErrInvalidStateTransition
func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// ProjectionWriteError reports a failed write to the read store
type ProjectionWriteError struct {
	Op    string
	Count int
	Err   error
}

func (e *ProjectionWriteError) Error() string {
	return fmt.Sprintf("projection %s of %d update(s) failed: %v", e.Op, e.Count, e.Err)
}

func (e *ProjectionWriteError) Unwrap() error {
	return e.Err
}

// Is matches ErrProjectionWriteFailure
func (e *ProjectionWriteError) Is(target error) bool {
	return target == ErrProjectionWriteFailure
}
