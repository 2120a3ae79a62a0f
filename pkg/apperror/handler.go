package apperror

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
)

// ErrorResponse is the JSON structure returned to clients
type ErrorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Retryable bool           `json:"retryable"`
	RequestID string         `json:"requestId,omitempty"`
}

// Handler writes error responses for the HTTP adapter
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a new error handler
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger}
}

// Handle maps err to an AppError and writes it
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	appErr := ToAppError(err)
	reqID := middleware.GetReqID(r.Context())

	attrs := []slog.Attr{
		slog.String("code", string(appErr.Code)),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", reqID),
	}
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		h.logger.LogAttrs(r.Context(), slog.LevelError, "request failed",
			append(attrs, slog.String("error", appErr.Error()))...)
	} else {
		h.logger.LogAttrs(r.Context(), slog.LevelDebug, "request rejected",
			append(attrs, slog.String("message", appErr.Message))...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Code:      string(appErr.Code),
		Message:   appErr.Message,
		Details:   appErr.Details,
		Retryable: appErr.Retryable,
		RequestID: reqID,
	}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}

// ToAppError converts any error to an AppError
func ToAppError(err error) *AppError {
	if appErr, ok := GetAppError(err); ok {
		return appErr
	}
	return mapDomainError(err)
}

func mapDomainError(err error) *AppError {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return Validation(verr.Error()).WithDetail("field", verr.Field)
	}

	var terr *domain.InvalidStateTransitionError
	if errors.As(err, &terr) {
		return New(CodeInvalidTransition, terr.Error()).
			WithDetail("status", string(terr.Status)).
			WithDetail("command", terr.Command)
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return Validation(err.Error())
	case errors.Is(err, domain.ErrAlertNotFound):
		return NotFound("alert")
	case errors.Is(err, domain.ErrDocumentNotFound):
		return NotFound("alert document")
	case errors.Is(err, domain.ErrAlertAlreadyExists):
		return New(CodeAlreadyExists, "alert already exists")
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return Wrap(CodeConcurrentUpdate, "alert was modified concurrently, retry the request", err)
	case errors.Is(err, domain.ErrProjectorStopped):
		return Wrap(CodeUnavailable, "projection is not running", err)
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(CodeUnavailable, "request timed out", err)
	default:
		return Internal(err)
	}
}
