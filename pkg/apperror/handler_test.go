package apperror

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAppError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      ErrorCode
		status    int
		retryable bool
	}{
		{"validation", &domain.ValidationError{Field: "severity", Message: "unknown"}, CodeValidation, http.StatusBadRequest, false},
		{"transition", &domain.InvalidStateTransitionError{AlertID: uuid.New(), Status: domain.AlertStatusClosed, Command: domain.CommandAcknowledge}, CodeInvalidTransition, http.StatusConflict, false},
		{"wrapped not found", fmt.Errorf("load: %w", domain.ErrAlertNotFound), CodeNotFound, http.StatusNotFound, false},
		{"document not found", domain.ErrDocumentNotFound, CodeNotFound, http.StatusNotFound, false},
		{"already exists", domain.ErrAlertAlreadyExists, CodeAlreadyExists, http.StatusConflict, false},
		{"concurrency", fmt.Errorf("save: %w", domain.ErrConcurrencyConflict), CodeConcurrentUpdate, http.StatusConflict, true},
		{"projector stopped", domain.ErrProjectorStopped, CodeUnavailable, http.StatusServiceUnavailable, true},
		{"timeout", context.DeadlineExceeded, CodeUnavailable, http.StatusServiceUnavailable, true},
		{"passthrough", BadRequest("bad body"), CodeBadRequest, http.StatusBadRequest, false},
		{"too large", PayloadTooLarge(1024), CodePayloadTooLarge, http.StatusRequestEntityTooLarge, false},
		{"unknown", fmt.Errorf("boom"), CodeInternal, http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := ToAppError(tt.err)

			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.status, appErr.HTTPStatus)
			assert.Equal(t, tt.retryable, appErr.Retryable)
		})
	}
}

func TestNew_UnknownCodeIsInternal(t *testing.T) {
	appErr := New(ErrorCode("TEAPOT"), "short and stout")

	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	assert.False(t, appErr.Retryable)
}

func TestHandler_Handle(t *testing.T) {
	h := NewHandler(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-42"))

	h.Handle(rec, req, &domain.ValidationError{Field: "description", Message: "must not be blank"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(CodeValidation), body.Code)
	assert.Equal(t, "description", body.Details["field"])
	assert.Equal(t, "req-42", body.RequestID)
	assert.False(t, body.Retryable)
}

func TestHandler_HidesInternalCause(t *testing.T) {
	h := NewHandler(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)

	h.Handle(rec, req, fmt.Errorf("dial tcp 10.0.0.5:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}
