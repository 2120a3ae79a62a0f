package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Client errors (4xx)
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeBadRequest        ErrorCode = "BAD_REQUEST"
	CodePayloadTooLarge   ErrorCode = "PAYLOAD_TOO_LARGE"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeAlreadyExists     ErrorCode = "ALERT_ALREADY_EXISTS"
	CodeConcurrentUpdate  ErrorCode = "CONCURRENT_MODIFICATION"
	CodeInvalidTransition ErrorCode = "INVALID_STATE_TRANSITION"

	// Server errors (5xx)
	CodeInternal    ErrorCode = "INTERNAL_ERROR"
	CodeUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

type codeInfo struct {
	status    int
	retryable bool
}

// A retryable code may succeed when the same request is sent again
// unchanged. An invalid transition never does: the status has to change
// first.
var codes = map[ErrorCode]codeInfo{
	CodeValidation:        {status: http.StatusBadRequest},
	CodeBadRequest:        {status: http.StatusBadRequest},
	CodePayloadTooLarge:   {status: http.StatusRequestEntityTooLarge},
	CodeNotFound:          {status: http.StatusNotFound},
	CodeAlreadyExists:     {status: http.StatusConflict},
	CodeConcurrentUpdate:  {status: http.StatusConflict, retryable: true},
	CodeInvalidTransition: {status: http.StatusConflict},
	CodeInternal:          {status: http.StatusInternalServerError},
	CodeUnavailable:       {status: http.StatusServiceUnavailable, retryable: true},
}

// AppError represents a structured application error
type AppError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"`
}

// New creates an error whose HTTP status and retryability follow from code
func New(code ErrorCode, message string) *AppError {
	info, ok := codes[code]
	if !ok {
		info = codes[CodeInternal]
	}
	return &AppError{
		Code:       code,
		Message:    message,
		Retryable:  info.retryable,
		HTTPStatus: info.status,
	}
}

// Wrap is New with an underlying cause that is logged but never sent
func Wrap(code ErrorCode, message string, err error) *AppError {
	e := New(code, message)
	e.Err = err
	return e
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a single detail to the error
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func Validation(message string) *AppError {
	return New(CodeValidation, message)
}

func BadRequest(message string) *AppError {
	return New(CodeBadRequest, message)
}

// PayloadTooLarge reports a request body over limit bytes
func PayloadTooLarge(limit int64) *AppError {
	return New(CodePayloadTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit)).
		WithDetail("limit", limit)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, resource+" not found")
}

func Internal(err error) *AppError {
	return Wrap(CodeInternal, "an internal error occurred", err)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
