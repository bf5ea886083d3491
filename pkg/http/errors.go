package http

import (
	"fmt"
	"net/http"
)

// AppError is an error that knows its HTTP status. Handlers return it and
// ErrorHandler renders it.
type AppError struct {
	Status  int          `json:"-"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
	Err     error        `json:"-"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Code    string   `json:"code"`
	Field   string   `json:"field,omitempty"`
	Message string   `json:"message"`
	Options []string `json:"options,omitempty"`
	Limit   string   `json:"limit,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithError attaches the cause. It is logged, never sent to the client.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func newAppError(status int, code, message string) *AppError {
	return &AppError{Status: status, Code: code, Message: message}
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return newAppError(http.StatusNotFound, "ERR_NOT_FOUND", fmt.Sprintf(format, a...))
}

func InternalError(message string) *AppError {
	return newAppError(http.StatusInternalServerError, "ERR_INTERNAL", message)
}

// UnavailableError is for optional backends that are not configured.
func UnavailableError(message string) *AppError {
	return newAppError(http.StatusServiceUnavailable, "ERR_UNAVAILABLE", message)
}

// ValidationFailed wraps field errors in a 400.
func ValidationFailed(details []FieldError) *AppError {
	e := newAppError(http.StatusBadRequest, "ERR_VALIDATION", "request is invalid")
	e.Details = details
	return e
}
