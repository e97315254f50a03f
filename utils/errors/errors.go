package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError represents a custom error type for API responses
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
}

// Error returns the error message
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches another APIError with the same code, so sentinels work with errors.Is
// even after details have been attached.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func NewAPIError(code, message string, status int, details ...string) *APIError {
	err := &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

var (
	ErrInvalidInput    = NewAPIError("INVALID_INPUT", "Invalid request data", http.StatusBadRequest)
	ErrUnauthorized    = NewAPIError("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrNotAuthorized   = NewAPIError("NOT_AUTHORIZED", "Not Authorized", http.StatusUnauthorized)
	ErrNotFound        = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrConflict        = NewAPIError("CONFLICT", "Resource conflict", http.StatusConflict)
	ErrTooManyRequests = NewAPIError("RATE_LIMITED", "Too many requests", http.StatusTooManyRequests)
	ErrInternal        = NewAPIError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
)

// NewValidationError builds a 400 error listing every failed field.
func NewValidationError(problems []string) *APIError {
	return NewAPIError("VALIDATION_ERROR", "Validation failed", http.StatusBadRequest, strings.Join(problems, "; "))
}

// NewNotFoundError builds a 404 error for a missing resource.
func NewNotFoundError(message string) *APIError {
	return NewAPIError(ErrNotFound.Code, message, http.StatusNotFound)
}

// NewConflictError builds a 409 error.
func NewConflictError(message string) *APIError {
	return NewAPIError(ErrConflict.Code, message, http.StatusConflict)
}

func Wrap(err error, code, message string, status int) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewAPIError(code, message, status, err.Error())
}

// StatusOf returns the HTTP status carried by err, or 500 for anything else.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}
