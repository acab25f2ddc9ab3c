// Package errors provides structured error types and response helpers for the API.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/narvanalabs/expense-orgs/internal/models"
)

// Error codes for structured API responses. Domain errors use their kind
// as the code; CodeInternalError covers everything else.
const (
	CodeValidationError    = string(models.KindValidation)
	CodeUnauthorized       = string(models.KindUnauthenticated)
	CodeForbidden          = string(models.KindForbidden)
	CodeNotFound           = string(models.KindNotFound)
	CodeConflict           = string(models.KindConflict)
	CodeInvariantViolation = string(models.KindInvariantViolation)
	CodeInvalidState       = string(models.KindInvalidState)
	CodeExpired            = string(models.KindExpired)
	CodeEmailMismatch      = string(models.KindEmailMismatch)
	CodeInternalError      = "INTERNAL_ERROR"
)

// APIError represents a structured API error response.
type APIError struct {
	Code      string         `json:"code"`
	Reason    string         `json:"reason,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithRequestID returns a copy of the error with the request ID set.
func (e *APIError) WithRequestID(requestID string) *APIError {
	c := *e
	c.RequestID = requestID
	return &c
}

// New creates a new APIError with the given code and message.
func New(code, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *APIError {
	return New(CodeValidationError, message)
}

// NewUnauthorizedError creates an unauthorized error.
func NewUnauthorizedError(message string) *APIError {
	return New(CodeUnauthorized, message)
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *APIError {
	return New(CodeNotFound, message)
}

// NewInternalError creates an internal server error.
func NewInternalError(message string) *APIError {
	return New(CodeInternalError, message)
}

// FromError converts a service error into its API representation. Domain
// errors keep their kind, reason and message; anything else becomes an
// internal error without leaking its text. The second result reports
// whether err was a domain error.
func FromError(err error) (*APIError, bool) {
	var domainErr *models.Error
	if !errors.As(err, &domainErr) {
		return NewInternalError("An unexpected error occurred"), false
	}

	apiErr := &APIError{
		Code:    string(domainErr.Kind),
		Reason:  string(domainErr.Reason),
		Message: domainErr.Message,
	}
	if domainErr.Field != "" {
		apiErr.Details = map[string]any{"field": domainErr.Field}
	}
	return apiErr, true
}

// HTTPStatusCode returns the appropriate HTTP status code for the error.
func (e *APIError) HTTPStatusCode() int {
	switch e.Code {
	case CodeValidationError:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeEmailMismatch:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidState:
		return http.StatusConflict
	case CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case CodeExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes an APIError as a JSON response.
func WriteError(w http.ResponseWriter, err *APIError) {
	WriteJSON(w, err.HTTPStatusCode(), err)
}
