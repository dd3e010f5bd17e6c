package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Boundary errors
	ErrorTypeInvalidRequest ErrorType = "INVALID_REQUEST"

	// Orchestration errors
	ErrorTypeContractViolation      ErrorType = "CONTRACT_VIOLATION"
	ErrorTypeCapabilityUnavailable  ErrorType = "CAPABILITY_UNAVAILABLE"
	ErrorTypePersistenceUnconfirmed ErrorType = "PERSISTENCE_UNCONFIRMED"
	ErrorTypeNoActionableIntent     ErrorType = "NO_ACTIONABLE_INTENT"

	// Graph invariant errors
	ErrorTypeDuplicateConcept  ErrorType = "DUPLICATE_CONCEPT"
	ErrorTypeSelfReference     ErrorType = "SELF_REFERENCE"
	ErrorTypeDanglingReference ErrorType = "DANGLING_REFERENCE"

	// Infrastructure errors
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeInternal     ErrorType = "INTERNAL"
	ErrorTypeTimeout      ErrorType = "TIMEOUT"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	HTTPStatus int                    `json:"-"`

	// Retryable marks failures the workflow may retry (transient adapter
	// failures and timeouts). Contract and invariant errors are never retryable
	// at the adapter level; the workflow owns their bounded retry policy.
	Retryable bool `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// Constructor functions for common error types

// NewInvalidRequestError creates a boundary validation error
func NewInvalidRequestError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewContractViolationError creates an error for a payload that failed its schema gate
func NewContractViolationError(role string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeContractViolation,
		Message:    fmt.Sprintf("output of role '%s' violates its contract", role),
		Cause:      err,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewCapabilityUnavailableError creates a retryable error for a failed adapter call
func NewCapabilityUnavailableError(capability string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeCapabilityUnavailable,
		Message:    fmt.Sprintf("capability '%s' is unavailable", capability),
		Cause:      err,
		HTTPStatus: http.StatusBadGateway,
		Retryable:  true,
	}
}

// NewCapabilityContentError creates a non-retryable error for a rejected adapter call
func NewCapabilityContentError(capability string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeCapabilityUnavailable,
		Message:    fmt.Sprintf("capability '%s' rejected the request", capability),
		Cause:      err,
		HTTPStatus: http.StatusBadGateway,
	}
}

// NewPersistenceUnconfirmedError creates an error for a write not observed on verify-read
func NewPersistenceUnconfirmedError(path string) *AppError {
	return &AppError{
		Type:       ErrorTypePersistenceUnconfirmed,
		Message:    fmt.Sprintf("write to '%s' was not observed on verify-read", path),
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewNoActionableIntentError creates an error for a prompt with nothing to act on
func NewNoActionableIntentError(prompt string) *AppError {
	return &AppError{
		Type:       ErrorTypeNoActionableIntent,
		Message:    "prompt carries no actionable learning intent",
		Details:    map[string]interface{}{"prompt": prompt},
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewDuplicateConceptError creates a graph invariant error for a conceptId collision
func NewDuplicateConceptError(conceptID string) *AppError {
	return &AppError{
		Type:       ErrorTypeDuplicateConcept,
		Message:    fmt.Sprintf("concept '%s' already exists in graph", conceptID),
		HTTPStatus: http.StatusConflict,
	}
}

// NewSelfReferenceError creates a graph invariant error for an edge with equal endpoints
func NewSelfReferenceError(conceptID string) *AppError {
	return &AppError{
		Type:       ErrorTypeSelfReference,
		Message:    fmt.Sprintf("edge connects concept '%s' to itself", conceptID),
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewDanglingReferenceError creates a graph invariant error for an edge with a missing endpoint
func NewDanglingReferenceError(conceptID string) *AppError {
	return &AppError{
		Type:       ErrorTypeDanglingReference,
		Message:    fmt.Sprintf("edge references concept '%s' which is not in the graph", conceptID),
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewTimeoutError creates a retryable timeout error; timeouts are treated
// identically to transient capability failures
func NewTimeoutError(operation string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeTimeout,
		Message:    fmt.Sprintf("operation '%s' timed out", operation),
		Cause:      cause,
		HTTPStatus: http.StatusRequestTimeout,
		Retryable:  true,
	}
}

// Helper functions

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsRetryable checks if an error may be retried by the workflow
func IsRetryable(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Retryable
}

// IsContractViolation checks if an error is a contract violation
func IsContractViolation(err error) bool {
	return IsType(err, ErrorTypeContractViolation)
}

// IsPersistenceUnconfirmed checks if an error is an unconfirmed write
func IsPersistenceUnconfirmed(err error) bool {
	return IsType(err, ErrorTypePersistenceUnconfirmed)
}

// IsGraphInvariant checks if an error is one of the graph invariant violations
func IsGraphInvariant(err error) bool {
	return IsType(err, ErrorTypeDuplicateConcept) ||
		IsType(err, ErrorTypeSelfReference) ||
		IsType(err, ErrorTypeDanglingReference)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// WithRunState annotates an error with the last orchestration state reached
// before the run failed, so callers can report how far the run got
func WithRunState(err error, lastState string) error {
	if err == nil {
		return nil
	}

	appErr := GetAppError(err)
	if appErr == nil {
		appErr = NewInternalError(err.Error()).WithCause(err)
	}
	if appErr.Details == nil {
		appErr.Details = map[string]interface{}{}
	}
	appErr.Details["lastState"] = lastState
	return appErr
}

// RunState extracts the last orchestration state from an error, if present
func RunState(err error) string {
	appErr := GetAppError(err)
	if appErr == nil || appErr.Details == nil {
		return ""
	}
	if state, ok := appErr.Details["lastState"].(string); ok {
		return state
	}
	return ""
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
