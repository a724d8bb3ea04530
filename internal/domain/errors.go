package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates that the remote service kept rejecting requests with 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransientFetch indicates that a single page request failed and may succeed on a later run.
	ErrTransientFetch = errors.New("transient fetch failure")

	// ErrMalformedPayload indicates that a page payload could not be decoded.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrIntegrityConflict indicates that the store rejected a single record write.
	ErrIntegrityConflict = errors.New("integrity conflict")

	// ErrOutOfRange indicates a traversal jump outside the result bounds.
	ErrOutOfRange = errors.New("out of range")

	// ErrCollectionInProgress indicates that a collection run already holds the store.
	ErrCollectionInProgress = errors.New("collection in progress")
)

// ValidationError represents a rejected input value for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError provides details about a rate limit error.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap matches both ErrRateLimited and ErrTransientFetch.
func (e *RateLimitError) Unwrap() []error {
	return []error{ErrRateLimited, ErrTransientFetch}
}

// ExternalAPIError describes a failed page request: a non-2xx status or,
// when StatusCode is zero, a transport fault carried in Cause.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s API error: %s", e.Source, e.Message)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns ErrTransientFetch and the underlying cause, if any.
func (e *ExternalAPIError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrTransientFetch}
	}
	return []error{ErrTransientFetch, e.Cause}
}

// IntegrityConflictError reports a single record the store refused to write.
type IntegrityConflictError struct {
	ExternalID string
	Cause      error
}

// Error implements the error interface.
func (e *IntegrityConflictError) Error() string {
	return fmt.Sprintf("integrity conflict writing %q: %v", e.ExternalID, e.Cause)
}

// Unwrap returns ErrIntegrityConflict and the driver error.
func (e *IntegrityConflictError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrIntegrityConflict}
	}
	return []error{ErrIntegrityConflict, e.Cause}
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewIntegrityConflictError creates a new IntegrityConflictError.
func NewIntegrityConflictError(externalID string, cause error) *IntegrityConflictError {
	return &IntegrityConflictError{
		ExternalID: externalID,
		Cause:      cause,
	}
}
