// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "student", "program", "event"
	Op      string // Operation that failed, e.g., "Resolve", "Persist"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Student domain errors
var (
	ErrStudentNotFound       = NewDomainError("student", "Find", ErrNotFound, "student record not found")
	ErrStudentAlreadyExists  = NewDomainError("student", "Create", ErrAlreadyExists, "student record already exists")
	ErrInvalidPEN            = NewDomainError("student", "Validate", ErrInvalidID, "invalid personal education number")
	ErrInvalidStudentStatus  = NewDomainError("student", "Validate", ErrInvalidState, "unknown student status code")
	ErrInvalidSLPDate        = NewDomainError("student", "Validate", ErrInvalidFormat, "malformed SLP date")
	ErrMissingBirthdate      = NewDomainError("student", "DeriveAdultStart", ErrEmptyValue, "birthdate required for adult start date")
	ErrSnapshotStale         = NewDomainError("student", "Persist", ErrConcurrentModification, "snapshot changed concurrently")
	ErrOptionalProgramExists = NewDomainError("student", "AddOptionalProgram", ErrAlreadyExists, "optional program already attached")
)

// Program domain errors
var (
	ErrUnmappedRequirementYear = NewDomainError("program", "Resolve", ErrInvalidInput, "unmapped requirement year")
	ErrProgramNotResolvable    = NewDomainError("program", "Resolve", ErrInvalidInput, "program code could not be resolved")
	ErrRegistryEntryNotFound   = NewDomainError("program", "Lookup", ErrNotFound, "optional program registry entry not found")
)

// Event domain errors
var (
	ErrEventNotFound         = NewDomainError("event", "Find", ErrNotFound, "reconciliation event not found")
	ErrEventAlreadyProcessed = NewDomainError("event", "Process", ErrAlreadyProcessed, "reconciliation event already processed")
	ErrUnknownEventType      = NewDomainError("event", "Decode", ErrInvalidInput, "unknown event type")
	ErrMalformedEventPayload = NewDomainError("event", "Decode", ErrInvalidFormat, "malformed event payload")
)

// External service errors
var (
	ErrTraxUnavailable     = NewDomainError("trax", "Request", ErrServiceUnavailable, "TRAX API is unavailable")
	ErrTraxTimeout         = NewDomainError("trax", "Request", ErrTimeout, "TRAX API request timeout")
	ErrTraxInvalidResponse = NewDomainError("trax", "Parse", ErrInvalidFormat, "invalid response from TRAX API")
	ErrGradAPIUnavailable  = NewDomainError("grad", "Request", ErrServiceUnavailable, "GRAD algorithm API is unavailable")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
