package service

import (
	"errors"
	"fmt"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check them with errors.Is().
var (
	// ErrCardNotFound indicates that no card matches the given id or prefix.
	ErrCardNotFound = errors.New("card not found")

	// ErrAmbiguousID indicates that an id prefix matches more than one card.
	ErrAmbiguousID = errors.New("card id prefix is ambiguous")

	// ErrNotPrunable indicates an attempt to delete a card that is neither
	// orphaned nor a leech.
	ErrNotPrunable = errors.New("card is neither orphaned nor a leech")

	// ErrSessionClosed is returned by a review session after Close.
	ErrSessionClosed = errors.New("review session is closed")

	// ErrNoCurrentCard is returned when grading with no card presented.
	ErrNoCurrentCard = errors.New("no card is being reviewed")
)

// ServiceError wraps errors from the services with additional context.
// This allows consumers to differentiate between different types of service errors
// using errors.As instead of string matching.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "scan", "review", "prune")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError returns a new ServiceError.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
