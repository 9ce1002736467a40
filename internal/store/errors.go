package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrStoreIO is the sentinel matched by every *StoreError. A store I/O
	// failure is fatal for the command that hit it.
	ErrStoreIO = errors.New("store I/O failed")

	// ErrAlreadyRunning is returned when another process holds the store
	// lock. Nothing has been written when it is returned.
	ErrAlreadyRunning = errors.New("another scry process is running")

	// ErrCorrupt is wrapped by a StoreError when persisted data cannot be
	// decoded.
	ErrCorrupt = errors.New("store data is corrupt")

	// ErrUnsupportedVersion is wrapped by a StoreError when the data was
	// written by a newer program.
	ErrUnsupportedVersion = errors.New("unsupported store version")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
)

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Backend   string // The backend (e.g., "json", "sqlite")
	Operation string // The operation that failed (e.g., "load", "save")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s store failed: %s: %v", e.Operation, e.Backend, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s store failed: %s", e.Operation, e.Backend, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is makes every StoreError match ErrStoreIO.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreIO
}

// NewStoreError creates a new StoreError with the given backend, operation, message, and wrapped error.
func NewStoreError(backend, operation, message string, err error) *StoreError {
	return &StoreError{
		Backend:   backend,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// IsCorrupt reports whether err signals undecodable persisted data.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}
