package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrMalformedCandidate is returned by the extractor for a card fragment
	// that cannot be turned into a candidate. It is logged and skipped.
	ErrMalformedCandidate = errors.New("malformed card candidate")

	// ErrInvalidCardID is returned when a card ID string is not 64 hex characters.
	ErrInvalidCardID = errors.New("invalid card ID")

	// ErrInvalidGrade is returned when a quality grade is outside 0-5.
	ErrInvalidGrade = errors.New("invalid quality grade")

	// ErrUnknownAlgorithm is returned when an algorithm name is not recognized.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")

	// ErrUnknownLeechMethod is returned when a leech method name is not recognized.
	ErrUnknownLeechMethod = errors.New("unknown leech method")

	// ErrAlgorithmStateMismatch signals that a card's stored state does not
	// belong to the active algorithm. The scheduler recovers from it by
	// reinitializing the state; it never reaches the caller.
	ErrAlgorithmStateMismatch = errors.New("algorithm state mismatch")

	// ErrInvalidState is returned when an algorithm state holds values no
	// algorithm could have produced (negative counts, NaN factors).
	ErrInvalidState = errors.New("invalid algorithm state")
)
