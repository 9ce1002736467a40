package domain

import (
	"fmt"
	"strings"
)

// LeechMethod decides what a review session does with leech cards.
type LeechMethod string

// Leech policies.
const (
	// LeechSkip removes leech cards from the due set.
	LeechSkip LeechMethod = "skip"
	// LeechWarn keeps leech cards in the due set and flags them.
	LeechWarn LeechMethod = "warn"
)

// ParseLeechMethod parses a leech method name case-insensitively.
func ParseLeechMethod(s string) (LeechMethod, error) {
	m := LeechMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case LeechSkip, LeechWarn:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLeechMethod, s)
	}
}

// IsLeech reports whether a card with the given failure count is a leech.
func IsLeech(failures, threshold int) bool {
	return failures >= threshold
}
