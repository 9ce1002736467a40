package domain

import (
	"fmt"
	"strings"
)

// Algorithm names a spaced-repetition algorithm.
type Algorithm string

// Supported algorithms.
const (
	AlgorithmSM2     Algorithm = "sm2"
	AlgorithmSM5     Algorithm = "sm5"
	AlgorithmSimple8 Algorithm = "simple8"
)

// Algorithms lists every supported algorithm.
var Algorithms = []Algorithm{AlgorithmSM2, AlgorithmSM5, AlgorithmSimple8}

// IsValid reports whether a is one of the supported algorithms.
func (a Algorithm) IsValid() bool {
	switch a {
	case AlgorithmSM2, AlgorithmSM5, AlgorithmSimple8:
		return true
	default:
		return false
	}
}

// ParseAlgorithm parses an algorithm name case-insensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
	return a, nil
}
