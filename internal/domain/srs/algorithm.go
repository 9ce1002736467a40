package srs

import (
	"fmt"
	"math"
	"time"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// Algorithm is one spaced-repetition scheduler.
//
// Next must not modify state; it returns a fresh state. It may update the
// shared global state (SM5 learns its optimal-factor matrix there). The state
// passed in always belongs to the algorithm; Service guarantees this by
// reinitializing foreign states first.
type Algorithm interface {
	Name() domain.Algorithm
	Initial() domain.AlgorithmState
	Next(
		state domain.AlgorithmState,
		grade domain.QualityGrade,
		global *GlobalState,
	) (domain.AlgorithmState, error)
}

// NewAlgorithm returns the scheduler for name.
func NewAlgorithm(name domain.Algorithm, params *Params) (Algorithm, error) {
	if params == nil {
		params = NewDefaultParams()
	}
	switch name {
	case domain.AlgorithmSM2:
		return &sm2{params: params}, nil
	case domain.AlgorithmSM5:
		return &sm5{params: params}, nil
	case domain.AlgorithmSimple8:
		return &simple8{params: params}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAlgorithm, name)
	}
}

func mismatch(want domain.Algorithm, got domain.AlgorithmState) error {
	if got == nil {
		return fmt.Errorf("%w: want %s state, got none", domain.ErrAlgorithmStateMismatch, want)
	}
	return fmt.Errorf("%w: want %s state, got %s", domain.ErrAlgorithmStateMismatch, want, got.Algorithm())
}

// newEaseFactor applies the SuperMemo ease factor update for grade q,
// floored at minEF.
func newEaseFactor(ef float64, grade domain.QualityGrade, minEF float64) float64 {
	d := 5 - float64(grade)
	return math.Max(ef+0.1-d*(0.08+d*0.02), minEF)
}

// days converts an interval to fractional days.
func days(d time.Duration) float64 {
	return float64(d) / float64(day)
}

// roundInterval converts fractional days to an interval: whole days from one
// day up, whole minutes below that, never less than a minute.
func roundInterval(d float64) time.Duration {
	if d >= 1 {
		return time.Duration(math.Round(d)) * day
	}
	minutes := math.Max(math.Round(d*24*60), 1)
	return time.Duration(minutes) * time.Minute
}

// grow returns the larger of next and prev so a successful review never
// shortens the interval.
func grow(prev, next time.Duration) time.Duration {
	return max(prev, next)
}
