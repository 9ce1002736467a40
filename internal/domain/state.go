package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// Defaults shared by the state constructors and the scheduler.
const (
	// DefaultEaseFactor is the starting SM2 ease factor.
	DefaultEaseFactor = 2.5

	// SM5DifficultyLevels is the number of discrete SM5 difficulty levels.
	// Level i corresponds to an ease factor of 1.3 + 0.1*i.
	SM5DifficultyLevels = 21

	// SM5DefaultDifficulty is the level matching DefaultEaseFactor.
	SM5DefaultDifficulty = 12

	// Simple8WindowSize is how many recent reviews Simple8 remembers.
	Simple8WindowSize = 8
)

// AlgorithmState is the scheduling state of one card. Exactly one
// implementation exists per algorithm: *SM2State, *SM5State and
// *Simple8State.
type AlgorithmState interface {
	// Algorithm reports which algorithm owns this state.
	Algorithm() Algorithm
	// RepetitionCount is the number of consecutive successful reviews.
	RepetitionCount() int
	// CurrentInterval is the interval produced by the last review.
	CurrentInterval() time.Duration
	// Validate reports values no algorithm could have produced.
	Validate() error
	// Clone returns a deep copy.
	Clone() AlgorithmState

	isAlgorithmState()
}

// SM2State is the SuperMemo-2 state: ease factor, interval and repetitions.
type SM2State struct {
	EaseFactor  float64       `json:"ease_factor"`
	Interval    time.Duration `json:"interval"`
	Repetitions int           `json:"repetitions"`
}

// SM5State is the SuperMemo-5 state. Difficulty is the column index into the
// optimal-factor matrix.
type SM5State struct {
	Difficulty  int           `json:"difficulty"`
	Interval    time.Duration `json:"interval"`
	Repetitions int           `json:"repetitions"`
}

// Simple8Review is one entry of the Simple8 history window.
type Simple8Review struct {
	Interval time.Duration `json:"interval"`
	Grade    QualityGrade  `json:"grade"`
}

// Simple8State keeps a window of recent successful reviews, oldest first.
// Lapses counts failures and shortens the first interval after each one.
type Simple8State struct {
	Window      []Simple8Review `json:"window,omitempty"`
	Interval    time.Duration   `json:"interval"`
	Repetitions int             `json:"repetitions"`
	Lapses      int             `json:"lapses"`
}

// NewAlgorithmState returns the initial state for a. It returns nil for an
// unknown algorithm.
func NewAlgorithmState(a Algorithm) AlgorithmState {
	switch a {
	case AlgorithmSM2:
		return &SM2State{EaseFactor: DefaultEaseFactor}
	case AlgorithmSM5:
		return &SM5State{Difficulty: SM5DefaultDifficulty}
	case AlgorithmSimple8:
		return &Simple8State{}
	default:
		return nil
	}
}

func (*SM2State) Algorithm() Algorithm             { return AlgorithmSM2 }
func (s *SM2State) RepetitionCount() int           { return s.Repetitions }
func (s *SM2State) CurrentInterval() time.Duration { return s.Interval }
func (*SM2State) isAlgorithmState()                {}

func (*SM5State) Algorithm() Algorithm             { return AlgorithmSM5 }
func (s *SM5State) RepetitionCount() int           { return s.Repetitions }
func (s *SM5State) CurrentInterval() time.Duration { return s.Interval }
func (*SM5State) isAlgorithmState()                {}

func (*Simple8State) Algorithm() Algorithm             { return AlgorithmSimple8 }
func (s *Simple8State) RepetitionCount() int           { return s.Repetitions }
func (s *Simple8State) CurrentInterval() time.Duration { return s.Interval }
func (*Simple8State) isAlgorithmState()                {}

// Validate implements AlgorithmState.
func (s *SM2State) Validate() error {
	if math.IsNaN(s.EaseFactor) || math.IsInf(s.EaseFactor, 0) || s.EaseFactor <= 1.0 {
		return fmt.Errorf("%w: sm2 ease factor %v", ErrInvalidState, s.EaseFactor)
	}
	return validateCounts(AlgorithmSM2, s.Interval, s.Repetitions)
}

// Validate implements AlgorithmState. An out-of-range difficulty is not an
// error; the scheduler saturates it.
func (s *SM5State) Validate() error {
	return validateCounts(AlgorithmSM5, s.Interval, s.Repetitions)
}

// Validate implements AlgorithmState.
func (s *Simple8State) Validate() error {
	if s.Lapses < 0 {
		return fmt.Errorf("%w: simple8 lapses %d", ErrInvalidState, s.Lapses)
	}
	for _, r := range s.Window {
		if r.Interval < 0 || !r.Grade.IsValid() {
			return fmt.Errorf("%w: simple8 window entry %+v", ErrInvalidState, r)
		}
	}
	return validateCounts(AlgorithmSimple8, s.Interval, s.Repetitions)
}

func validateCounts(a Algorithm, interval time.Duration, reps int) error {
	if interval < 0 {
		return fmt.Errorf("%w: %s interval %s", ErrInvalidState, a, interval)
	}
	if reps < 0 {
		return fmt.Errorf("%w: %s repetitions %d", ErrInvalidState, a, reps)
	}
	return nil
}

// Clone implements AlgorithmState.
func (s *SM2State) Clone() AlgorithmState {
	c := *s
	return &c
}

// Clone implements AlgorithmState.
func (s *SM5State) Clone() AlgorithmState {
	c := *s
	return &c
}

// Clone implements AlgorithmState.
func (s *Simple8State) Clone() AlgorithmState {
	c := *s
	c.Window = slices.Clone(s.Window)
	return &c
}

// stateEnvelope is the persisted form of an AlgorithmState. Only the field
// named by Algorithm is set.
type stateEnvelope struct {
	Algorithm Algorithm     `json:"algorithm"`
	SM2       *SM2State     `json:"sm2,omitempty"`
	SM5       *SM5State     `json:"sm5,omitempty"`
	Simple8   *Simple8State `json:"simple8,omitempty"`
}

// MarshalAlgorithmState encodes s as a tagged envelope. A nil state encodes
// as JSON null.
func MarshalAlgorithmState(s AlgorithmState) ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	env := stateEnvelope{Algorithm: s.Algorithm()}
	switch v := s.(type) {
	case *SM2State:
		env.SM2 = v
	case *SM5State:
		env.SM5 = v
	case *Simple8State:
		env.Simple8 = v
	}
	return json.Marshal(env)
}

// UnmarshalAlgorithmState decodes an envelope written by
// MarshalAlgorithmState. JSON null yields a nil state. An envelope naming an
// unknown algorithm, or missing its variant, returns a nil state and an error
// wrapping ErrAlgorithmStateMismatch; callers keep the card and let the
// scheduler reinitialize it.
func UnmarshalAlgorithmState(data []byte) (AlgorithmState, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var env stateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode algorithm state: %w", err)
	}
	var s AlgorithmState
	switch env.Algorithm {
	case AlgorithmSM2:
		if env.SM2 != nil {
			s = env.SM2
		}
	case AlgorithmSM5:
		if env.SM5 != nil {
			s = env.SM5
		}
	case AlgorithmSimple8:
		if env.Simple8 != nil {
			s = env.Simple8
		}
	}
	if s == nil {
		return nil, fmt.Errorf("%w: stored state for %q", ErrAlgorithmStateMismatch, env.Algorithm)
	}
	return s, nil
}

// IsStateMismatch reports whether err means the stored state must be
// reinitialized rather than treated as corrupt data.
func IsStateMismatch(err error) bool {
	return errors.Is(err, ErrAlgorithmStateMismatch)
}
