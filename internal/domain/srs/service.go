package srs

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// Common errors
var (
	ErrNilCard = errors.New("card cannot be nil")
)

// Service defines the interface for scheduling operations
type Service interface {
	// Algorithm reports the algorithm the service schedules with.
	Algorithm() domain.Algorithm

	// Schedule computes the state after a review graded grade at now and the
	// date the card is next due. A nil or foreign state is reinitialized
	// first. global may be nil.
	Schedule(
		state domain.AlgorithmState,
		grade domain.QualityGrade,
		global *GlobalState,
		now time.Time,
	) (domain.AlgorithmState, time.Time, error)

	// CalculateNextReview returns a copy of card after a graded review:
	// new state and due date, lifetime repetition count, last reviewed time
	// and, for grades 0-2, one more failure. The grade is folded into the
	// global mean quality when global is not nil.
	CalculateNextReview(
		card *domain.Card,
		grade domain.QualityGrade,
		global *GlobalState,
		now time.Time,
	) (*domain.Card, error)
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	algorithm Algorithm
	params    *Params
	logger    *slog.Logger
}

// NewDefaultService creates a new scheduling service for name with default parameters
func NewDefaultService(name domain.Algorithm) (Service, error) {
	return NewServiceWithParams(name, NewDefaultParams(), slog.Default())
}

// NewServiceWithParams creates a new scheduling service with custom parameters
func NewServiceWithParams(name domain.Algorithm, params *Params, logger *slog.Logger) (Service, error) {
	if params == nil {
		return nil, fmt.Errorf("params cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	alg, err := NewAlgorithm(name, params)
	if err != nil {
		return nil, err
	}

	return &defaultService{
		algorithm: alg,
		params:    params,
		logger:    logger.With(slog.String("component", "srs_service")),
	}, nil
}

func (s *defaultService) Algorithm() domain.Algorithm {
	return s.algorithm.Name()
}

// Schedule implements the Service interface
func (s *defaultService) Schedule(
	state domain.AlgorithmState,
	grade domain.QualityGrade,
	global *GlobalState,
	now time.Time,
) (domain.AlgorithmState, time.Time, error) {
	if !grade.IsValid() {
		return nil, time.Time{}, fmt.Errorf("%w: %d", domain.ErrInvalidGrade, grade)
	}

	state = s.usableState(state)

	next, err := s.algorithm.Next(state, grade, global)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("schedule with %s: %w", s.algorithm.Name(), err)
	}

	return next, now.Add(max(next.CurrentInterval(), s.params.MinInterval)), nil
}

// CalculateNextReview implements the Service interface
func (s *defaultService) CalculateNextReview(
	card *domain.Card,
	grade domain.QualityGrade,
	global *GlobalState,
	now time.Time,
) (*domain.Card, error) {
	if card == nil {
		return nil, ErrNilCard
	}

	state, due, err := s.Schedule(card.State, grade, global, now)
	if err != nil {
		return nil, fmt.Errorf("card %s: %w", card.ID.Short(), err)
	}

	updated := card.Clone()
	updated.State = state
	updated.NextDue = due
	updated.History.Repetitions++
	updated.History.LastReviewed = &now
	if grade.Failed() {
		updated.History.Failures++
	}

	if global != nil {
		global.RecordGrade(grade)
	}

	return updated, nil
}

// usableState returns state, or a fresh initial state when state is missing,
// belongs to another algorithm, or holds invalid values.
func (s *defaultService) usableState(state domain.AlgorithmState) domain.AlgorithmState {
	if state == nil {
		return s.algorithm.Initial()
	}
	if state.Algorithm() != s.algorithm.Name() {
		s.logger.Warn("reinitializing card state for active algorithm",
			slog.String("stored_algorithm", string(state.Algorithm())),
			slog.String("algorithm", string(s.algorithm.Name())))
		return s.algorithm.Initial()
	}
	if err := state.Validate(); err != nil {
		s.logger.Warn("reinitializing invalid card state",
			slog.String("algorithm", string(s.algorithm.Name())),
			slog.String("error", err.Error()))
		return s.algorithm.Initial()
	}
	return state
}
