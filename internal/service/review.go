package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/domain/srs"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/store"
)

// ReviewOptions configures a review session.
type ReviewOptions struct {
	Algorithm      domain.Algorithm
	Tags           []string
	IncludeOrphans bool
	// MaxCards caps the number of cards in the session when positive.
	MaxCards int
	// MaxDuration ends the session once exceeded when positive.
	MaxDuration    time.Duration
	LeechThreshold int
	LeechMethod    domain.LeechMethod
	// ReverseProbability is the chance in [0,1] that a card is shown
	// response first.
	ReverseProbability float64
	// Cram reviews recently unseen cards regardless of their schedule
	// without changing it.
	Cram      bool
	CramHours int
}

// ReviewOption customizes a ReviewService.
type ReviewOption func(*ReviewService)

// WithClock sets the time source used for selection and grading.
func WithClock(now func() time.Time) ReviewOption {
	return func(s *ReviewService) { s.now = now }
}

// WithRand sets the random source used to reverse cards.
func WithRand(r *rand.Rand) ReviewOption {
	return func(s *ReviewService) { s.rand = r }
}

// WithParams overrides the scheduler parameters.
func WithParams(p *srs.Params) ReviewOption {
	return func(s *ReviewService) { s.params = p }
}

// ReviewService opens review sessions.
type ReviewService struct {
	store    store.Store
	lockPath string
	params   *srs.Params
	logger   *slog.Logger
	now      func() time.Time
	rand     *rand.Rand
}

// NewReviewService creates a ReviewService.
func NewReviewService(st store.Store, lockPath string, log *slog.Logger, opts ...ReviewOption) *ReviewService {
	if st == nil {
		panic("store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &ReviewService{
		store:    st,
		lockPath: lockPath,
		params:   srs.NewDefaultParams(),
		logger:   log.With(slog.String("component", "review_service")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rand == nil {
		s.rand = rand.New(rand.NewPCG(uint64(s.now().UnixNano()), uint64(time.Now().UnixNano())))
	}
	return s
}

// Start acquires the store lock, loads the cards and selects the cards due
// for review. The lock is held until the session is closed; Close must be
// called even when the session has no cards.
func (s *ReviewService) Start(ctx context.Context, opts ReviewOptions) (*Session, error) {
	scheduler, err := srs.NewServiceWithParams(opts.Algorithm, s.params, s.logger)
	if err != nil {
		return nil, NewServiceError("review", "invalid scheduler configuration", err)
	}

	lock, err := store.AcquireLock(s.lockPath)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New().String()
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("session_id", sessionID))

	snap, err := s.store.Load(ctx)
	if err != nil {
		_ = lock.Release()
		return nil, NewServiceError("review", "failed to load cards", err)
	}

	started := s.now()
	if snap.Global.Refresh(started, s.params.MeanQualityResetAfter) {
		log.Info("mean quality reset after inactivity")
	}

	due := domain.DueCards(snap.Cards, domain.DueQuery{
		Now:            started,
		Tags:           opts.Tags,
		IncludeOrphans: opts.IncludeOrphans,
		Algorithm:      opts.Algorithm,
		LeechMethod:    opts.LeechMethod,
		LeechThreshold: opts.LeechThreshold,
		Cram:           opts.Cram,
		CramHours:      opts.CramHours,
		Limit:          opts.MaxCards,
	})

	queue := make([]domain.CardID, len(due))
	for i, c := range due {
		queue[i] = c.ID
	}

	log.Info("review session started",
		slog.String("algorithm", string(opts.Algorithm)),
		slog.Bool("cram", opts.Cram),
		slog.Int("cards", len(queue)),
		slog.Int("known_cards", len(snap.Cards)))

	return &Session{
		id:        sessionID,
		svc:       s,
		opts:      opts,
		scheduler: scheduler,
		lock:      lock,
		snap:      snap,
		queue:     queue,
		started:   started,
		logger:    log,
	}, nil
}

// Review is one card presented to the reviewer.
type Review struct {
	// Card is a copy of the card as it was when presented.
	Card *domain.Card
	// Reversed means the response is shown as the question.
	Reversed bool
	// Position is the 1-based position in the session.
	Position int
	Total    int
}

// Question returns the side shown first.
func (r *Review) Question() string {
	if r.Reversed {
		return r.Card.Response
	}
	return r.Card.Prompt
}

// Answer returns the side revealed after the question.
func (r *Review) Answer() string {
	if r.Reversed {
		return r.Card.Prompt
	}
	return r.Card.Response
}

// GradeResult reports the effect of grading a card.
type GradeResult struct {
	Card *domain.Card
	// BecameLeech is set when this review pushed the card over the leech
	// threshold.
	BecameLeech bool
}

// Session is an open review session. It holds the store lock until Close.
// A Session is not safe for concurrent use.
type Session struct {
	id        string
	svc       *ReviewService
	opts      ReviewOptions
	scheduler srs.Service
	lock      *store.FileLock
	snap      *store.Snapshot
	queue     []domain.CardID
	pos       int
	current   *Review
	started   time.Time
	logger    *slog.Logger

	reviewed int
	failed   int
	dirty    bool

	closeOnce sync.Once
	closed    bool
	closeErr  error
}

// ID returns the session id used in logs.
func (s *Session) ID() string {
	return s.id
}

// Total is the number of cards selected for the session.
func (s *Session) Total() int {
	return len(s.queue)
}

// Remaining is the number of cards not presented yet.
func (s *Session) Remaining() int {
	return len(s.queue) - s.pos
}

// Reviewed is the number of cards graded so far.
func (s *Session) Reviewed() int {
	return s.reviewed
}

// Expired reports whether the session ran past its time limit.
func (s *Session) Expired(now time.Time) bool {
	return s.opts.MaxDuration > 0 && now.Sub(s.started) >= s.opts.MaxDuration
}

// Next presents the next card. It returns false when the session has no
// more cards or is closed.
func (s *Session) Next() (*Review, bool) {
	if s.closed {
		return nil, false
	}
	for s.pos < len(s.queue) {
		id := s.queue[s.pos]
		s.pos++
		card, ok := s.snap.Cards[id]
		if !ok {
			continue
		}
		s.current = &Review{
			Card:     card.Clone(),
			Reversed: s.opts.ReverseProbability > 0 && s.svc.rand.Float64() < s.opts.ReverseProbability,
			Position: s.pos,
			Total:    len(s.queue),
		}
		return s.current, true
	}
	s.current = nil
	return nil, false
}

// Grade records grade for the card last returned by Next. In cram mode only
// the review time is recorded; otherwise the card is rescheduled, its leech
// flag refreshed and the grade folded into the global mean quality. An error
// leaves the card unchanged and still current, so it can be graded again.
func (s *Session) Grade(ctx context.Context, grade domain.QualityGrade) (*GradeResult, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.current == nil {
		return nil, ErrNoCurrentCard
	}
	review := s.current

	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("card_id", review.Card.ID.Short()))

	card, ok := s.snap.Cards[review.Card.ID]
	if !ok {
		s.current = nil
		return nil, ErrCardNotFound
	}
	now := s.svc.now()

	if s.opts.Cram {
		if !grade.IsValid() {
			return nil, fmt.Errorf("%w: %d", domain.ErrInvalidGrade, grade)
		}
		card.History.LastReviewed = &now
		s.current = nil
		s.reviewed++
		s.dirty = true
		log.Debug("cram review recorded", slog.Int("grade", int(grade)))
		return &GradeResult{Card: card.Clone()}, nil
	}

	updated, err := s.scheduler.CalculateNextReview(card, grade, s.snap.Global, now)
	if err != nil {
		s.failed++
		log.Error("failed to schedule card", slog.String("error", err.Error()))
		return nil, NewServiceError("grade", "failed to schedule card", err)
	}

	wasLeech := updated.History.Leech
	if s.opts.LeechThreshold > 0 {
		updated.History.Leech = domain.IsLeech(updated.History.Failures, s.opts.LeechThreshold)
	}
	becameLeech := updated.History.Leech && !wasLeech
	if becameLeech {
		log.Warn("card became a leech",
			slog.Int("failures", updated.History.Failures),
			slog.Int("threshold", s.opts.LeechThreshold))
	}

	s.snap.Cards[updated.ID] = updated
	s.current = nil
	s.reviewed++
	s.dirty = true

	log.Debug("card graded",
		slog.Int("grade", int(grade)),
		slog.Time("next_due", updated.NextDue),
		slog.Duration("interval", updated.State.CurrentInterval()))

	return &GradeResult{Card: updated.Clone(), BecameLeech: becameLeech}, nil
}

// Close saves the session's reviews, if any, and releases the store lock.
// It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closed = true
		var saveErr error
		if s.dirty {
			if err := s.svc.store.Save(ctx, s.snap); err != nil {
				s.logger.Error("failed to save review session", slog.String("error", err.Error()))
				saveErr = NewServiceError("review", "failed to save reviews", err)
			}
		}
		s.closeErr = errors.Join(saveErr, s.lock.Release())

		s.logger.Info("review session closed",
			slog.Int("reviewed", s.reviewed),
			slog.Int("failed", s.failed),
			slog.Int("remaining", s.Remaining()),
			slog.Duration("elapsed", s.svc.now().Sub(s.started)))
	})
	return s.closeErr
}
