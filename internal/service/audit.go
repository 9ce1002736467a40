package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/store"
)

// AuditReport lists the cards that need the operator's attention.
type AuditReport struct {
	Orphans []*domain.Card
	Leeches []*domain.Card
	Total   int
}

// AuditService reports on and removes orphaned and leeched cards.
type AuditService struct {
	store          store.Store
	lockPath       string
	leechThreshold int
	logger         *slog.Logger
}

// NewAuditService creates an AuditService. A card counts as a leech when its
// cached flag is set or, with a positive threshold, when its failures reach
// the threshold.
func NewAuditService(st store.Store, lockPath string, leechThreshold int, log *slog.Logger) *AuditService {
	if st == nil {
		panic("store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &AuditService{
		store:          st,
		lockPath:       lockPath,
		leechThreshold: leechThreshold,
		logger:         log.With(slog.String("component", "audit_service")),
	}
}

func (s *AuditService) isLeech(c *domain.Card) bool {
	return c.History.Leech || (s.leechThreshold > 0 && domain.IsLeech(c.History.Failures, s.leechThreshold))
}

// Report lists orphans and leeches ordered by source location. It does not
// take the lock.
func (s *AuditService) Report(ctx context.Context) (*AuditReport, error) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, NewServiceError("audit", "failed to load cards", err)
	}

	report := &AuditReport{Total: len(snap.Cards)}
	for _, c := range snap.Cards {
		if c.Orphaned {
			report.Orphans = append(report.Orphans, c)
		}
		if s.isLeech(c) {
			report.Leeches = append(report.Leeches, c)
		}
	}
	slices.SortFunc(report.Orphans, bySource)
	slices.SortFunc(report.Leeches, bySource)
	return report, nil
}

func bySource(a, b *domain.Card) int {
	return cmp.Or(
		cmp.Compare(a.Source.FilePath, b.Source.FilePath),
		cmp.Compare(a.Source.StartLine, b.Source.StartLine),
		a.ID.Compare(b.ID),
	)
}

// Prune deletes the referenced cards. refs are full ids or unique id
// prefixes. Every card must be orphaned or a leech; if any ref fails to
// resolve or names a card that cannot be pruned, nothing is deleted.
func (s *AuditService) Prune(ctx context.Context, refs []string) ([]*domain.Card, error) {
	var removed []*domain.Card
	err := s.mutate(ctx, "prune", refs, func(snap *store.Snapshot, cards []*domain.Card) error {
		for _, c := range cards {
			if !c.Orphaned && !s.isLeech(c) {
				return fmt.Errorf("%w: %s", ErrNotPrunable, c.ID.Short())
			}
		}
		for _, c := range cards {
			delete(snap.Cards, c.ID)
			removed = append(removed, c)
		}
		return nil
	})
	return removed, err
}

// ResetLeech clears the failure counter and leech flag of the referenced
// cards so they are scheduled again.
func (s *AuditService) ResetLeech(ctx context.Context, refs []string) ([]*domain.Card, error) {
	var reset []*domain.Card
	err := s.mutate(ctx, "reset_leech", refs, func(_ *store.Snapshot, cards []*domain.Card) error {
		for _, c := range cards {
			c.History.Failures = 0
			c.History.Leech = false
			reset = append(reset, c.Clone())
		}
		return nil
	})
	return reset, err
}

func (s *AuditService) mutate(
	ctx context.Context,
	op string,
	refs []string,
	fn func(snap *store.Snapshot, cards []*domain.Card) error,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	err := withLock(ctx, s.lockPath, log, func(ctx context.Context) error {
		snap, err := s.store.Load(ctx)
		if err != nil {
			return err
		}
		cards, err := resolve(snap.Cards, refs)
		if err != nil {
			return err
		}
		if len(cards) == 0 {
			return nil
		}
		if err := fn(snap, cards); err != nil {
			return err
		}
		if err := s.store.Save(ctx, snap); err != nil {
			return err
		}
		log.Info("audit change saved", slog.String("operation", op), slog.Int("cards", len(cards)))
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrAlreadyRunning),
		errors.Is(err, ErrCardNotFound),
		errors.Is(err, ErrAmbiguousID),
		errors.Is(err, ErrNotPrunable):
		return err
	default:
		return NewServiceError(op, "failed to update cards", err)
	}
}

// resolve maps refs to distinct cards.
func resolve(cards domain.CardSet, refs []string) ([]*domain.Card, error) {
	seen := make(map[domain.CardID]struct{}, len(refs))
	out := make([]*domain.Card, 0, len(refs))
	for _, ref := range refs {
		matches := cards.Lookup(ref)
		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("%w: %s", ErrCardNotFound, ref)
		case 1:
		default:
			return nil, fmt.Errorf("%w: %s matches %d cards", ErrAmbiguousID, ref, len(matches))
		}
		c := matches[0]
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}
