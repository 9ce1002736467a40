package domain

import (
	"slices"
	"time"
)

// DueQuery selects cards for a review session.
type DueQuery struct {
	// Now is the reference time. A card is due when its effective due date
	// is not after Now.
	Now time.Time

	// Tags restricts the result to cards with at least one of these tags.
	Tags []string

	// IncludeOrphans keeps cards whose source text has disappeared.
	IncludeOrphans bool

	// Algorithm is the algorithm the session schedules with. Cards holding
	// another algorithm's state, or none, are treated as due now since the
	// scheduler will reinitialize them.
	Algorithm Algorithm

	// LeechMethod decides whether leeches are returned. LeechSkip drops them.
	LeechMethod LeechMethod

	// LeechThreshold, when positive, classifies leeches from the failure
	// count instead of the cached History.Leech flag.
	LeechThreshold int

	// Cram ignores due dates and returns every matching card not reviewed
	// within CramHours.
	Cram      bool
	CramHours int

	// Limit caps the result when positive.
	Limit int
}

// IsLeech classifies c under the query's leech settings.
func (q DueQuery) IsLeech(c *Card) bool {
	if q.LeechThreshold > 0 {
		return IsLeech(c.History.Failures, q.LeechThreshold)
	}
	return c.History.Leech
}

// EffectiveDue returns the due date used for selection and ordering.
func (q DueQuery) EffectiveDue(c *Card) time.Time {
	if q.Algorithm != "" && !c.StateMatches(q.Algorithm) && c.NextDue.After(q.Now) {
		return q.Now
	}
	return c.NextDue
}

// DueCards returns the cards matching q ordered by ascending effective due
// date, ties broken by id. The cards are not copied.
func DueCards(cards CardSet, q DueQuery) []*Card {
	cramCutoff := q.Now.Add(-time.Duration(q.CramHours) * time.Hour)

	out := make([]*Card, 0, len(cards))
	for _, c := range cards {
		if c.Orphaned && !q.IncludeOrphans {
			continue
		}
		if !c.HasAnyTag(q.Tags) {
			continue
		}
		if q.LeechMethod == LeechSkip && q.IsLeech(c) {
			continue
		}
		if q.Cram {
			if last := c.History.LastReviewed; last != nil && last.After(cramCutoff) {
				continue
			}
		} else if q.EffectiveDue(c).After(q.Now) {
			continue
		}
		out = append(out, c)
	}

	slices.SortFunc(out, func(a, b *Card) int {
		if n := q.EffectiveDue(a).Compare(q.EffectiveDue(b)); n != 0 {
			return n
		}
		return a.ID.Compare(b.ID)
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
