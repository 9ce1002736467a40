package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// ReviewHistory is the algorithm-independent record of how a card has fared.
type ReviewHistory struct {
	// Repetitions counts every graded review of the card.
	Repetitions int `json:"repetitions"`

	// LastReviewed is nil until the card is reviewed for the first time.
	LastReviewed *time.Time `json:"last_reviewed,omitempty"`

	// Failures counts reviews graded 0-2. It only resets through an
	// explicit leech reset.
	Failures int `json:"failures"`

	// Leech caches IsLeech for the threshold in force at the last review.
	Leech bool `json:"leech"`
}

// Card is a flashcard tracked across scans. Its identity is the content hash
// of prompt, response and tags; everything else is mutable.
type Card struct {
	ID       CardID         `json:"id"`
	Prompt   string         `json:"prompt"`
	Response string         `json:"response"`
	Tags     []string       `json:"tags,omitempty"`
	Source   SourceLocation `json:"source"`
	State    AlgorithmState `json:"-"`
	History  ReviewHistory  `json:"history"`
	Orphaned bool           `json:"orphaned"`
	Added    time.Time      `json:"added"`
	NextDue  time.Time      `json:"next_due"`
}

// NewCard creates a card for a candidate seen for the first time. The card is
// due immediately.
func NewCard(c CardCandidate, state AlgorithmState, now time.Time) (*Card, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	card := &Card{
		ID:       HashCandidate(c),
		Prompt:   strings.TrimSpace(c.Prompt),
		Response: strings.TrimSpace(c.Response),
		Tags:     NormalizeTags(c.Tags),
		Source:   c.Source,
		State:    state,
		Added:    now,
		NextDue:  now,
	}
	return card, nil
}

// Validate checks the card invariants that do not depend on scheduling.
func (c *Card) Validate() error {
	if c.ID.IsZero() {
		return fmt.Errorf("%w: card id is zero", ErrValidation)
	}
	if strings.TrimSpace(c.Prompt) == "" {
		return fmt.Errorf("%w: card %s has an empty prompt", ErrValidation, c.ID.Short())
	}
	if c.History.Failures < 0 || c.History.Repetitions < 0 {
		return fmt.Errorf("%w: card %s has negative counters", ErrValidation, c.ID.Short())
	}
	return nil
}

// Clone returns a deep copy of the card.
func (c *Card) Clone() *Card {
	out := *c
	out.Tags = slices.Clone(c.Tags)
	if c.State != nil {
		out.State = c.State.Clone()
	}
	if c.History.LastReviewed != nil {
		t := *c.History.LastReviewed
		out.History.LastReviewed = &t
	}
	return &out
}

// HasAnyTag reports whether the card carries at least one of tags. An empty
// filter matches every card.
func (c *Card) HasAnyTag(tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, t := range NormalizeTags(tags) {
		if slices.Contains(c.Tags, t) {
			return true
		}
	}
	return false
}

// StateMatches reports whether the card holds state for algorithm a.
func (c *Card) StateMatches(a Algorithm) bool {
	return c.State != nil && c.State.Algorithm() == a
}

type cardJSON struct {
	*cardAlias
	State json.RawMessage `json:"state"`
}

type cardAlias Card

// MarshalJSON encodes the card with its state as a tagged envelope.
func (c *Card) MarshalJSON() ([]byte, error) {
	state, err := MarshalAlgorithmState(c.State)
	if err != nil {
		return nil, fmt.Errorf("encode card %s: %w", c.ID.Short(), err)
	}
	return json.Marshal(cardJSON{cardAlias: (*cardAlias)(c), State: state})
}

// UnmarshalJSON decodes a card. A state envelope the program does not
// recognize leaves State nil so the scheduler reinitializes it on the next
// review; it does not fail the load.
func (c *Card) UnmarshalJSON(data []byte) error {
	aux := cardJSON{cardAlias: (*cardAlias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	state, err := UnmarshalAlgorithmState(aux.State)
	if err != nil && !IsStateMismatch(err) {
		return fmt.Errorf("decode card %s: %w", c.ID.Short(), err)
	}
	c.State = state
	return nil
}

// CardSet is the full collection of tracked cards keyed by identity.
type CardSet map[CardID]*Card

// Clone returns a deep copy of the set.
func (s CardSet) Clone() CardSet {
	out := make(CardSet, len(s))
	for id, c := range s {
		out[id] = c.Clone()
	}
	return out
}

// Sorted returns the cards ordered by id.
func (s CardSet) Sorted() []*Card {
	ids := slices.SortedFunc(maps.Keys(s), CardID.Compare)
	out := make([]*Card, 0, len(ids))
	for _, id := range ids {
		out = append(out, s[id])
	}
	return out
}

// Lookup returns the cards whose id starts with the given hex prefix,
// ordered by id.
func (s CardSet) Lookup(prefix string) []*Card {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil
	}
	var out []*Card
	for _, c := range s.Sorted() {
		if strings.HasPrefix(c.ID.String(), prefix) {
			out = append(out, c)
		}
	}
	return out
}
