// Package reconcile merges freshly extracted card candidates into the known
// card set.
package reconcile

import (
	"iter"
	"strings"
	"time"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// Mode selects how cards missing from a scan are treated.
type Mode int

const (
	// Incremental orphans a missing card only when its source file was part
	// of the scan.
	Incremental Mode = iota
	// Full orphans every missing card.
	Full
)

// String returns the mode name.
func (m Mode) String() string {
	if m == Full {
		return "full"
	}
	return "incremental"
}

// Options configures a reconciliation pass.
type Options struct {
	// Algorithm seeds the state of new cards.
	Algorithm domain.Algorithm
	// Now is stamped on new cards as their added and due time.
	Now time.Time
	Mode Mode
	// Scanned holds the source files read in this pass. Only consulted in
	// Incremental mode.
	Scanned map[string]struct{}
	// Preserve holds source files whose cards must not be orphaned in any
	// mode, such as files that could not be read.
	Preserve map[string]struct{}
}

// Report counts what a reconciliation pass changed. Orphaned and Unorphaned
// count transitions made by this pass only.
type Report struct {
	New        int `json:"new"`
	Updated    int `json:"updated"`
	Unchanged  int `json:"unchanged"`
	Orphaned   int `json:"orphaned"`
	Unorphaned int `json:"unorphaned"`
	// Duplicates counts candidates that hashed to an id already seen in
	// this pass. The last one seen wins.
	Duplicates int `json:"duplicates"`
	// Invalid counts candidates rejected by validation.
	Invalid int `json:"invalid"`
}

// Changed reports whether the pass modified the card set.
func (r Report) Changed() bool {
	return r.New+r.Updated+r.Orphaned+r.Unorphaned > 0
}

// Reconcile returns a new card set with candidates merged into existing,
// plus a report. existing is not modified. Scheduling state and review
// history of known cards are never touched; orphans are kept.
func Reconcile(
	existing domain.CardSet,
	candidates iter.Seq[domain.CardCandidate],
	opts Options,
) (domain.CardSet, Report) {
	var report Report

	seen := make(map[domain.CardID]domain.CardCandidate)
	var order []domain.CardID
	for c := range candidates {
		if err := c.Validate(); err != nil {
			report.Invalid++
			continue
		}
		id := domain.HashCandidate(c)
		if _, dup := seen[id]; dup {
			report.Duplicates++
		} else {
			order = append(order, id)
		}
		seen[id] = c
	}

	result := existing.Clone()

	for _, id := range order {
		c := seen[id]
		card, ok := result[id]
		if !ok {
			created, err := domain.NewCard(c, domain.NewAlgorithmState(opts.Algorithm), opts.Now)
			if err != nil {
				report.Invalid++
				continue
			}
			result[id] = created
			report.New++
			continue
		}

		changed := refresh(card, c)
		if card.Orphaned {
			card.Orphaned = false
			report.Unorphaned++
			changed = true
		}
		if changed {
			report.Updated++
		} else {
			report.Unchanged++
		}
	}

	for id, card := range result {
		if _, present := seen[id]; present || card.Orphaned {
			continue
		}
		if _, keep := opts.Preserve[card.Source.FilePath]; keep {
			continue
		}
		if opts.Mode == Incremental {
			if _, scanned := opts.Scanned[card.Source.FilePath]; !scanned {
				continue
			}
		}
		card.Orphaned = true
		report.Orphaned++
	}

	return result, report
}

// refresh copies the location and display text of c onto card and reports
// whether anything differed.
func refresh(card *domain.Card, c domain.CardCandidate) bool {
	prompt := strings.TrimSpace(c.Prompt)
	response := strings.TrimSpace(c.Response)

	changed := card.Source != c.Source || card.Prompt != prompt || card.Response != response
	card.Source = c.Source
	card.Prompt = prompt
	card.Response = response
	return changed
}
