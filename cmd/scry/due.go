package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// dueEntry is the serialized form of a due card.
type dueEntry struct {
	ID       string    `json:"id" yaml:"id"`
	Prompt   string    `json:"prompt" yaml:"prompt"`
	Tags     []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Source   string    `json:"source" yaml:"source"`
	NextDue  time.Time `json:"next_due" yaml:"next_due"`
	Orphaned bool      `json:"orphaned,omitempty" yaml:"orphaned,omitempty"`
	Leech    bool      `json:"leech,omitempty" yaml:"leech,omitempty"`
}

func newDueCmd(c *cli) *cobra.Command {
	var (
		at     string
		format string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "due",
		Short: "List the cards due for review",
		Long: `List the cards a review session would select, most overdue first.

--at accepts a date (2026-03-01), an RFC 3339 time or a phrase such as
"tomorrow" or "in 3 days".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			ref, err := parseAt(at, now)
			if err != nil {
				return err
			}

			snap, err := c.app.store.Load(cmd.Context())
			if err != nil {
				return err
			}

			rc := c.app.config.Review
			q := domain.DueQuery{
				Now:            ref,
				Tags:           rc.Tags,
				IncludeOrphans: rc.IncludeOrphans,
				Algorithm:      rc.AlgorithmName(),
				LeechMethod:    rc.Leech(),
				LeechThreshold: rc.LeechFailureThreshold,
				Cram:           rc.Cram,
				CramHours:      rc.CramHours,
				Limit:          limit,
			}
			cards := domain.DueCards(snap.Cards, q)

			entries := make([]dueEntry, len(cards))
			for i, card := range cards {
				entries[i] = dueEntry{
					ID:       card.ID.String(),
					Prompt:   card.Prompt,
					Tags:     card.Tags,
					Source:   card.Source.String(),
					NextDue:  q.EffectiveDue(card).UTC(),
					Orphaned: card.Orphaned,
					Leech:    q.IsLeech(card),
				}
			}
			return writeDue(c.out, format, entries, ref, len(snap.Cards))
		},
	}

	addSelectionFlags(cmd.Flags())
	cmd.Flags().StringVar(&at, "at", "", "list cards due at this time instead of now")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json or yaml")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many cards")
	return cmd
}

func writeDue(w io.Writer, format string, entries []dueEntry, ref time.Time, total int) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	if len(entries) == 0 {
		fmt.Fprintf(w, "No cards due (%s known).\n", plural(total, "card"))
		return nil
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s due of %d", plural(len(entries), "card"), total)))
	for _, e := range entries {
		marker := " "
		if e.Leech {
			marker = warnStyle.Render("!")
		}
		fmt.Fprintf(w, "%s %s  %-16s  %s  %s\n",
			marker,
			e.ID[:8],
			humanize.RelTime(e.NextDue, ref, "ago", "from now"),
			truncate(e.Prompt, 60),
			mutedStyle.Render(e.Source))
	}
	return nil
}

// parseAt resolves s relative to now. An empty string means now.
func parseAt(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, now.Location()); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, errUnknownTime)
	}
	return r.Time, nil
}

var errUnknownTime = errors.New("not a recognized date or time")
