package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"
	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/service"
	"github.com/spf13/cobra"
)

// errNotConfirmed is returned when a destructive command runs without a
// terminal to confirm on and without --yes.
var errNotConfirmed = errors.New("refusing to delete cards without confirmation, pass --yes")

func newAuditCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List orphaned cards and leeches",
		Long: `List cards that need attention: orphans, whose source text is gone,
and leeches, which keep being forgotten.

Use "audit prune" to delete them and "audit reset-leech" after rewriting
a leech so it is scheduled again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := auditService(c).Report(cmd.Context())
			if err != nil {
				return err
			}
			printAudit(c.out, report, time.Now())
			return nil
		},
	}

	cmd.AddCommand(newPruneCmd(c), newResetLeechCmd(c))
	return cmd
}

func auditService(c *cli) *service.AuditService {
	return service.NewAuditService(c.app.store, c.app.lockPath, c.app.config.Review.LeechFailureThreshold, c.app.logger)
}

func newPruneCmd(c *cli) *cobra.Command {
	var (
		yes     bool
		orphans bool
		leeches bool
	)

	cmd := &cobra.Command{
		Use:   "prune [ID...]",
		Short: "Delete orphaned or leeched cards",
		Long: `Delete the cards named by id or unique id prefix. Without ids, --orphans
and --leeches select every orphan or leech. Only orphans and leeches can
be deleted, and nothing is deleted if any id is rejected.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc := auditService(c)

			refs := args
			if len(refs) == 0 {
				if !orphans && !leeches {
					return errors.New("name the cards to delete or pass --orphans or --leeches")
				}
				report, err := svc.Report(ctx)
				if err != nil {
					return err
				}
				if orphans {
					refs = append(refs, ids(report.Orphans)...)
				}
				if leeches {
					refs = append(refs, ids(report.Leeches)...)
				}
				if len(refs) == 0 {
					fmt.Fprintln(c.out, "Nothing to delete.")
					return nil
				}
			}

			if !yes {
				ok, err := confirm(ctx, c, fmt.Sprintf("Delete %s? This loses their review history.", plural(len(refs), "card")))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(c.out, "Nothing deleted.")
					return nil
				}
			}

			removed, err := svc.Prune(ctx, refs)
			if err != nil {
				return err
			}
			for _, card := range removed {
				fmt.Fprintf(c.out, "  - %s  %s\n", card.ID.Short(), truncate(card.Prompt, 60))
			}
			fmt.Fprintf(c.out, "%s Deleted %s.\n", okStyle.Render("✓"), plural(len(removed), "card"))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().BoolVar(&orphans, "orphans", false, "delete every orphan")
	cmd.Flags().BoolVar(&leeches, "leeches", false, "delete every leech")
	return cmd
}

func newResetLeechCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-leech ID...",
		Short: "Clear the failure count of rewritten leeches",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reset, err := auditService(c).ResetLeech(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s Reset %s.\n", okStyle.Render("✓"), plural(len(reset), "card"))
			return nil
		},
	}
}

// confirm asks a yes/no question on the terminal.
func confirm(ctx context.Context, c *cli, question string) (bool, error) {
	if !newKeyReader(c.in).Interactive() {
		return false, errNotConfirmed
	}

	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative("Delete").
			Negative("Keep").
			Value(&ok),
	)).WithInput(c.in).WithOutput(c.out)

	err := form.RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

func ids(cards []*domain.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID.String()
	}
	return out
}

func printAudit(w io.Writer, r *service.AuditReport, now time.Time) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s, %s, %s",
		plural(r.Total, "card"), plural(len(r.Orphans), "orphan"), plural(len(r.Leeches), "leech"))))

	section := func(title string, cards []*domain.Card, detail func(*domain.Card) string) {
		if len(cards) == 0 {
			return
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render(title))
		for _, card := range cards {
			fmt.Fprintf(w, "  %s  %s  %s\n", card.ID.Short(), truncate(card.Prompt, 50), mutedStyle.Render(detail(card)))
		}
	}

	section("Orphans", r.Orphans, func(card *domain.Card) string {
		return card.Source.String()
	})
	section("Leeches", r.Leeches, func(card *domain.Card) string {
		last := "never reviewed"
		if card.History.LastReviewed != nil {
			last = "last reviewed " + humanize.RelTime(*card.History.LastReviewed, now, "ago", "from now")
		}
		return fmt.Sprintf("%d failures, %s, %s", card.History.Failures, last, card.Source)
	})
}
