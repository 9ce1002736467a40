package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/service"
	"github.com/spf13/cobra"
)

func newReviseCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "revise",
		Aliases: []string{"review"},
		Short:   "Review the cards that are due",
		Long: `Start a review session over the cards that are due.

Each card shows its question; press any key to reveal the answer, then
grade your recall from 0 (forgotten) to 5 (perfect). Press q to stop.
Reviews are saved when the session ends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			rc := c.app.config.Review

			svc := service.NewReviewService(c.app.store, c.app.lockPath, c.app.logger)
			sess, err := svc.Start(ctx, service.ReviewOptions{
				Algorithm:          rc.AlgorithmName(),
				Tags:               rc.Tags,
				IncludeOrphans:     rc.IncludeOrphans,
				MaxCards:           rc.MaxCardsPerSession,
				MaxDuration:        rc.MaxDuration(),
				LeechThreshold:     rc.LeechFailureThreshold,
				LeechMethod:        rc.Leech(),
				ReverseProbability: rc.ReverseProbability,
				Cram:               rc.Cram,
				CramHours:          rc.CramHours,
			})
			if err != nil {
				return err
			}
			defer func() {
				if cerr := sess.Close(ctx); cerr != nil && err == nil {
					err = cerr
				}
			}()

			if sess.Total() == 0 {
				fmt.Fprintln(c.out, "Nothing to review.")
				return nil
			}
			return reviewLoop(ctx, c, sess, rc.Cram)
		},
	}

	addSelectionFlags(cmd.Flags())
	cmd.Flags().Int("max-cards", 0, "maximum number of cards in the session")
	cmd.Flags().Float64("reverse", 0, "probability in [0,1] of showing a card answer first")
	return cmd
}

func reviewLoop(ctx context.Context, c *cli, sess *service.Session, cram bool) error {
	keys := newKeyReader(c.in)
	out := c.out

	for {
		if sess.Expired(time.Now()) {
			fmt.Fprintln(out, warnStyle.Render("Time is up."))
			break
		}
		rv, ok := sess.Next()
		if !ok {
			break
		}

		showQuestion(out, rv)
		fmt.Fprint(out, mutedStyle.Render("press any key to reveal"))
		if _, err := keys.readKey(); err != nil {
			fmt.Fprintln(out)
			if errors.Is(err, errQuit) {
				break
			}
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, answerStyle.Render(rv.Answer()))

		grade, err := readGrade(out, keys)
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			return err
		}

		res, err := sess.Grade(ctx, grade)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("Could not schedule card: %v", err)))
			continue
		}
		if !cram {
			fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("next review %s", res.Card.NextDue.Local().Format(time.DateTime))))
		}
		if res.BecameLeech {
			fmt.Fprintln(out, warnStyle.Render("This card is now a leech. Consider rewriting it."))
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "%s Reviewed %s, %d left.\n",
		okStyle.Render("✓"), plural(sess.Reviewed(), "card"), sess.Remaining())
	return nil
}

func showQuestion(w io.Writer, rv *service.Review) {
	header := fmt.Sprintf("[%d/%d] %s", rv.Position, rv.Total, rv.Card.Source)
	if rv.Reversed {
		header += " (reversed)"
	}
	if rv.Card.History.Leech {
		header += " " + warnStyle.Render("leech")
	}
	fmt.Fprintln(w, mutedStyle.Render(header))
	fmt.Fprintln(w, promptStyle.Render(rv.Question()))
}

// readGrade prompts until a grade from 0 to 5 is entered.
func readGrade(w io.Writer, keys *keyReader) (domain.QualityGrade, error) {
	for {
		fmt.Fprint(w, "grade 0-5: ")
		key, err := keys.readKey()
		if err != nil {
			fmt.Fprintln(w)
			return 0, err
		}
		if keys.Interactive() {
			fmt.Fprintln(w, string(key))
		} else {
			fmt.Fprintln(w)
		}
		grade, err := domain.ParseQualityGrade(string(key))
		if err == nil {
			return grade, nil
		}
		fmt.Fprintln(w, warnStyle.Render("0 forgotten, 1 remembered once seen, 2 seemed easy, 3 hard, 4 hesitant, 5 perfect"))
	}
}
