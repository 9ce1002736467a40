package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/service"
	"github.com/phrazzld/scry-notes/internal/store"
	"github.com/phrazzld/scry-notes/internal/watch"
	"github.com/spf13/cobra"
)

func newScanCmd(c *cli) *cobra.Command {
	var watchMode bool

	cmd := &cobra.Command{
		Use:   "scan PATH...",
		Short: "Extract flashcards from notes and update the store",
		Long: `Scan files and directories for flashcards and reconcile them with the
store. New cards are added, moved cards keep their history, and cards
whose text disappeared are marked as orphans.

By default files that have not changed since the last scan are skipped
and only cards of the files read can become orphans. --full rereads
everything and orphans every card that was not found.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.app.config
			svc := service.NewScanService(c.app.store, c.app.lockPath, c.app.logger)
			req := service.ScanRequest{
				Paths:      args,
				Extensions: cfg.Scan.Extensions,
				Full:       cfg.Scan.Full,
				Algorithm:  cfg.Review.AlgorithmName(),
			}

			res, err := svc.Scan(cmd.Context(), req)
			if err != nil {
				return err
			}
			printScanResult(c.out, res)

			if !watchMode {
				return nil
			}
			return watchAndScan(cmd.Context(), c, svc, req)
		},
	}

	cmd.Flags().Bool("full", false, "reread every file and orphan every card not found")
	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "keep running and rescan files as they change")
	return cmd
}

// watchAndScan runs an incremental scan of the watched roots after every
// batch of changes until ctx is cancelled.
func watchAndScan(ctx context.Context, c *cli, svc *service.ScanService, req service.ScanRequest) error {
	log := logger.FromContext(ctx)

	w, err := watch.New(req.Paths, req.Extensions, c.app.config.Scan.WatchDebounce, log)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	fmt.Fprintln(c.out, mutedStyle.Render("Watching for changes. Press Ctrl-C to stop."))

	req.Full = false
	return w.Run(ctx, func(ctx context.Context, batch watch.Batch) error {
		next := req
		next.Paths = existing(w.Roots())
		next.Removed = batch.Removed
		if len(next.Paths) == 0 && len(next.Removed) == 0 {
			return nil
		}

		res, err := svc.Scan(ctx, next)
		if errors.Is(err, store.ErrAlreadyRunning) {
			log.Warn("store busy, changes picked up on the next event", slog.String("error", err.Error()))
			fmt.Fprintln(c.out, warnStyle.Render("Store is busy; will rescan on the next change."))
			return nil
		}
		if err != nil {
			return err
		}
		if res.Changed() || len(res.FileErrors) > 0 {
			printScanResult(c.out, res)
		}
		return nil
	})
}

func existing(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func printScanResult(w io.Writer, res *service.ScanResult) {
	fmt.Fprintf(w, "%s Scanned %s in %s",
		okStyle.Render("✓"),
		plural(res.Files, "file"),
		res.Duration.Round(time.Millisecond))
	if res.Unchanged > 0 {
		fmt.Fprintf(w, " (%s unchanged)", humanize.Comma(int64(res.Unchanged)))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  new %d  updated %d  unchanged %d  orphaned %d  unorphaned %d\n",
		res.New, res.Updated, res.Report.Unchanged, res.Orphaned, res.Unorphaned)
	if res.Duplicates > 0 || res.Invalid > 0 {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("  duplicates %d  invalid %d", res.Duplicates, res.Invalid)))
	}
	for _, fe := range res.FileErrors {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("  ! %s: %v", fe.Path, fe.Err)))
	}
}

// plural formats n with noun, pluralized when n is not one.
func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	suffix := "s"
	if strings.HasSuffix(noun, "ch") {
		suffix = "es"
	}
	return humanize.Comma(int64(n)) + " " + noun + suffix
}
