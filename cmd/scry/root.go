package main

import (
	"io"
	"log/slog"

	"github.com/phrazzld/scry-notes/internal/config"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagKeys maps config keys to the flag names that override them. A
// command binds the ones it defines.
var flagKeys = map[string]string{
	"store.dir":                    "store-dir",
	"store.backend":                "backend",
	"log.level":                    "log-level",
	"scan.full":                    "full",
	"review.algorithm":             "algorithm",
	"review.max_cards_per_session": "max-cards",
	"review.tags":                  "tag",
	"review.include_orphans":       "include-orphans",
	"review.cram":                  "cram",
	"review.reverse_probability":   "reverse",
	"review.leech_method":          "leech-method",
}

// cli carries the I/O streams and the application shared by the commands
// of one invocation.
type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configFile string
	app        *application
}

func (c *cli) setup(cmd *cobra.Command) error {
	flags := make(map[string]*pflag.Flag, len(flagKeys))
	for key, name := range flagKeys {
		if f := cmd.Flag(name); f != nil {
			flags[key] = f
		}
	}

	cfg, err := config.Load(config.Options{ConfigFile: c.configFile, Flags: flags})
	if err != nil {
		return err
	}

	app, err := newApplication(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	c.app = app

	log := app.logger.With(slog.String("command", cmd.Name()))
	cmd.SetContext(logger.WithLogger(cmd.Context(), log))
	return nil
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	app := c.app
	c.app = nil
	return app.cleanup()
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "scry",
		Short: "Spaced repetition for flashcards kept in plain-text notes",
		Long: `scry finds flashcards in your notes and schedules their review.

Mark a one-line card with #flashcard or 🧠 and separate prompt and
response with a colon:

  What is the capital of France?: Paris #flashcard #geography

A multi-line card starts with a #flashcard line holding the prompt and
ends with a --- or *** separator line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "config file (default: scry.yaml in the user config directory)")
	pf.String("store-dir", "", "directory holding the card store")
	pf.String("backend", "", "store backend: json or sqlite")
	pf.String("log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newScanCmd(c),
		newReviseCmd(c),
		newDueCmd(c),
		newAuditCmd(c),
	)
	return root
}

// addSelectionFlags defines the card selection flags shared by revise and
// due.
func addSelectionFlags(fs *pflag.FlagSet) {
	fs.String("algorithm", "", "scheduling algorithm: sm2, sm5 or simple8")
	fs.StringSlice("tag", nil, "only cards with one of these tags (repeatable)")
	fs.Bool("include-orphans", false, "include cards whose source text is gone")
	fs.String("leech-method", "", "what to do with leeches: skip or warn")
	fs.Bool("cram", false, "review cards not seen recently regardless of schedule")
}
