// Package main implements scry, a command line tool that extracts
// flashcards from plain-text notes and schedules their review with
// spaced repetition.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/scry-notes/internal/store"
)

// Exit codes.
const (
	exitOK     = 0
	exitError  = 1
	exitLocked = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line in args and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{in: stdin, out: stdout, errOut: stderr}
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if cerr := c.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err == nil {
		return exitOK
	}

	fmt.Fprintln(stderr, errorStyle.Render("Error:"), err)
	if errors.Is(err, store.ErrAlreadyRunning) {
		return exitLocked
	}
	return exitError
}
