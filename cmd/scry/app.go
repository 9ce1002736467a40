package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/phrazzld/scry-notes/internal/config"
	"github.com/phrazzld/scry-notes/internal/platform/jsonfile"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/platform/sqlite"
	"github.com/phrazzld/scry-notes/internal/store"
)

// application holds the dependencies shared by every command and ensures
// they are released on exit.
type application struct {
	config   *config.Config
	logger   *slog.Logger
	store    store.Store
	lockPath string

	logCloser io.Closer
}

// newApplication sets up logging and opens the configured store.
func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	log, closer, err := logger.Setup(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	st, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	log.Debug("store opened",
		slog.String("backend", st.Backend()),
		slog.String("dir", cfg.Store.Dir))

	return &application{
		config:    cfg,
		logger:    log,
		store:     st,
		lockPath:  filepath.Join(cfg.Store.Dir, store.LockFileName),
		logCloser: closer,
	}, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (store.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return sqlite.Open(ctx, cfg.Dir, log)
	case "json", "":
		return jsonfile.New(cfg.Dir, log), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// cleanup closes the store and the log file.
func (a *application) cleanup() error {
	return errors.Join(a.store.Close(), a.logCloser.Close())
}
