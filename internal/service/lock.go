package service

import (
	"context"
	"log/slog"

	"github.com/phrazzld/scry-notes/internal/store"
)

// withLock runs fn while holding the store lock at path. The lock is
// released on every path, including panics.
func withLock(ctx context.Context, path string, log *slog.Logger, fn func(ctx context.Context) error) error {
	lock, err := store.AcquireLock(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Error("failed to release store lock",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}()

	return fn(ctx)
}
