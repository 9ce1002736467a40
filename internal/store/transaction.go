package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/phrazzld/scry-notes/internal/platform/logger"
)

// txBackend names SQL transactions in StoreErrors raised here. Callers
// wrap them again with their own backend.
const txBackend = "sql"

// TxFn runs inside a transaction opened by RunInTransaction.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction runs fn in a single transaction on db and commits when
// it returns nil. An error from fn is returned as is after rollback; a
// panic is re-raised after rollback. Begin, commit and rollback failures
// are *StoreError values.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) (err error) {
	log := logger.FromContext(ctx).With(slog.String("component", "transaction"))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("begin failed", slog.String("error", err.Error()))
		return NewStoreError(txBackend, "begin", "cannot open transaction", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		p := recover()
		switch rbErr := tx.Rollback(); {
		case rbErr == nil:
			log.Debug("transaction rolled back", slog.Any("panic", p))
		case errors.Is(rbErr, sql.ErrTxDone):
			// a failed commit already ended it
		default:
			log.Error("rollback failed", slog.String("error", rbErr.Error()), slog.Any("panic", p))
			if p == nil {
				err = errors.Join(err, NewStoreError(txBackend, "rollback", "cannot discard transaction", rbErr))
			}
		}
		if p != nil {
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if cErr := tx.Commit(); cErr != nil {
		log.Error("commit failed", slog.String("error", cErr.Error()))
		return NewStoreError(txBackend, "commit", "cannot commit transaction", cErr)
	}
	committed = true
	log.Debug("transaction committed")
	return nil
}
