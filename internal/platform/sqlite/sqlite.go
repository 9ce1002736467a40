package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/domain/srs"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/store"
)

const (
	// FileName is the database file inside the store directory.
	FileName = "cards.db"

	backend    = "sqlite"
	timeLayout = time.RFC3339Nano
)

// Store is the SQLite store.Store.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	closed atomic.Bool
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at dir/cards.db and migrates
// it to the current schema.
func Open(ctx context.Context, dir string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "sqlite_store"))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, store.NewStoreError(backend, "open", "failed to create store directory", err)
	}

	path := filepath.Join(dir, FileName)
	dsn := "file:" + path + "?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, store.NewStoreError(backend, "open", "failed to open database", err)
	}
	// A single writer process holds the lock; one connection is enough.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, store.NewStoreError(backend, "open", "failed to connect to database", err)
	}
	if err := migrate(ctx, db, log); err != nil {
		_ = db.Close()
		return nil, store.NewStoreError(backend, "open", "failed to migrate database", err)
	}

	return &Store{db: db, path: path, logger: log}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Backend implements store.Store.
func (s *Store) Backend() string {
	return backend
}

// Close implements store.Store.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// Load implements store.Store.
func (s *Store) Load(ctx context.Context) (*store.Snapshot, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	snap := store.NewSnapshot()

	cards, err := s.loadCards(ctx, s.db)
	if err != nil {
		return nil, s.wrap("load", "failed to load cards", err)
	}
	snap.Cards = cards

	global, err := s.loadGlobal(ctx, s.db)
	if err != nil {
		return nil, s.wrap("load", "failed to load global state", err)
	}
	if global != nil {
		snap.Global = global
	}

	files, err := s.loadFiles(ctx, s.db)
	if err != nil {
		return nil, s.wrap("load", "failed to load file fingerprints", err)
	}
	snap.Files = files

	s.logger.Debug("loaded card database", slog.Int("cards", len(cards)))
	return snap.Normalize(), nil
}

// Save implements store.Store. The previous snapshot is replaced in a single
// transaction.
func (s *Store) Save(ctx context.Context, snap *store.Snapshot) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	if snap == nil {
		return store.NewStoreError(backend, "save", "snapshot is nil", nil)
	}

	ctx = logger.WithLogger(ctx, s.logger)
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := saveCards(ctx, tx, snap.Cards); err != nil {
			return err
		}
		if err := saveGlobal(ctx, tx, snap.Global); err != nil {
			return err
		}
		return saveFiles(ctx, tx, snap.Files)
	})
	if err != nil {
		return s.wrap("save", "failed to save snapshot", err)
	}

	s.logger.Debug("saved card database", slog.Int("cards", len(snap.Cards)))
	return nil
}

func (s *Store) wrap(op, msg string, err error) error {
	return store.NewStoreError(backend, op, msg, err)
}

const selectCards = `
SELECT id, prompt, response, tags, source_file, start_line, end_line, state,
       repetitions, failures, leech, last_reviewed, orphaned, added, next_due
FROM cards`

func (s *Store) loadCards(ctx context.Context, db store.DBTX) (domain.CardSet, error) {
	rows, err := db.QueryContext(ctx, selectCards)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := make(domain.CardSet)
	for rows.Next() {
		var (
			c            domain.Card
			id, tags     string
			state        sql.NullString
			lastReviewed sql.NullString
			added, due   string
		)
		if err := rows.Scan(
			&id, &c.Prompt, &c.Response, &tags,
			&c.Source.FilePath, &c.Source.StartLine, &c.Source.EndLine, &state,
			&c.History.Repetitions, &c.History.Failures, &c.History.Leech, &lastReviewed,
			&c.Orphaned, &added, &due,
		); err != nil {
			return nil, err
		}

		if c.ID, err = domain.ParseCardID(id); err != nil {
			return nil, fmt.Errorf("%w: %w", store.ErrCorrupt, err)
		}
		if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
			return nil, fmt.Errorf("%w: card %s tags: %v", store.ErrCorrupt, c.ID.Short(), err)
		}
		if state.Valid {
			st, err := domain.UnmarshalAlgorithmState([]byte(state.String))
			if err != nil && !domain.IsStateMismatch(err) {
				return nil, fmt.Errorf("%w: card %s state: %v", store.ErrCorrupt, c.ID.Short(), err)
			}
			if err != nil {
				s.logger.Debug("card has foreign state",
					slog.String("card_id", c.ID.Short()),
					slog.String("error", err.Error()))
			}
			c.State = st
		}
		if lastReviewed.Valid {
			t, err := time.Parse(timeLayout, lastReviewed.String)
			if err != nil {
				return nil, fmt.Errorf("%w: card %s last_reviewed: %v", store.ErrCorrupt, c.ID.Short(), err)
			}
			c.History.LastReviewed = &t
		}
		if c.Added, err = time.Parse(timeLayout, added); err != nil {
			return nil, fmt.Errorf("%w: card %s added: %v", store.ErrCorrupt, c.ID.Short(), err)
		}
		if c.NextDue, err = time.Parse(timeLayout, due); err != nil {
			return nil, fmt.Errorf("%w: card %s next_due: %v", store.ErrCorrupt, c.ID.Short(), err)
		}
		if len(c.Tags) == 0 {
			c.Tags = nil
		}

		cards[c.ID] = &c
	}
	return cards, rows.Err()
}

func (s *Store) loadGlobal(ctx context.Context, db store.DBTX) (*srs.GlobalState, error) {
	var data string
	err := db.QueryRowContext(ctx, `SELECT data FROM global_state WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var g srs.GlobalState
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return nil, fmt.Errorf("%w: global state: %v", store.ErrCorrupt, err)
	}
	if g.OptimalFactors == nil {
		g.OptimalFactors = make(map[int]map[int]float64)
	}
	return &g, nil
}

func (s *Store) loadFiles(ctx context.Context, db store.DBTX) (map[string]store.Fingerprint, error) {
	rows, err := db.QueryContext(ctx, `SELECT path, mod_time, size FROM file_fingerprints`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make(map[string]store.Fingerprint)
	for rows.Next() {
		var (
			path, modTime string
			fp            store.Fingerprint
		)
		if err := rows.Scan(&path, &modTime, &fp.Size); err != nil {
			return nil, err
		}
		if fp.ModTime, err = time.Parse(timeLayout, modTime); err != nil {
			return nil, fmt.Errorf("%w: fingerprint %s: %v", store.ErrCorrupt, path, err)
		}
		files[path] = fp
	}
	return files, rows.Err()
}

const insertCard = `
INSERT INTO cards (id, prompt, response, tags, source_file, start_line, end_line, state,
                   repetitions, failures, leech, last_reviewed, orphaned, added, next_due)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func saveCards(ctx context.Context, tx store.DBTX, cards domain.CardSet) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM cards`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, insertCard)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range cards.Sorted() {
		tags, err := json.Marshal(nonNil(c.Tags))
		if err != nil {
			return err
		}
		var state any
		if c.State != nil {
			data, err := domain.MarshalAlgorithmState(c.State)
			if err != nil {
				return fmt.Errorf("card %s: %w", c.ID.Short(), err)
			}
			state = string(data)
		}
		var lastReviewed any
		if c.History.LastReviewed != nil {
			lastReviewed = formatTime(*c.History.LastReviewed)
		}

		if _, err := stmt.ExecContext(ctx,
			c.ID.String(), c.Prompt, c.Response, string(tags),
			c.Source.FilePath, c.Source.StartLine, c.Source.EndLine, state,
			c.History.Repetitions, c.History.Failures, c.History.Leech, lastReviewed,
			c.Orphaned, formatTime(c.Added), formatTime(c.NextDue),
		); err != nil {
			return fmt.Errorf("insert card %s: %w", c.ID.Short(), err)
		}
	}
	return nil
}

func saveGlobal(ctx context.Context, tx store.DBTX, g *srs.GlobalState) error {
	if g == nil {
		g = srs.NewGlobalState()
	}
	data, err := json.Marshal(g)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO global_state (id, data) VALUES (1, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data`, string(data))
	return err
}

func saveFiles(ctx context.Context, tx store.DBTX, files map[string]store.Fingerprint) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM file_fingerprints`); err != nil {
		return err
	}
	for path, fp := range files {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO file_fingerprints (path, mod_time, size) VALUES (?, ?, ?)`,
			path, formatTime(fp.ModTime), fp.Size,
		); err != nil {
			return fmt.Errorf("insert fingerprint %s: %w", path, err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
