// Package jsonfile stores the card set as a single JSON document.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/domain/srs"
	"github.com/phrazzld/scry-notes/internal/store"
)

const (
	// FileName is the card database file inside the store directory.
	FileName = "cards.json"

	// Version is the document version written by Save.
	Version = 1

	backend = "json"
)

type document struct {
	Version int                          `json:"version"`
	Cards   []*domain.Card               `json:"cards"`
	Global  *srs.GlobalState             `json:"global"`
	Files   map[string]store.Fingerprint `json:"files,omitempty"`
}

// Store keeps the snapshot in dir/cards.json. Saves write a temporary file
// in the same directory, sync it and rename it over the old file.
type Store struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

var _ store.Store = (*Store)(nil)

// New returns a store rooted at dir. The directory is created on first save.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   filepath.Join(dir, FileName),
		logger: logger.With(slog.String("component", "json_store")),
	}
}

// Path returns the location of the card database.
func (s *Store) Path() string {
	return s.path
}

// Backend implements store.Store.
func (s *Store) Backend() string {
	return backend
}

// Load implements store.Store.
func (s *Store) Load(ctx context.Context) (*store.Snapshot, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("no card database yet", slog.String("path", s.path))
		return store.NewSnapshot(), nil
	}
	if err != nil {
		return nil, store.NewStoreError(backend, "load", "failed to read card database", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, store.NewStoreError(backend, "load", "failed to decode card database",
			fmt.Errorf("%w: %v", store.ErrCorrupt, err))
	}
	if doc.Version > Version {
		return nil, store.NewStoreError(backend, "load",
			fmt.Sprintf("document version %d is newer than %d", doc.Version, Version),
			store.ErrUnsupportedVersion)
	}

	snap := &store.Snapshot{
		Cards:  make(domain.CardSet, len(doc.Cards)),
		Global: doc.Global,
		Files:  doc.Files,
	}
	for _, c := range doc.Cards {
		if c == nil {
			continue
		}
		if err := c.Validate(); err != nil {
			return nil, store.NewStoreError(backend, "load", "invalid card in database",
				fmt.Errorf("%w: %w", store.ErrCorrupt, err))
		}
		snap.Cards[c.ID] = c
	}

	s.logger.Debug("loaded card database",
		slog.String("path", s.path),
		slog.Int("cards", len(snap.Cards)))

	return snap.Normalize(), nil
}

// Save implements store.Store.
func (s *Store) Save(ctx context.Context, snap *store.Snapshot) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if snap == nil {
		return store.NewStoreError(backend, "save", "snapshot is nil", nil)
	}

	doc := document{
		Version: Version,
		Cards:   snap.Cards.Sorted(),
		Global:  snap.Global,
		Files:   snap.Files,
	}
	if doc.Global == nil {
		doc.Global = srs.NewGlobalState()
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return store.NewStoreError(backend, "save", "failed to encode card database", err)
	}

	if err := writeFileAtomic(s.path, append(data, '\n')); err != nil {
		return store.NewStoreError(backend, "save", "failed to write card database", err)
	}

	s.logger.Debug("saved card database",
		slog.String("path", s.path),
		slog.Int("cards", len(doc.Cards)))
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry of a rename. Not every platform can
// open a directory for syncing, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
