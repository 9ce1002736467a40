package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/platform/jsonfile"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/store"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	notes    string
	store    *jsonfile.Store
	lockPath string
	logs     *logger.TestLogBuffer
	ctx      context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	storeDir := filepath.Join(root, "store")
	notes := filepath.Join(root, "notes")
	require.NoError(t, os.MkdirAll(notes, 0o755))

	ctx, logs := logger.NewLogCaptureContext(t)
	return &testEnv{
		notes:    notes,
		store:    jsonfile.New(storeDir, logger.FromContext(ctx)),
		lockPath: filepath.Join(storeDir, store.LockFileName),
		logs:     logs,
		ctx:      ctx,
	}
}

// write creates or replaces a note and moves its modification time forward
// so fingerprints always change.
func (e *testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.notes, name)
	var mtime time.Time
	if info, err := os.Stat(path); err == nil {
		mtime = info.ModTime().Add(time.Second)
	} else {
		mtime = time.Now().Add(-time.Hour)
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func (e *testEnv) load(t *testing.T) *store.Snapshot {
	t.Helper()
	snap, err := e.store.Load(context.Background())
	require.NoError(t, err)
	return snap
}

func (e *testEnv) save(t *testing.T, snap *store.Snapshot) {
	t.Helper()
	require.NoError(t, e.store.Save(context.Background(), snap))
}

// seed saves cards built from prompts and returns them keyed by prompt.
func (e *testEnv) seed(t *testing.T, alg domain.Algorithm, prompts ...string) map[string]*domain.Card {
	t.Helper()
	snap := store.NewSnapshot()
	out := make(map[string]*domain.Card, len(prompts))
	for i, p := range prompts {
		c, err := domain.NewCard(domain.CardCandidate{
			Prompt:   p,
			Response: "answer " + p,
			Tags:     []string{"seed"},
			Source:   domain.SourceLocation{FilePath: filepath.Join(e.notes, "seed.md"), StartLine: i + 1, EndLine: i + 1},
		}, domain.NewAlgorithmState(alg), testNow.Add(-time.Duration(len(prompts)-i)*time.Hour))
		require.NoError(t, err)
		snap.Cards[c.ID] = c
		out[p] = c
	}
	e.save(t, snap)
	return out
}

func byPrompt(snap *store.Snapshot) map[string]*domain.Card {
	out := make(map[string]*domain.Card, len(snap.Cards))
	for _, c := range snap.Cards {
		out[c.Prompt] = c
	}
	return out
}
