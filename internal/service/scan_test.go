package service

import (
	"os"
	"testing"
	"time"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/reconcile"
	"github.com/phrazzld/scry-notes/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScanService(e *testEnv) *ScanService {
	s := NewScanService(e.store, e.lockPath, nil)
	s.now = func() time.Time { return testNow }
	return s
}

func (e *testEnv) scanRequest(full bool) ScanRequest {
	return ScanRequest{
		Paths:      []string{e.notes},
		Extensions: []string{".md"},
		Full:       full,
		Algorithm:  domain.AlgorithmSM5,
	}
}

func TestScan_NewCardsAndIdempotence(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "go.md", "Go channel: typed conduit #flashcard #go\n")
	e.write(t, "db.md", "Explain WAL #flashcard\nwrite-ahead log\n---\n")
	e.write(t, "ignored.txt", "Skipped: yes #flashcard\n")
	svc := newScanService(e)

	result, err := svc.Scan(e.ctx, e.scanRequest(true))
	require.NoError(t, err)
	assert.Equal(t, reconcile.Report{New: 2}, result.Report)
	assert.Equal(t, 2, result.Files)

	snap := e.load(t)
	require.Len(t, snap.Cards, 2)
	assert.Len(t, snap.Files, 2)
	cards := byPrompt(snap)
	assert.Equal(t, testNow, cards["Go channel"].NextDue)
	assert.True(t, cards["Explain WAL"].StateMatches(domain.AlgorithmSM5))

	again, err := svc.Scan(e.ctx, e.scanRequest(true))
	require.NoError(t, err)
	assert.Equal(t, reconcile.Report{Unchanged: 2}, again.Report)

	incremental, err := svc.Scan(e.ctx, e.scanRequest(false))
	require.NoError(t, err)
	assert.Equal(t, reconcile.Report{}, incremental.Report)
	assert.Equal(t, 2, incremental.Unchanged)
	assert.Zero(t, incremental.Files)

	assert.Equal(t, snap.Cards, e.load(t).Cards)
}

func TestScan_MoveKeepsHistory(t *testing.T) {
	e := newTestEnv(t)
	a := e.write(t, "a.md", "Q: A #flashcard\n")
	svc := newScanService(e)
	_, err := svc.Scan(e.ctx, e.scanRequest(false))
	require.NoError(t, err)

	snap := e.load(t)
	for _, c := range snap.Cards {
		c.History.Repetitions = 7
	}
	e.save(t, snap)

	e.write(t, "a.md", "nothing here\n")
	b := e.write(t, "b.md", "intro\n\nQ: A #flashcard\n")

	result, err := svc.Scan(e.ctx, e.scanRequest(false))
	require.NoError(t, err)
	assert.Equal(t, reconcile.Report{Updated: 1}, result.Report)

	c := byPrompt(e.load(t))["Q"]
	require.NotNil(t, c)
	assert.Equal(t, b, c.Source.FilePath)
	assert.Equal(t, 3, c.Source.StartLine)
	assert.Equal(t, 7, c.History.Repetitions)
	assert.False(t, c.Orphaned)
	assert.NotEqual(t, a, c.Source.FilePath)
}

func TestScan_IncrementalOrphaning(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "a.md", "QA: A #flashcard\n")
	e.write(t, "b.md", "QB: B #flashcard\n")
	svc := newScanService(e)
	_, err := svc.Scan(e.ctx, e.scanRequest(false))
	require.NoError(t, err)

	t.Run("edited card becomes a new identity", func(t *testing.T) {
		e.write(t, "a.md", "QA: A changed #flashcard\n")

		result, err := svc.Scan(e.ctx, e.scanRequest(false))
		require.NoError(t, err)
		assert.Equal(t, reconcile.Report{New: 1, Orphaned: 1}, result.Report)
		assert.Equal(t, 1, result.Unchanged, "b.md was not reread")
	})

	t.Run("deleted file orphans its cards", func(t *testing.T) {
		b := e.notes + "/b.md"
		require.NoError(t, os.Remove(b))

		result, err := svc.Scan(e.ctx, e.scanRequest(false))
		require.NoError(t, err)
		assert.Equal(t, reconcile.Report{Orphaned: 1}, result.Report)

		snap := e.load(t)
		assert.True(t, byPrompt(snap)["QB"].Orphaned)
		assert.NotContains(t, snap.Files, b)
	})

	t.Run("scanning one file leaves others alone", func(t *testing.T) {
		c := e.write(t, "c.md", "QC: C #flashcard\n")

		result, err := svc.Scan(e.ctx, ScanRequest{
			Paths:     []string{c},
			Algorithm: domain.AlgorithmSM5,
		})
		require.NoError(t, err)
		assert.Equal(t, reconcile.Report{New: 1}, result.Report)

		orphans := 0
		for _, c := range e.load(t).Cards {
			if c.Orphaned {
				orphans++
			}
		}
		assert.Equal(t, 2, orphans, "only the edited and deleted cards are orphans")
	})
}

func TestScan_ExplicitlyRemovedFile(t *testing.T) {
	e := newTestEnv(t)
	a := e.write(t, "a.md", "QA: A #flashcard\n")
	svc := newScanService(e)
	_, err := svc.Scan(e.ctx, e.scanRequest(false))
	require.NoError(t, err)

	require.NoError(t, os.Remove(a))
	result, err := svc.Scan(e.ctx, ScanRequest{Removed: []string{a}, Algorithm: domain.AlgorithmSM5})
	require.NoError(t, err)
	assert.Equal(t, reconcile.Report{Orphaned: 1}, result.Report)
}

func TestScan_LockContention(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "a.md", "QA: A #flashcard\n")

	lock, err := store.AcquireLock(e.lockPath)
	require.NoError(t, err)
	defer func() { _ = lock.Release() }()

	_, err = newScanService(e).Scan(e.ctx, e.scanRequest(true))
	require.ErrorIs(t, err, store.ErrAlreadyRunning)
	assert.Empty(t, e.load(t).Cards, "nothing may be written")
}

func TestScan_MissingPath(t *testing.T) {
	e := newTestEnv(t)

	_, err := newScanService(e).Scan(e.ctx, ScanRequest{Paths: []string{e.notes + "/nope"}})
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "scan", svcErr.Operation)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
