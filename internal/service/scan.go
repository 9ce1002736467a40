package service

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/extract"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/reconcile"
	"github.com/phrazzld/scry-notes/internal/store"
)

// ScanRequest describes one scan.
type ScanRequest struct {
	// Paths are files or directories to scan.
	Paths []string
	// Extensions filters files found in directories.
	Extensions []string
	// Full rereads every file and orphans every card not found. Otherwise
	// unchanged files are skipped and only cards of scanned files can be
	// orphaned.
	Full bool
	// Removed lists files known to have been deleted. Their cards are
	// orphaned as if the files had been scanned empty.
	Removed []string
	// Algorithm seeds the state of new cards.
	Algorithm domain.Algorithm
}

// ScanResult summarizes a scan.
type ScanResult struct {
	reconcile.Report
	// Files is the number of files read.
	Files int
	// Unchanged is the number of files skipped by fingerprint.
	Unchanged int
	// FileErrors lists files that could not be read. Their cards are kept
	// as they were.
	FileErrors []*extract.FileError
	Duration   time.Duration
}

// ScanService extracts cards from notes and reconciles them into the store.
type ScanService struct {
	store    store.Store
	lockPath string
	logger   *slog.Logger
	now      func() time.Time
}

// NewScanService creates a ScanService.
func NewScanService(st store.Store, lockPath string, log *slog.Logger) *ScanService {
	if st == nil {
		panic("store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &ScanService{
		store:    st,
		lockPath: lockPath,
		logger:   log.With(slog.String("component", "scan_service")),
		now:      time.Now,
	}
}

// Scan runs one scan under the store lock.
func (s *ScanService) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var files []string
	if len(req.Paths) > 0 || len(req.Removed) == 0 {
		var err error
		files, err = extract.Discover(req.Paths, req.Extensions)
		if err != nil {
			return nil, NewServiceError("scan", "failed to discover files", err)
		}
	}

	var result *ScanResult
	err := withLock(ctx, s.lockPath, log, func(ctx context.Context) error {
		var err error
		result, err = s.scanLocked(ctx, log, files, req)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyRunning) {
			return nil, err
		}
		return nil, NewServiceError("scan", "scan failed", err)
	}
	return result, nil
}

func (s *ScanService) scanLocked(
	ctx context.Context,
	log *slog.Logger,
	files []string,
	req ScanRequest,
) (*ScanResult, error) {
	started := s.now()

	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	mode := reconcile.Incremental
	if req.Full {
		mode = reconcile.Full
	}

	result := &ScanResult{}
	fingerprints := make(map[string]store.Fingerprint, len(files))
	toRead := make([]string, 0, len(files))
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			// Extraction reports the error for this file.
			toRead = append(toRead, path)
			continue
		}
		fp := store.FingerprintOf(info)
		fingerprints[path] = fp
		if !req.Full {
			if prev, ok := snap.Files[path]; ok && prev.Equal(fp) {
				result.Unchanged++
				continue
			}
		}
		toRead = append(toRead, path)
	}

	var candidates []domain.CardCandidate
	preserve := make(map[string]struct{})
	for c, err := range extract.Candidates(ctx, toRead, log) {
		var fe *extract.FileError
		switch {
		case errors.As(err, &fe):
			log.Warn("failed to read file",
				slog.String("file", fe.Path),
				slog.String("error", fe.Err.Error()))
			result.FileErrors = append(result.FileErrors, fe)
			preserve[fe.Path] = struct{}{}
		case err != nil:
			return nil, err
		default:
			candidates = append(candidates, c)
		}
	}

	scanned := make(map[string]struct{}, len(toRead))
	for _, path := range toRead {
		if _, failed := preserve[path]; !failed {
			scanned[path] = struct{}{}
		}
	}
	result.Files = len(scanned)
	for _, path := range vanished(snap, req, fingerprints) {
		scanned[path] = struct{}{}
		delete(snap.Files, path)
		log.Debug("source file removed", slog.String("file", path))
	}

	cards, report := reconcile.Reconcile(snap.Cards, slices.Values(candidates), reconcile.Options{
		Algorithm: req.Algorithm,
		Now:       started,
		Mode:      mode,
		Scanned:   scanned,
		Preserve:  preserve,
	})
	result.Report = report
	snap.Cards = cards

	for path := range scanned {
		if fp, ok := fingerprints[path]; ok {
			snap.Files[path] = fp
		}
	}
	for path := range preserve {
		delete(snap.Files, path)
	}

	if err := s.store.Save(ctx, snap); err != nil {
		return nil, err
	}

	result.Duration = s.now().Sub(started)
	log.Info("scan finished",
		slog.String("mode", mode.String()),
		slog.Int("files", result.Files),
		slog.Int("unchanged_files", result.Unchanged),
		slog.Int("file_errors", len(result.FileErrors)),
		slog.Int("new", report.New),
		slog.Int("updated", report.Updated),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("orphaned", report.Orphaned),
		slog.Int("unorphaned", report.Unorphaned),
		slog.Int("duplicates", report.Duplicates),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// vanished returns the files that no longer exist among the previously
// fingerprinted files under the requested paths and the explicitly removed
// files.
func vanished(snap *store.Snapshot, req ScanRequest, found map[string]store.Fingerprint) []string {
	roots := make([]string, 0, len(req.Paths))
	for _, p := range req.Paths {
		if abs, err := filepath.Abs(p); err == nil {
			roots = append(roots, abs)
		}
	}
	under := func(path string) bool {
		for _, root := range roots {
			if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
				return true
			}
		}
		return false
	}

	var out []string
	for path := range snap.Files {
		if _, ok := found[path]; ok || !under(path) {
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			out = append(out, path)
		}
	}
	for _, p := range req.Removed {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
			out = append(out, abs)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
