package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// LockFileName is the name of the advisory lock file in the store directory.
const LockFileName = "scry.lock"

// FileLock is an exclusive advisory lock held on a file. The operating
// system drops the lock when the process exits, so a crashed process never
// leaves the store locked.
type FileLock struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// AcquireLock takes the exclusive lock on path without blocking. If another
// process holds it, ErrAlreadyRunning is returned. The lock file is created
// with its parent directory when missing.
func AcquireLock(path string) (*FileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, NewStoreError("lock", "acquire", "failed to create lock directory", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, NewStoreError("lock", "acquire", "failed to open lock file", err)
	}

	if err := lockFile(f); err != nil {
		_ = f.Close()
		if errors.Is(err, errLocked) {
			return nil, fmt.Errorf("%w: lock %s is held", ErrAlreadyRunning, path)
		}
		return nil, NewStoreError("lock", "acquire", "failed to lock file", err)
	}

	// The pid is informational only.
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	return &FileLock{path: path, file: f}, nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// Release unlocks and closes the lock file. It is safe to call more than
// once and on a nil lock.
func (l *FileLock) Release() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	unlockErr := unlockFile(l.file)
	closeErr := l.file.Close()
	l.file = nil

	if err := errors.Join(unlockErr, closeErr); err != nil {
		return NewStoreError("lock", "release", "failed to release lock", err)
	}
	return nil
}
