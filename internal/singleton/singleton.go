// Package singleton enforces that at most one uploadr run holds the state
// directory at a time.
package singleton

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"uploadr/internal/services"
)

// Handle is an acquired advisory lock. The OS releases it when the process
// exits, whether or not Release is called.
type Handle struct {
	lock *flock.Flock
	once sync.Once
	err  error
}

// Acquire takes a non-blocking exclusive lock on path. If another process holds
// it, Acquire fails immediately with services.ErrAlreadyRunning. Only the lock
// file itself (and its directory) may be created before that check.
func Acquire(path string) (*Handle, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrAlreadyRunning, "singleton", "acquire",
			fmt.Sprintf("another uploadr instance holds %s", path), nil)
	}
	return &Handle{lock: lock}, nil
}

// Path returns the lock file path.
func (h *Handle) Path() string {
	if h == nil || h.lock == nil {
		return ""
	}
	return h.lock.Path()
}

// Release unlocks the handle. Safe to call more than once.
func (h *Handle) Release() error {
	if h == nil || h.lock == nil {
		return nil
	}
	h.once.Do(func() {
		h.err = h.lock.Unlock()
	})
	return h.err
}

// Held reports whether some process currently holds the lock at path. It is
// used by read-only commands and never leaves the lock held.
func Held(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	lock := flock.New(path)
	ok, err := lock.TryRLock()
	if err != nil {
		return false, err
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}
