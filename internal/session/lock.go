package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another session already holds the index directory.
var ErrLocked = errors.New("index is locked by another session")

// LockFileName is the lock file created inside the index directory.
const LockFileName = "session.lock"

// Lock guarantees a single indexing session per index directory.
// The registry and pool state of a session are process-local, so two
// processes indexing into the same database would race on the snapshot.
type Lock struct {
	lock *flock.Flock
}

// Acquire takes the session lock in dir without blocking.
// Returns ErrLocked if another process holds it.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	fl := flock.New(filepath.Join(dir, LockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	return &Lock{lock: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.lock.Path()
}

// Release releases the lock. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
