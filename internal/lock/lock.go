// Package lock provides the per-container exclusive advisory lock. The lock
// is a flock(2) on a file kept next to the container's parent directory, so
// it holds across processes and is dropped by the kernel if the owner dies.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const (
	Dir = "locks"

	// PollInterval is how often a busy lock is retried while waiting.
	PollInterval = 50 * time.Millisecond
)

var ErrLockBusy = errors.New("lock: held by another owner")

// Path returns the lock file for the container at containerPath:
// <parent of parent>/locks/<name>.
func Path(containerPath string) string {
	clean := filepath.Clean(containerPath)
	return filepath.Join(filepath.Dir(filepath.Dir(clean)), Dir, filepath.Base(clean))
}

type Lock struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// Acquire takes the exclusive lock for containerPath, waiting up to timeout.
// A zero timeout tries exactly once.
func Acquire(containerPath string, timeout time.Duration) (*Lock, error) {
	path := Path(containerPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &Lock{path: path, file: f}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			f.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			f.Close()
			return nil, fmt.Errorf("%w: %s after %s", ErrLockBusy, path, timeout)
		}
		time.Sleep(min(PollInterval, remaining))
	}
}

func (l *Lock) Path() string {
	return l.path
}

// Held reports whether Release has not been called yet.
func (l *Lock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file != nil
}

// Release drops the lock. Calling it more than once is a no-op.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil

	unlockErr := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	closeErr := f.Close()
	return errors.Join(unlockErr, closeErr)
}
