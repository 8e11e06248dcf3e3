//go:build unix

package singleinstance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"hotkeyhub/internal/userutil"
)

// Lock holds an exclusive flock on a lock file. The kernel releases it
// when the owning process exits.
type Lock struct {
	file *os.File
}

// TryLock takes a non-blocking exclusive flock on the file at name,
// creating it if needed, or returns ErrAlreadyRunning.
func TryLock(name string) (*Lock, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("lock file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %q: %w", name, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("flock %q: %w", name, err)
	}
	return &Lock{file: f}, nil
}

// Release unlocks and closes the lock file. Nil-safe and idempotent.
// The file itself is left in place; removing it would race a new owner.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	return errors.Join(unlockErr, closeErr)
}

// DefaultName returns the per-user lock file path under XDG_RUNTIME_DIR,
// falling back to the temp dir.
func DefaultName() string {
	dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, userutil.InstanceName(namePrefix)+".lock")
}
