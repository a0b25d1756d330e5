package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const lockFile = "modelconf.lock"

// errLockHeld is returned when another process is exporting into the
// same output root.
var errLockHeld = fmt.Errorf(
	"export lock is held by another process; " +
		"wait for the other export to finish or remove the lock file")

// Locker serializes run-directory exports with an advisory lock on
// <outDir>/modelconf.lock. Goroutines sharing a Locker queue on an
// in-process mutex; the flock is taken non-blocking, so a lock held by
// another process (or another Locker) fails fast with errLockHeld.
type Locker struct {
	path string
	mu   sync.Mutex
	held *os.File
}

// NewLocker returns a Locker scoped to the given output root.
func NewLocker(baseDir string) *Locker {
	return &Locker{path: filepath.Join(baseDir, lockFile)}
}

// Lock takes the export lock, waiting for any export already running
// through this Locker. Unlock must be called by the goroutine that
// acquired the lock.
func (l *Locker) Lock() error {
	l.mu.Lock()

	if err := os.MkdirAll(filepath.Dir(l.path), runDirPerm); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, runFilePerm)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := lockFileExclusive(f); err != nil {
		_ = f.Close()
		l.mu.Unlock()
		return err
	}

	l.held = f
	return nil
}

// Unlock releases the lock and removes the lock file. Unlocking a
// Locker that holds nothing is a no-op.
func (l *Locker) Unlock() error {
	if l.held == nil {
		return nil
	}

	if err := unlockFile(l.held); err != nil {
		return fmt.Errorf("failed to release export lock: %w", err)
	}
	if err := l.held.Close(); err != nil {
		return fmt.Errorf("failed to close lock file: %w", err)
	}
	l.held = nil

	// the file is only a rendezvous point; removal is best effort
	_ = os.Remove(l.path)

	l.mu.Unlock()
	return nil
}
