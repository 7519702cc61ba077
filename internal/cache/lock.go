package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// StaleAfter is how long a lock can go without a heartbeat touch before
// another process is allowed to treat it as abandoned and reclaim it
// (spec.md §5, "identified by pid/heartbeat age"; SPEC_FULL.md §8 Open
// Question #3 settles on the spec's own suggested 10 minutes).
const StaleAfter = 10 * time.Minute

// HeartbeatInterval is how often a held lock re-touches its metadata file
// so a long-running compile doesn't get reclaimed out from under it.
// A var, not a const, so tests can shrink it instead of sleeping for
// real minutes.
var HeartbeatInterval = 2 * time.Minute

// LockMetadata records who holds a lock, for stale-lock detection by a
// different process (adapted from the teacher's internal/validate.LockMetadata).
type LockMetadata struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	Heartbeat  time.Time `json:"heartbeat"`
}

// Lock is a held cross-process file lock on a cache entry's staging
// directory. Call Release when done.
type Lock struct {
	file *os.File
	path string

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// ErrLockBusy is returned by TryAcquire when the lock is already held by
// another live process.
var ErrLockBusy = fmt.Errorf("cache entry lock is busy")

// lockPath returns the sidecar lock file path for a target directory, the
// same "lock file adjacent to the staging directory" spec.md §4.2 names.
func lockPath(targetDir string) string {
	return targetDir + ".lock"
}

// TryAcquire attempts to acquire the lock for targetDir without blocking.
// If the existing lock is stale (dead PID or heartbeat older than
// StaleAfter), it is reclaimed; otherwise ErrLockBusy is returned.
func TryAcquire(targetDir string) (*Lock, error) {
	path := lockPath(targetDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if err == unix.EWOULDBLOCK {
			if reclaimed, rerr := reclaimIfStale(path); rerr == nil && reclaimed {
				return TryAcquire(targetDir)
			}
			return nil, ErrLockBusy
		}
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}

	lk := &Lock{file: file, path: path, stop: make(chan struct{})}
	if err := lk.touch(); err != nil {
		lk.unlockAndClose()
		return nil, err
	}

	lk.wg.Add(1)
	go lk.heartbeatLoop()

	return lk, nil
}

// touch writes current metadata to the lock file.
func (l *Lock) touch() error {
	meta := LockMetadata{PID: os.Getpid(), AcquiredAt: time.Now(), Heartbeat: time.Now()}

	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("truncating lock file: %w", err)
	}
	if _, err := l.file.Seek(0, 0); err != nil {
		return fmt.Errorf("seeking lock file: %w", err)
	}

	enc := json.NewEncoder(l.file)
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("writing lock metadata: %w", err)
	}
	return l.file.Sync()
}

// heartbeatLoop re-touches the lock file every HeartbeatInterval until
// Release is called, so the holder survives a compile longer than
// StaleAfter without being reclaimed.
func (l *Lock) heartbeatLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			_ = l.touch()
		}
	}
}

// Release releases the lock and removes its sidecar file.
func (l *Lock) Release() error {
	l.stopOnce.Do(func() { close(l.stop) })
	l.wg.Wait()

	err := l.unlockAndClose()
	if rmErr := os.Remove(l.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = fmt.Errorf("removing lock file: %w", rmErr)
	}
	return err
}

func (l *Lock) unlockAndClose() error {
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	if unlockErr != nil {
		return fmt.Errorf("releasing lock: %w", unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing lock file: %w", closeErr)
	}
	return nil
}

// reclaimIfStale checks whether the lock at path is abandoned — its
// holder process is gone, or its heartbeat is older than StaleAfter —
// and if so removes the lock file so a subsequent TryAcquire can
// succeed. Returns true if it reclaimed the file.
func reclaimIfStale(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	var meta LockMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		// Unreadable metadata; leave it for a human to investigate
		// rather than guessing.
		return false, err
	}

	if processAlive(meta.PID) && time.Since(meta.Heartbeat) < StaleAfter {
		return false, nil
	}

	// Re-verify by attempting a non-blocking flock directly; if we can
	// take it, nothing else currently holds it.
	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return false, err
	}
	defer file.Close()

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return false, nil // still held
	}
	unix.Flock(int(file.Fd()), unix.LOCK_UN)

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return false, err
	}
	return true, nil
}

// processAlive reports whether pid still exists, via the same signal(0)
// probe the teacher's internal/validate.isProcessRunning uses, sent
// directly with unix.Kill rather than through os.FindProcess/Signal (on
// Unix os.FindProcess always succeeds regardless of whether pid exists,
// so the kill(pid, 0) call itself is the only real check).
func processAlive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}
