package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestTryAcquire_Release_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "dplyr_1.1.4")

	lk, err := TryAcquire(target)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if _, err := os.Stat(lockPath(target)); err != nil {
		t.Fatalf("expected lock file to exist: %v", err)
	}

	if err := lk.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(lockPath(target)); !os.IsNotExist(err) {
		t.Errorf("expected lock file to be removed after Release, err = %v", err)
	}
}

func TestTryAcquire_MetadataWritten(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "dplyr_1.1.4")

	lk, err := TryAcquire(target)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	defer lk.Release()

	data, err := os.ReadFile(lockPath(target))
	if err != nil {
		t.Fatalf("reading lock file: %v", err)
	}
	var meta LockMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if meta.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", meta.PID, os.Getpid())
	}
	if meta.Heartbeat.IsZero() {
		t.Error("expected non-zero heartbeat timestamp")
	}
}

func TestTryAcquire_BusyWhenHeldByLiveProcess(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "dplyr_1.1.4")

	path := lockPath(target)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		t.Fatalf("flock: %v", err)
	}
	defer syscall.Flock(int(file.Fd()), syscall.LOCK_UN)

	meta := LockMetadata{PID: os.Getpid(), AcquiredAt: time.Now(), Heartbeat: time.Now()}
	if err := json.NewEncoder(file).Encode(meta); err != nil {
		t.Fatal(err)
	}

	_, err = TryAcquire(target)
	if err != ErrLockBusy {
		t.Fatalf("TryAcquire = %v, want ErrLockBusy", err)
	}
}

func TestTryAcquire_ReclaimsStaleLock_DeadPID(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "dplyr_1.1.4")
	path := lockPath(target)

	writeStaleLockFile(t, path, LockMetadata{
		PID:        deadPID(),
		AcquiredAt: time.Now().Add(-time.Hour),
		Heartbeat:  time.Now().Add(-time.Hour),
	})

	lk, err := TryAcquire(target)
	if err != nil {
		t.Fatalf("TryAcquire should reclaim a lock held by a dead PID: %v", err)
	}
	defer lk.Release()
}

func TestTryAcquire_ReclaimsStaleLock_OldHeartbeat(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "dplyr_1.1.4")
	path := lockPath(target)

	writeStaleLockFile(t, path, LockMetadata{
		PID:        os.Getpid(),
		AcquiredAt: time.Now().Add(-2 * time.Hour),
		Heartbeat:  time.Now().Add(-2 * StaleAfter),
	})

	lk, err := TryAcquire(target)
	if err != nil {
		t.Fatalf("TryAcquire should reclaim a lock with a stale heartbeat: %v", err)
	}
	defer lk.Release()
}

func TestTryAcquire_DoesNotReclaimFreshHeartbeat(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "dplyr_1.1.4")
	path := lockPath(target)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		t.Fatalf("flock: %v", err)
	}
	meta := LockMetadata{PID: os.Getpid(), AcquiredAt: time.Now(), Heartbeat: time.Now()}
	if err := json.NewEncoder(file).Encode(meta); err != nil {
		t.Fatal(err)
	}
	defer func() {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
	}()

	if _, err := TryAcquire(target); err != ErrLockBusy {
		t.Fatalf("TryAcquire = %v, want ErrLockBusy for a live, fresh-heartbeat holder", err)
	}
}

func TestHeartbeatLoop_RefreshesTimestamp(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "dplyr_1.1.4")

	orig := HeartbeatInterval
	setHeartbeatInterval(10 * time.Millisecond)
	defer setHeartbeatInterval(orig)

	lk, err := TryAcquire(target)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	defer lk.Release()

	data, err := os.ReadFile(lockPath(target))
	if err != nil {
		t.Fatal(err)
	}
	var first LockMetadata
	json.Unmarshal(data, &first)

	time.Sleep(50 * time.Millisecond)

	data, err = os.ReadFile(lockPath(target))
	if err != nil {
		t.Fatal(err)
	}
	var second LockMetadata
	json.Unmarshal(data, &second)

	if !second.Heartbeat.After(first.Heartbeat) {
		t.Errorf("expected heartbeat to advance: first=%v second=%v", first.Heartbeat, second.Heartbeat)
	}
}

func setHeartbeatInterval(d time.Duration) {
	HeartbeatInterval = d
}

func writeStaleLockFile(t *testing.T, path string, meta LockMetadata) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	if err := json.NewEncoder(file).Encode(meta); err != nil {
		t.Fatal(err)
	}
}

// deadPID returns a PID very unlikely to be in use: spawn and immediately
// reap a short-lived child, then reuse its now-exited PID.
func deadPID() int {
	proc, err := os.StartProcess("/bin/true", []string{"/bin/true"}, &os.ProcAttr{})
	if err != nil {
		return 999999
	}
	pid := proc.Pid
	proc.Wait()
	return pid
}
