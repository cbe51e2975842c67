// Package lockfile guards the CatalogRelay state directory against concurrent instances.
//
// The lock is an flock on a file inside the state directory, so the kernel releases it when the
// process exits for any reason.
package lockfile

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the state directory.
const LockFileName = "catalogrelay.lock"

// Owner describes the process holding a lock.
type Owner struct {
	PID       int
	Addr      string
	StartedAt time.Time
}

func (o Owner) encode() string {
	return fmt.Sprintf("pid=%d\naddr=%s\nstarted_at=%s\n", o.PID, o.Addr, o.StartedAt.UTC().Format(time.RFC3339))
}

// parseOwner reads the key=value lines written by encode. Unknown keys are ignored.
func parseOwner(content string) Owner {
	var o Owner
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			o.PID, _ = strconv.Atoi(value)
		case "addr":
			o.Addr = value
		case "started_at":
			o.StartedAt, _ = time.Parse(time.RFC3339, value)
		}
	}
	return o
}

// Lock is a held state-directory lock.
type Lock struct {
	file *os.File
	path string
}

// AcquireLock takes the exclusive lock on stateDir, creating the directory if needed. addr is
// recorded for the error message shown to a second instance.
func AcquireLock(stateDir, addr string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)
	slog.Debug("lockfile.AcquireLock: acquiring", "lock_path", lockPath)

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	// Truncate only once the lock is held; a failed attempt must keep the holder's details.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		lockErr := &LockError{LockPath: lockPath, Holder: describeHolder(lockPath), Cause: err}
		slog.Error("lockfile.AcquireLock: another CatalogRelay instance holds the lock", "lock_path", lockPath, "holder", lockErr.Holder)
		return nil, lockErr
	}

	owner := Owner{PID: os.Getpid(), Addr: addr, StartedAt: time.Now()}
	if err := writeOwner(file, owner); err != nil {
		_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}

	slog.Info("lockfile.AcquireLock: state directory locked", "lock_path", lockPath, "pid", owner.PID)
	return &Lock{file: file, path: lockPath}, nil
}

func writeOwner(file *os.File, owner Owner) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.WriteAt([]byte(owner.encode()), 0); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		slog.Warn("lockfile.writeOwner: failed to sync lock file", "error", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and removes the lock file. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Error("Lock.Release: failed to release flock", "lock_path", l.path, "error", err)
	}
	if err := l.file.Close(); err != nil {
		slog.Error("Lock.Release: failed to close lock file", "lock_path", l.path, "error", err)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Lock.Release: failed to remove lock file", "lock_path", l.path, "error", err)
	}
	l.file = nil
	slog.Info("Lock.Release: state directory unlocked", "lock_path", l.path)
	return nil
}

// LockError is returned when another process holds the lock.
type LockError struct {
	LockPath string
	Holder   string
	Cause    error
}

func (e *LockError) Error() string {
	msg := fmt.Sprintf("another CatalogRelay instance is already using this state directory (lock file: %s)", e.LockPath)
	if e.Holder != "" {
		msg += "; holder: " + e.Holder
	}
	return msg + fmt.Sprintf("; if no other instance is running, remove %s", e.LockPath)
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// describeHolder summarizes the lock file of the current holder for error messages.
func describeHolder(lockPath string) string {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return "unable to read lock file information"
	}
	if len(data) == 0 {
		return "lock file contains no process information"
	}

	owner := parseOwner(string(data))
	if owner.PID <= 0 {
		return "unrecognized lock file contents"
	}
	state := "not running, stale lock"
	if isProcessRunning(owner.PID) {
		state = "running"
	}
	desc := fmt.Sprintf("PID %d (%s)", owner.PID, state)
	if owner.Addr != "" {
		desc += ", listening on " + owner.Addr
	}
	if !owner.StartedAt.IsZero() {
		desc += ", started " + owner.StartedAt.Format(time.RFC3339)
	}
	return desc
}

// isProcessRunning probes pid with signal 0.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
