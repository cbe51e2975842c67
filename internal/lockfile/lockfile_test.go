package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLock(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir, ":5000")
	require.NoError(t, err)
	defer lock.Release()

	assert.Equal(t, filepath.Join(dir, LockFileName), lock.Path())
	content, err := os.ReadFile(lock.Path())
	require.NoError(t, err)

	owner := parseOwner(string(content))
	assert.Equal(t, os.Getpid(), owner.PID)
	assert.Equal(t, ":5000", owner.Addr)
	assert.WithinDuration(t, time.Now(), owner.StartedAt, 5*time.Second)
}

func TestAcquireLock_Conflict(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireLock(dir, ":5000")
	require.NoError(t, err)
	defer first.Release()

	second, err := AcquireLock(dir, ":5001")
	if err == nil {
		second.Release()
		t.Fatal("second lock acquisition should have failed")
	}

	var lockErr *LockError
	require.True(t, errors.As(err, &lockErr))
	assert.True(t, errors.Is(err, syscall.EWOULDBLOCK))
	assert.Contains(t, lockErr.Holder, "(running)")
	assert.Contains(t, lockErr.Holder, ":5000")
	assert.Contains(t, err.Error(), dir)

	// The holder's details survive the failed attempt.
	content, err := os.ReadFile(first.Path())
	require.NoError(t, err)
	assert.Equal(t, ":5000", parseOwner(string(content)).Addr)
}

func TestRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir, "")
	require.NoError(t, err)
	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release(), "release is idempotent")

	_, err = os.Stat(filepath.Join(dir, LockFileName))
	assert.True(t, os.IsNotExist(err))

	again, err := AcquireLock(dir, "")
	require.NoError(t, err)
	assert.NoError(t, again.Release())

	var nilLock *Lock
	assert.NoError(t, nilLock.Release())
}

func TestAcquireLock_CreatesStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	lock, err := AcquireLock(dir, "")
	require.NoError(t, err)
	defer lock.Release()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDescribeHolder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, LockFileName)

	assert.Equal(t, "unable to read lock file information", describeHolder(path))

	require.NoError(t, os.WriteFile(path, nil, 0644))
	assert.Equal(t, "lock file contains no process information", describeHolder(path))

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))
	assert.Equal(t, "unrecognized lock file contents", describeHolder(path))

	// PIDs this large are never allocated.
	require.NoError(t, os.WriteFile(path, []byte("pid=99999999\naddr=:7000\n"), 0644))
	desc := describeHolder(path)
	assert.True(t, strings.HasPrefix(desc, "PID 99999999 (not running, stale lock)"), desc)
	assert.Contains(t, desc, ":7000")
}
