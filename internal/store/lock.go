// internal/store/lock.go
// Package: store
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

func lockPath(path string) string { return path + ".lock" }

// acquire takes the single-writer lock for path. A lock left behind by a
// process that no longer runs is removed and taken over once.
func acquire(path string) (func(), error) {
	f, err := createLock(path)
	if errors.Is(err, fs.ErrExist) && !lockHeld(path) {
		if rerr := os.Remove(lockPath(path)); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock: %w", rerr)
		}
		f, err = createLock(path)
	}
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrWriteInProgress)
		}
		return nil, fmt.Errorf("create lock: %w", err)
	}
	return func() {
		f.Close()
		os.Remove(lockPath(path))
	}, nil
}

func createLock(path string) (*os.File, error) {
	f, err := os.OpenFile(lockPath(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	return f, nil
}

// lockHeld reports whether the lock for path exists and names a running
// process. A lock without a readable PID counts as held: its writer may not
// have written it yet.
func lockHeld(path string) bool {
	b, err := os.ReadFile(lockPath(path))
	if err != nil {
		return !errors.Is(err, fs.ErrNotExist)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return true
	}
	return processAlive(pid)
}
