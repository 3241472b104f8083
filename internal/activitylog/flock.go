package activitylog

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// FileLock provides cross-process mutual exclusion using flock(2). The lock
// lives in a sibling file so the log itself can be replaced by rename
// without dropping the lock.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a FileLock guarding logPath. The lock file is
// logPath + ".lock".
func NewFileLock(logPath string) *FileLock {
	return &FileLock{path: logPath + ".lock"}
}

// Path returns the lock file path.
func (fl *FileLock) Path() string { return fl.path }

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if it is held elsewhere.
func (fl *FileLock) TryLock() (bool, error) {
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return false, fmt.Errorf("open lock file: %w", err)
	}

	err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return false, nil
		}
		return false, fmt.Errorf("flock: %w", err)
	}

	fl.file = f
	return true, nil
}

// Unlock releases the file lock and closes the lock file. The lock file is
// left in place; removing it would race with a process about to lock it.
func (fl *FileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}

	if err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = fl.file.Close()
		fl.file = nil
		return fmt.Errorf("funlock: %w", err)
	}

	err := fl.file.Close()
	fl.file = nil
	return err
}
