package storage

import (
	"context"
	"os"
	"syscall"
	"time"
)

const lockPollInterval = 10 * time.Millisecond

// FileLock is an advisory flock(2) lock on path + ".lock".
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a lock for path. Nothing is acquired until Lock.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path + ".lock"}
}

// Lock acquires the lock, polling until timeout elapses or ctx is done.
func (l *FileLock) Lock(ctx context.Context, timeout time.Duration) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return &StorageError{Op: "lock", Path: l.path, Err: err}
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err == nil {
			l.file = f
			return nil
		}
		if !time.Now().Before(deadline) {
			f.Close()
			return &StorageError{Op: "lock", Path: l.path, Err: ErrLockTimeout}
		}
		select {
		case <-ctx.Done():
			f.Close()
			return &StorageError{Op: "lock", Path: l.path, Err: ctx.Err()}
		case <-time.After(lockPollInterval):
		}
	}
}

// Held reports whether the lock is currently acquired.
func (l *FileLock) Held() bool { return l.file != nil }

// Unlock releases the lock and removes the lock file.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	os.Remove(l.path)
	l.file = nil
	return nil
}
