// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock is an advisory flock guarding the install tree. Two concurrent
// bootstraps interleaving backups and renames would corrupt the
// "backup then overwrite" guarantee, so the engine takes this lock
// before its first mutation.
type Lock struct {
	file *os.File
}

// AcquireLock takes an exclusive non-blocking flock on the file at
// path, creating it if needed. Returns an error immediately when
// another process holds the lock — bootstrap runs never queue.
func AcquireLock(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening install lock %s: %w", path, err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("another bootstrap is running (lock %s is held)", path)
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}

	return &Lock{file: file}, nil
}

// Release drops the lock. The lock file itself is left in place; only
// the flock matters.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("unlocking install lock: %w", err)
	}
	return closeErr
}
