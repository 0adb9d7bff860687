//go:build !windows

package core

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// lockProject takes an exclusive advisory lock on <dir>.lock so two runs,
// even from different processes, never write into the same project directory
// at once. wait is called once before blocking when another holder exists.
// The returned function releases the lock and removes the lock file.
func lockProject(dir string, wait func()) (unlock func() error, err error) {
	path := dir + ".lock"
	for {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening lock file: %w", err)
		}

		err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if errors.Is(err, syscall.EWOULDBLOCK) {
			if wait != nil {
				wait()
				wait = nil
			}
			err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("acquiring lock on %s: %w", path, err)
		}

		// The previous holder removes the file on release; a lock on the
		// unlinked inode excludes nobody, so start over on the new file.
		if !sameFile(f, path) {
			f.Close()
			continue
		}

		return func() error {
			defer f.Close()
			os.Remove(path)
			return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		}, nil
	}
}

func sameFile(f *os.File, path string) bool {
	held, err := f.Stat()
	if err != nil {
		return false
	}
	current, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(held, current)
}
