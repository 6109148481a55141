//go:build !windows

package singleton

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// lockDirectory holds the lock files
var lockDirectory = os.TempDir

// acquire takes a non-blocking exclusive flock on <tmp>/<id>.lock. The lock
// belongs to the open file description, so the kernel drops it when the
// process exits, however it exits.
func acquire(id string) (bool, func() error, error) {
	path := filepath.Join(lockDirectory(), id+".lock")

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return false, nil, err
	}

	err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	switch {
	case err == nil:
		release := func() error {
			unlockErr := unix.Flock(int(f.Fd()), unix.LOCK_UN)
			closeErr := f.Close()
			if unlockErr != nil {
				return unlockErr
			}
			return closeErr
		}
		return true, release, nil

	case err == unix.EWOULDBLOCK:
		return false, f.Close, nil

	default:
		f.Close()
		return false, nil, err
	}
}
