//go:build unix

package vaultfs

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes an exclusive, non-blocking flock on the backing file.
// The lock is released when the descriptor is closed.
func lockFile(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EWOULDBLOCK) {
		return newPathError("lock", f.Name(), ErrInUse)
	}
	return NewIOError("lock", f.Name(), err)
}
