//go:build !unix

package vaultfs

import "os"

// lockFile is a no-op where flock is unavailable
func lockFile(f *os.File) error {
	return nil
}
