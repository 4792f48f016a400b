package vaultfs

import (
	"errors"
	"io"
	"io/fs"
	"os"
)

// Device is the byte-addressable backing store of a container.
// *os.File and absfs.File both satisfy it.
type Device interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Truncate(size int64) error
	Sync() error
	Stat() (os.FileInfo, error)
}

// createDevice creates a new backing file; an existing file is ErrDuplicate
func createDevice(cfg *Config, path string) (Device, error) {
	if cfg.FileSystem != nil {
		if _, err := cfg.FileSystem.Stat(path); err == nil {
			return nil, newPathError("create", path, ErrDuplicate)
		}
		f, err := cfg.FileSystem.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
		if err != nil {
			return nil, NewIOError("open", path, err)
		}
		return f, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, newPathError("create", path, ErrDuplicate)
		}
		return nil, NewIOError("open", path, err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return f, nil
}

// openDevice opens an existing backing file for read/write
func openDevice(cfg *Config, path string) (Device, error) {
	if cfg.FileSystem != nil {
		f, err := cfg.FileSystem.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, newPathError("open", path, ErrNotFound)
			}
			return nil, NewIOError("open", path, err)
		}
		return f, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newPathError("open", path, ErrNotFound)
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, newPathError("open", path, ErrAccessDenied)
		}
		return nil, NewIOError("open", path, err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// removeDevice deletes a backing file left behind by a failed Create
func removeDevice(cfg *Config, path string) {
	if cfg.FileSystem != nil {
		cfg.FileSystem.Remove(path)
		return
	}
	os.Remove(path)
}
