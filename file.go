package vaultfs

import (
	"io"
	"io/fs"
	"os"
	"path"
	"time"
)

// File is an io.ReadWriteSeeker over a handle of a VirtualFS. Read, Write
// and Seek share the handle cursor; ReadAt and WriteAt leave it alone.
type File struct {
	v    *VirtualFS
	h    Handle
	name string
}

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.ReaderAt        = (*File)(nil)
	_ io.WriterAt        = (*File)(nil)
	_ io.Closer          = (*File)(nil)
)

// OpenFile opens the file at name and wraps the handle in a File
func (v *VirtualFS) OpenFile(name string, access AccessMode, share ShareMode, disposition Disposition) (*File, error) {
	h, err := v.FileCreate(name, 0, access, share, disposition, 0)
	if err != nil {
		return nil, err
	}
	p, _ := CleanPath(name)
	return &File{v: v, h: h, name: p}, nil
}

// Handle returns the underlying handle
func (f *File) Handle() Handle {
	return f.h
}

// Name returns the path the file was opened with
func (f *File) Name() string {
	return f.name
}

// Read reads from the cursor
func (f *File) Read(p []byte) (int, error) {
	return f.v.transfer(f.h, p, 0, ioOp{atCursor: true, advance: true})
}

// Write writes at the cursor
func (f *File) Write(p []byte) (int, error) {
	return f.v.transfer(f.h, p, 0, ioOp{write: true, atCursor: true, advance: true})
}

// WriteString writes a string to the file
func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

// Seek sets the offset for the next Read or Write
func (f *File) Seek(offset int64, whence int) (int64, error) {
	return f.v.FileSeek(f.h, offset, whence)
}

// ReadAt reads at off without moving the cursor
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.v.transfer(f.h, p, off, ioOp{})
}

// WriteAt writes at off without moving the cursor
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	return f.v.transfer(f.h, p, off, ioOp{write: true})
}

// Truncate changes the size of the file
func (f *File) Truncate(size int64) error {
	return f.v.FileTruncate(f.h, size)
}

// Sync persists pending changes
func (f *File) Sync() error {
	return f.v.FileFlush(f.h)
}

// Close closes the handle
func (f *File) Close() error {
	return f.v.FileClose(f.h)
}

// Stat returns file information
func (f *File) Stat() (os.FileInfo, error) {
	a, err := f.v.GetAttributes(f.name)
	if err != nil {
		return nil, err
	}
	return newFileInfo(f.name, a), nil
}

// fileInfo adapts Attributes to os.FileInfo
type fileInfo struct {
	name string
	attr Attributes
}

func newFileInfo(p string, a Attributes) *fileInfo {
	return &fileInfo{name: path.Base(p), attr: a}
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.attr.Size }
func (fi *fileInfo) ModTime() time.Time { return fi.attr.Written }
func (fi *fileInfo) IsDir() bool        { return fi.attr.IsDir() }
func (fi *fileInfo) Sys() any           { return fi.attr }

// Mode maps the attribute flags onto permission bits
func (fi *fileInfo) Mode() fs.FileMode {
	mode := fs.FileMode(0o644)
	if fi.attr.Flags&AttrReadOnly != 0 {
		mode = 0o444
	}
	if fi.attr.IsDir() {
		mode |= fs.ModeDir | 0o111
	}
	return mode
}
