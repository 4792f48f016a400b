package vaultfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/absfs/absfs"
)

// Filer exposes an open VirtualFS as an absfs.Filer. Every handle it opens
// is tagged with its creator id, so Close releases exactly its own files.
type Filer struct {
	v       *VirtualFS
	creator uint64
}

var (
	_ absfs.Filer = (*Filer)(nil)
	_ absfs.File  = (*File)(nil)
)

// NewFiler returns a Filer over v opening handles as creator
func NewFiler(v *VirtualFS, creator uint64) *Filer {
	return &Filer{v: v, creator: creator}
}

// FileSystem returns f extended with a working directory and the helper
// methods of absfs.FileSystem
func (f *Filer) FileSystem() absfs.FileSystem {
	return absfs.ExtendFiler(f)
}

// Close closes every handle opened through f
func (f *Filer) Close() error {
	_, err := f.v.FilesCloseAll(f.creator)
	return err
}

// fsError converts err to an *fs.PathError. Errors with an io/fs
// counterpart carry the bare io/fs sentinel so os.IsNotExist and friends
// work; the rest keep the package error.
func fsError(op, name string, err error) error {
	switch StatusOf(err) {
	case StatusNotFound:
		err = fs.ErrNotExist
	case StatusDuplicate:
		err = fs.ErrExist
	case StatusAccessDenied, StatusSecurityRestricted:
		err = fs.ErrPermission
	case StatusInvalidParam:
		err = fs.ErrInvalid
	case StatusNotReady:
		err = fs.ErrClosed
	default:
		var pe *PathError
		if errors.As(err, &pe) {
			err = pe.Err
		}
	}
	return &fs.PathError{Op: op, Path: name, Err: err}
}

// openMode maps os.OpenFile flags onto access and disposition
func openMode(flag int) (AccessMode, Disposition) {
	var access AccessMode
	switch flag & (os.O_RDONLY | os.O_WRONLY | os.O_RDWR) {
	case os.O_WRONLY:
		access = AccessWrite
	case os.O_RDWR:
		access = AccessReadWrite
	default:
		access = AccessRead
	}

	create := flag&os.O_CREATE != 0
	trunc := flag&os.O_TRUNC != 0
	switch {
	case create && flag&os.O_EXCL != 0:
		return access, CreateNew
	case create && trunc:
		return access, CreateAlways
	case create:
		return access, OpenAlways
	case trunc:
		return access, TruncateExisting
	}
	return access, OpenExisting
}

// OpenFile opens a file with the specified flags. Folders open read-only
// for listing. perm is ignored; files are created with normal attributes.
func (f *Filer) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	access, disposition := openMode(flag)

	if fi, err := f.Stat(name); err == nil && fi.IsDir() {
		if access.canWrite() || disposition == CreateNew {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
		}
		p, _ := cleanFolderPath(name)
		return &dirFile{v: f.v, name: p, info: fi}, nil
	}

	h, err := f.v.FileCreate(name, f.creator, access, ShareRead|ShareWrite|ShareDelete, disposition, 0)
	if err != nil {
		return nil, fsError("open", name, err)
	}
	p, _ := CleanPath(name)
	file := &File{v: f.v, h: h, name: p}
	if flag&os.O_APPEND != 0 {
		if _, err := file.Seek(0, io.SeekEnd); err != nil {
			file.Close()
			return nil, fsError("open", name, err)
		}
	}
	return file, nil
}

// Mkdir creates a folder
func (f *Filer) Mkdir(name string, perm os.FileMode) error {
	if err := f.v.FolderCreate(name, f.creator, 0); err != nil {
		return fsError("mkdir", name, err)
	}
	return nil
}

// Remove removes a file or empty folder
func (f *Filer) Remove(name string) error {
	if err := f.v.Delete(name); err != nil {
		return fsError("remove", name, err)
	}
	return nil
}

// Rename moves oldpath to newpath, replacing newpath if it is a file
func (f *Filer) Rename(oldpath, newpath string) error {
	if err := f.v.Replace(oldpath, newpath); err != nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fsError("rename", oldpath, err)}
	}
	return nil
}

// Stat returns file information
func (f *Filer) Stat(name string) (os.FileInfo, error) {
	a, err := f.v.GetAttributes(name)
	if err != nil {
		return nil, fsError("stat", name, err)
	}
	p, _ := cleanFolderPath(name)
	return newFileInfo(p, a), nil
}

// Chmod maps the owner write bit onto the read-only attribute
func (f *Filer) Chmod(name string, mode os.FileMode) error {
	a, err := f.v.GetAttributes(name)
	if err != nil {
		return fsError("chmod", name, err)
	}
	if mode&0o200 == 0 {
		a.Flags |= AttrReadOnly
	} else {
		a.Flags &^= AttrReadOnly
	}
	if err := f.v.SetAttributes(name, a, SetFlags); err != nil {
		return fsError("chmod", name, err)
	}
	return nil
}

// Chtimes changes the access and modification times of a file
func (f *Filer) Chtimes(name string, atime time.Time, mtime time.Time) error {
	a := Attributes{Accessed: atime, Written: mtime}
	if err := f.v.SetAttributes(name, a, SetAccessed|SetWritten); err != nil {
		return fsError("chtimes", name, err)
	}
	return nil
}

// Chown is not supported; objects carry a creator id instead of owners
func (f *Filer) Chown(name string, uid, gid int) error {
	return &fs.PathError{Op: "chown", Path: name, Err: errors.ErrUnsupported}
}

// ReadDir lists a folder sorted by name
func (f *Filer) ReadDir(name string) ([]fs.DirEntry, error) {
	entries, err := f.v.FolderList(name)
	if err != nil {
		return nil, fsError("readdir", name, err)
	}
	return dirEntries(entries), nil
}

// ReadFile reads the whole file
func (f *Filer) ReadFile(name string) ([]byte, error) {
	file, err := f.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// Sub returns a read-only fs.FS rooted at dir
func (f *Filer) Sub(dir string) (fs.FS, error) {
	return absfs.FilerToFS(f, dir)
}

func dirEntries(entries []DirEntry) []fs.DirEntry {
	out := make([]fs.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = fs.FileInfoToDirEntry(&fileInfo{name: e.Name, attr: e.Attributes})
	}
	return out
}

// errNotDir is returned by directory reads on a regular file
var errNotDir = errors.New("not a directory")

// Readdir is not supported on files
func (f *File) Readdir(int) ([]os.FileInfo, error) {
	return nil, &fs.PathError{Op: "readdir", Path: f.name, Err: errNotDir}
}

// Readdirnames is not supported on files
func (f *File) Readdirnames(int) ([]string, error) {
	return nil, &fs.PathError{Op: "readdirnames", Path: f.name, Err: errNotDir}
}

// ReadDir is not supported on files
func (f *File) ReadDir(int) ([]fs.DirEntry, error) {
	return nil, &fs.PathError{Op: "readdir", Path: f.name, Err: errNotDir}
}

// dirFile is an open folder. The listing is taken on the first read.
type dirFile struct {
	v       *VirtualFS
	name    string
	info    os.FileInfo
	entries []DirEntry
	loaded  bool
	closed  bool
}

var _ absfs.File = (*dirFile)(nil)

func (d *dirFile) Name() string               { return d.name }
func (d *dirFile) Stat() (os.FileInfo, error) { return d.info, nil }
func (d *dirFile) Sync() error                { return nil }

func (d *dirFile) Close() error {
	if d.closed {
		return fs.ErrClosed
	}
	d.closed = true
	return nil
}

func (d *dirFile) isDir(op string) error {
	return &fs.PathError{Op: op, Path: d.name, Err: fmt.Errorf("%w: is a directory", fs.ErrInvalid)}
}

func (d *dirFile) Read([]byte) (int, error)           { return 0, d.isDir("read") }
func (d *dirFile) Write([]byte) (int, error)          { return 0, d.isDir("write") }
func (d *dirFile) ReadAt([]byte, int64) (int, error)  { return 0, d.isDir("read") }
func (d *dirFile) WriteAt([]byte, int64) (int, error) { return 0, d.isDir("write") }
func (d *dirFile) WriteString(string) (int, error)    { return 0, d.isDir("write") }
func (d *dirFile) Truncate(int64) error               { return d.isDir("truncate") }
func (d *dirFile) Seek(int64, int) (int64, error)     { return 0, d.isDir("seek") }

// next returns up to n entries, all remaining when n <= 0
func (d *dirFile) next(n int) ([]DirEntry, error) {
	if d.closed {
		return nil, fs.ErrClosed
	}
	if !d.loaded {
		entries, err := d.v.FolderList(d.name)
		if err != nil {
			return nil, fsError("readdir", d.name, err)
		}
		d.entries, d.loaded = entries, true
	}
	if n <= 0 || n > len(d.entries) {
		n = len(d.entries)
	}
	if n == 0 && len(d.entries) == 0 {
		return nil, nil
	}
	out := d.entries[:n]
	d.entries = d.entries[n:]
	return out, nil
}

func (d *dirFile) ReadDir(n int) ([]fs.DirEntry, error) {
	entries, err := d.next(n)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entries) == 0 {
		return nil, io.EOF
	}
	return dirEntries(entries), nil
}

func (d *dirFile) Readdir(n int) ([]os.FileInfo, error) {
	entries, err := d.next(n)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entries) == 0 {
		return nil, io.EOF
	}
	out := make([]os.FileInfo, len(entries))
	for i, e := range entries {
		out[i] = &fileInfo{name: e.Name, attr: e.Attributes}
	}
	return out, nil
}

func (d *dirFile) Readdirnames(n int) ([]string, error) {
	entries, err := d.next(n)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entries) == 0 {
		return nil, io.EOF
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}
