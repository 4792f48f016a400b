package vaultfs

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// VirtualFS is an encrypted single-file container exposing a hierarchical
// namespace with share-mode file handles. All methods are safe for
// concurrent use; one RWMutex guards the container state.
type VirtualFS struct {
	mu   sync.RWMutex
	refs atomic.Int64

	cfg *Config
	log *log.Logger

	path    string
	dev     Device
	tr      *BlockTranslator
	keys    *KeyManager
	store   *objectStore
	ns      *Namespace
	handles *HandleManager
}

// New creates a closed VirtualFS holding one reference. A nil config
// selects DefaultConfig.
func New(cfg *Config) (*VirtualFS, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = discardLogger()
	}

	v := &VirtualFS{cfg: cfg, log: logger}
	v.refs.Store(1)
	return v, nil
}

// AddRef takes another reference to v
func (v *VirtualFS) AddRef() {
	v.refs.Add(1)
}

// Release drops a reference. The last release closes the container; extra
// releases are no-ops.
func (v *VirtualFS) Release() error {
	n := v.refs.Add(-1)
	if n > 0 {
		return nil
	}
	if n < 0 {
		v.refs.Store(0)
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.store == nil {
		return nil
	}
	return v.closeLocked()
}

// Create formats a new container file at path and opens it. An existing file
// is ErrDuplicate. If v is open it is closed first.
func (v *VirtualFS) Create(path string, opts *CreateOptions) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := opts.Validate(); err != nil {
		return err
	}
	if len([]rune(filepath.Base(path))) < MinNameLen {
		return NewValidationError("path", path, "container file name is too short")
	}
	if v.store != nil {
		if err := v.closeLocked(); err != nil {
			v.log.Warn("close before create failed", "path", v.path, "err", err)
		}
	}

	keys, err := newKeyManager(opts, v.cfg.Parallel)
	if err != nil {
		return err
	}
	dev, err := createDevice(v.cfg, path)
	if err != nil {
		keys.Wipe()
		return err
	}

	fail := func(err error) error {
		keys.Wipe()
		dev.Close()
		removeDevice(v.cfg, path)
		v.log.Error("create failed", "path", path, "err", err)
		return err
	}

	bs := opts.blockSize()
	region, err := keys.Header().Marshal(fillRandom)
	if err != nil {
		return fail(err)
	}
	if _, err := dev.WriteAt(region, 0); err != nil {
		return fail(NewIOError("write", path, err))
	}

	tr, err := NewBlockTranslator(dev, int64(bs), bs, v.cfg.ScratchSize, keys.Hooks(bs))
	if err != nil {
		return fail(err)
	}
	store, err := formatStore(tr, opts.Name, v.log)
	if err != nil {
		return fail(err)
	}
	if opts.InitialBlocks > 0 {
		want := store.chunkSize + int64(opts.InitialBlocks)*int64(bs)
		if want > tr.Size() {
			if err := tr.Truncate(want); err != nil {
				return fail(err)
			}
		}
	}
	if err := dev.Sync(); err != nil {
		return fail(NewIOError("sync", path, err))
	}

	v.install(path, dev, tr, keys, store)
	v.log.Info("container created", "path", path, "name", opts.Name,
		"block_size", bs, "encrypted", keys.Header().Encrypted(),
		"data_cipher", CipherModeName(keys.Header().DataCipher.Mode))
	return nil
}

// Open opens an existing container. A wrong password is ErrWrongPassword and
// leaves v closed. If v is open it is closed first.
func (v *VirtualFS) Open(path string, password []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len([]rune(filepath.Base(path))) < MinNameLen {
		return NewValidationError("path", path, "container file name is too short")
	}
	if v.store != nil {
		if err := v.closeLocked(); err != nil {
			v.log.Warn("close before open failed", "path", v.path, "err", err)
		}
	}

	dev, err := openDevice(v.cfg, path)
	if err != nil {
		return err
	}

	raw := make([]byte, HeaderSize)
	if _, err := dev.ReadAt(raw, 0); err != nil {
		dev.Close()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrCorruptHeader
		}
		return NewIOError("read", path, err)
	}
	h := &Header{}
	if _, err := h.ReadFrom(bytes.NewReader(raw)); err != nil {
		dev.Close()
		return err
	}

	keys, err := openKeyManager(h, password, v.cfg.Parallel)
	if err != nil {
		dev.Close()
		if errors.Is(err, ErrWrongPassword) {
			v.log.Warn("wrong password", "path", path)
		}
		return err
	}

	bs := int(h.BlockSize)
	tr, err := NewBlockTranslator(dev, int64(bs), bs, v.cfg.ScratchSize, keys.Hooks(bs))
	if err != nil {
		keys.Wipe()
		dev.Close()
		return err
	}
	store, err := loadStore(tr, v.log)
	if err != nil {
		keys.Wipe()
		dev.Close()
		v.log.Error("cannot load catalog", "path", path, "err", err)
		return err
	}

	v.install(path, dev, tr, keys, store)
	v.log.Info("container opened", "path", path, "name", store.name, "generation", store.generation)
	return nil
}

func (v *VirtualFS) install(path string, dev Device, tr *BlockTranslator, keys *KeyManager, store *objectStore) {
	v.path = path
	v.dev = dev
	v.tr = tr
	v.keys = keys
	v.store = store
	v.ns = newNamespace(store)
	v.handles = NewHandleManager()
}

func fillRandom(b []byte) error {
	_, err := rand.Read(b)
	return err
}

// Close flushes the catalog, closes every handle and the backing file and
// wipes the key material.
func (v *VirtualFS) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.store == nil {
		return ErrNotReady
	}
	return v.closeLocked()
}

func (v *VirtualFS) closeLocked() error {
	var errs []error
	if n := v.handles.CloseAll(0); n > 0 {
		v.log.Debug("closed open handles", "count", n)
	}
	if v.store.dirty {
		errs = append(errs, v.store.commit())
	}
	if err := v.dev.Sync(); err != nil {
		errs = append(errs, NewIOError("sync", v.path, err))
	}
	if err := v.dev.Close(); err != nil {
		errs = append(errs, NewIOError("close", v.path, err))
	}
	v.keys.Wipe()
	v.log.Info("container closed", "path", v.path)

	v.path = ""
	v.dev, v.tr, v.keys = nil, nil, nil
	v.store, v.ns, v.handles = nil, nil, nil
	return errors.Join(errs...)
}

// IsOpen reports whether a container is open
func (v *VirtualFS) IsOpen() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.store != nil
}

// GetMeta returns one container metadata field. Raw key fields are
// ErrSecurityRestricted.
func (v *VirtualFS) GetMeta(field MetaField) (any, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.store == nil {
		return nil, ErrNotReady
	}

	h := v.keys.Header()
	switch field {
	case MetaVersion:
		return h.Version, nil
	case MetaName:
		return v.store.name, nil
	case MetaBlockSize:
		return h.BlockSize, nil
	case MetaFilesCount:
		return v.store.files, nil
	case MetaDirCount:
		return v.store.dirs, nil
	case MetaUsedBlocks:
		used, _, _ := v.store.stats()
		return used, nil
	case MetaFreeBlocks:
		_, free, _ := v.store.stats()
		return free, nil
	case MetaUsedBytes:
		_, _, n := v.store.stats()
		return n, nil
	case MetaIsEncrypted:
		return h.Encrypted(), nil
	case MetaKeyMode:
		return h.KeyCipher.Mode, nil
	case MetaKeyParamA:
		return h.KeyCipher.ParamA, nil
	case MetaKeyParamB:
		return h.KeyCipher.ParamB, nil
	case MetaDataMode:
		return h.DataCipher.Mode, nil
	case MetaDataParamA:
		return h.DataCipher.ParamA, nil
	case MetaDataParamB:
		return h.DataCipher.ParamB, nil
	case MetaVolumeID:
		return v.store.volumeID.String(), nil
	case MetaMasterKey, MetaKeyHash, MetaIV:
		return nil, ErrSecurityRestricted
	}
	return nil, NewValidationError("field", field, "unknown metadata field")
}

// SetMeta writes a metadata field. Only MetaName is writable.
func (v *VirtualFS) SetMeta(field MetaField, value any) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.store == nil {
		return ErrNotReady
	}
	if field != MetaName {
		if _, known := metaFieldNames[field]; !known {
			return NewValidationError("field", field, "unknown metadata field")
		}
		return ErrAccessDenied
	}

	name, ok := value.(string)
	if !ok {
		return NewValidationError("name", value, "name must be a string")
	}
	if len([]rune(name)) < MinNameLen {
		return NewValidationError("name", name, "container name is too short")
	}

	s := v.store
	prev := s.name
	return s.update(func(tx *txn) error {
		s.name = name
		tx.onRollback(func() { s.name = prev })
		return nil
	})
}

// ChangeAccessPassword re-encrypts the key envelope under password and
// rewrites the header. Unencrypted containers are ErrNotEncrypted.
func (v *VirtualFS) ChangeAccessPassword(password []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.store == nil {
		return ErrNotReady
	}

	next, err := v.keys.Rekey(password)
	if err != nil {
		return err
	}
	region, err := next.Marshal(fillRandom)
	if err != nil {
		return err
	}
	if _, err := v.dev.WriteAt(region, 0); err != nil {
		return NewIOError("write", v.path, err)
	}
	if err := v.dev.Sync(); err != nil {
		return NewIOError("sync", v.path, err)
	}
	v.keys.Commit(next)
	v.log.Info("access password changed", "path", v.path)
	return nil
}

// FileCreate opens or creates the file at path and returns a handle.
// creator tags the handle for FilesCloseAll.
func (v *VirtualFS) FileCreate(path string, creator uint64, access AccessMode, share ShareMode, disposition Disposition, flags uint32) (Handle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.store == nil {
		return InvalidHandle, ErrNotReady
	}

	p, err := CleanPath(path)
	if err != nil {
		return InvalidHandle, err
	}
	h, err := v.handles.Acquire(v.ns, p, creator, access, share, disposition, flags)
	if err != nil {
		v.log.Debug("file open refused", "path", p, "disposition", disposition, "err", err)
		return InvalidHandle, err
	}
	v.log.Debug("file opened", "path", p, "handle", h, "disposition", disposition)
	return h, nil
}

// file returns the user handle h and its file object
func (v *VirtualFS) file(h Handle) (*userHandle, *realHandle, *object, error) {
	if v.store == nil {
		return nil, nil, nil, ErrNotReady
	}
	uh, rh, err := v.handles.lookup(h)
	if err != nil {
		return nil, nil, nil, err
	}
	o, ok := v.store.objects[rh.id]
	if !ok {
		return nil, nil, nil, newPathError("file", uh.path, ErrNotFound)
	}
	return uh, rh, o, nil
}

// FileRead reads into p from offset off of the file open as h. Reading past
// the end returns io.EOF.
func (v *VirtualFS) FileRead(h Handle, p []byte, off int64) (int, error) {
	return v.transfer(h, p, off, ioOp{advance: true})
}

// FileWrite writes p at offset off of the file open as h
func (v *VirtualFS) FileWrite(h Handle, p []byte, off int64) (int, error) {
	return v.transfer(h, p, off, ioOp{write: true, advance: true})
}

// ioOp selects how transfer treats the offset and cursor
type ioOp struct {
	write    bool
	atCursor bool // ignore off and use the handle cursor
	advance  bool // move the cursor past the transferred bytes
}

func (v *VirtualFS) transfer(h Handle, p []byte, off int64, op ioOp) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	uh, _, o, err := v.file(h)
	if err != nil {
		return 0, err
	}
	if op.atCursor {
		off = uh.cursor
	}

	var n int
	if op.write {
		if !uh.access.canWrite() {
			return 0, newPathError("write", uh.path, ErrAccessDenied)
		}
		n, err = v.store.writeObject(o, p, off)
	} else {
		if !uh.access.canRead() {
			return 0, newPathError("read", uh.path, ErrAccessDenied)
		}
		n, err = v.store.readObject(o, p, off)
	}
	if op.advance && n > 0 {
		uh.cursor = off + int64(n)
	}
	return n, err
}

// FileSeek moves the cursor of h and returns the new position
func (v *VirtualFS) FileSeek(h Handle, offset int64, whence int) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	uh, _, o, err := v.file(h)
	if err != nil {
		return 0, err
	}

	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = uh.cursor + offset
	case io.SeekEnd:
		pos = o.attr.Size + offset
	default:
		return 0, NewValidationError("whence", whence, "invalid whence")
	}
	if err := ValidateOffset(pos, "offset"); err != nil {
		return 0, err
	}
	uh.cursor = pos
	return pos, nil
}

// FileTruncate sets the size of the file open as h
func (v *VirtualFS) FileTruncate(h Handle, size int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	uh, rh, _, err := v.file(h)
	if err != nil {
		return err
	}
	if !uh.access.canWrite() {
		return newPathError("truncate", uh.path, ErrAccessDenied)
	}
	return v.ns.Truncate(rh.id, size)
}

// FileFlush persists pending catalog changes and syncs the backing file
func (v *VirtualFS) FileFlush(h Handle) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, _, _, err := v.file(h); err != nil {
		return err
	}
	return v.flushLocked()
}

func (v *VirtualFS) flushLocked() error {
	if v.store.dirty {
		if err := v.store.commit(); err != nil {
			return err
		}
	}
	if err := v.tr.Sync(); err != nil {
		return NewIOError("sync", v.path, err)
	}
	return nil
}

// FileClose closes handle h, persisting pending changes
func (v *VirtualFS) FileClose(h Handle) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.store == nil {
		return ErrNotReady
	}

	if err := v.handles.Release(h); err != nil {
		return err
	}
	if v.store.dirty {
		return v.store.commit()
	}
	return nil
}

// FilesCloseAll closes every handle opened by creator; creator 0 closes all
func (v *VirtualFS) FilesCloseAll(creator uint64) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.store == nil {
		return 0, ErrNotReady
	}

	n := v.handles.CloseAll(creator)
	if v.store.dirty {
		return n, v.store.commit()
	}
	return n, nil
}

// FileLock takes an advisory lock on [off, off+n) of the file open as h.
// Locks do not restrict FileRead or FileWrite.
func (v *VirtualFS) FileLock(h Handle, off, n int64, exclusive bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	uh, rh, _, err := v.file(h)
	if err != nil {
		return err
	}
	if err := validateRange(off, n); err != nil {
		return err
	}
	if err := rh.locks.lock(h, off, n, exclusive); err != nil {
		return newPathError("lock", uh.path, err)
	}
	return nil
}

// FileUnlock releases a lock taken with FileLock on exactly [off, off+n)
func (v *VirtualFS) FileUnlock(h Handle, off, n int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	uh, rh, _, err := v.file(h)
	if err != nil {
		return err
	}
	if err := validateRange(off, n); err != nil {
		return err
	}
	if err := rh.locks.unlock(h, off, n); err != nil {
		return newPathError("unlock", uh.path, err)
	}
	return nil
}

func validateRange(off, n int64) error {
	if err := ValidateOffset(off, "offset"); err != nil {
		return err
	}
	if n <= 0 {
		return NewValidationError("length", n, "lock length must be positive")
	}
	return nil
}

// Move renames a file or folder. Paths with open handles are ErrInUse.
func (v *VirtualFS) Move(oldPath, newPath string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.store == nil {
		return ErrNotReady
	}

	from, err := CleanPath(oldPath)
	if err != nil {
		return err
	}
	to, err := CleanPath(newPath)
	if err != nil {
		return err
	}
	if v.handles.inUse(from) {
		return newPathError("move", from, ErrInUse)
	}
	return v.ns.Move(from, to)
}

// Replace moves oldPath over the file at newPath, or to newPath when nothing
// is there. Either path having open handles is ErrInUse.
func (v *VirtualFS) Replace(oldPath, newPath string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.store == nil {
		return ErrNotReady
	}

	from, err := CleanPath(oldPath)
	if err != nil {
		return err
	}
	to, err := CleanPath(newPath)
	if err != nil {
		return err
	}
	if v.handles.inUse(from) {
		return newPathError("move", from, ErrInUse)
	}
	if v.handles.inUse(to) {
		return newPathError("move", to, ErrInUse)
	}
	return v.ns.Replace(from, to)
}

// Delete removes a file or an empty folder. Open files are ErrInUse.
func (v *VirtualFS) Delete(path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.store == nil {
		return ErrNotReady
	}

	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	if v.handles.inUse(p) {
		return newPathError("delete", p, ErrInUse)
	}
	return v.ns.Delete(p)
}

// GetAttributes returns the attributes of a file or folder
func (v *VirtualFS) GetAttributes(path string) (Attributes, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.store == nil {
		return Attributes{}, ErrNotReady
	}

	p, err := cleanFolderPath(path)
	if err != nil {
		return Attributes{}, err
	}
	return v.ns.GetAttributes(p)
}

// SetAttributes writes the attribute fields selected by mask
func (v *VirtualFS) SetAttributes(path string, a Attributes, mask AttrMask) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.store == nil {
		return ErrNotReady
	}

	p, err := cleanFolderPath(path)
	if err != nil {
		return err
	}
	return v.ns.SetAttributes(p, a, mask)
}

// FolderCreate creates a folder. Its parent must exist.
func (v *VirtualFS) FolderCreate(path string, creator uint64, flags uint32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.store == nil {
		return ErrNotReady
	}

	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	_, err = v.ns.Create(p, KindFolder, flags, creator)
	return err
}

// FolderList returns the immediate children of a folder sorted by name
func (v *VirtualFS) FolderList(path string) ([]DirEntry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.store == nil {
		return nil, ErrNotReady
	}

	p, err := cleanFolderPath(path)
	if err != nil {
		return nil, err
	}
	return v.ns.List(p)
}
