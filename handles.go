package vaultfs

import (
	"maps"
	"slices"
)

// realHandle is the shared open state of one file object
type realHandle struct {
	path    string
	id      uint64
	readers int
	writers int
	share   ShareMode
	locks   rangeLocks
}

// userHandle is one caller-level open of a realHandle
type userHandle struct {
	path    string
	cursor  int64
	creator uint64
	access  AccessMode
	share   ShareMode
}

// HandleManager tracks open files in two tiers: one realHandle per open path
// and one userHandle per FileCreate. It has no locking of its own; the
// VirtualFS lock guards every call.
type HandleManager struct {
	reals map[string]*realHandle
	users map[Handle]*userHandle
	next  Handle
}

// NewHandleManager returns an empty handle table
func NewHandleManager() *HandleManager {
	return &HandleManager{
		reals: make(map[string]*realHandle),
		users: make(map[Handle]*userHandle),
	}
}

// Acquire opens the file at p under the given disposition and returns a new
// user handle. p must be clean.
func (m *HandleManager) Acquire(ns *Namespace, p string, creator uint64, access AccessMode, share ShareMode, disposition Disposition, flags uint32) (Handle, error) {
	if err := ValidateAccess(access, share, disposition); err != nil {
		return InvalidHandle, err
	}

	kind, id := ns.Resolve(p)
	if kind == KindFolder {
		return InvalidHandle, newPathError("open", p, ErrNotFound)
	}
	exists := kind == KindFile

	switch {
	case !exists && (disposition == OpenExisting || disposition == TruncateExisting):
		return InvalidHandle, newPathError("open", p, ErrNotFound)
	case exists && disposition == CreateNew:
		return InvalidHandle, newPathError("open", p, ErrInUse)
	}
	if needsWrite(disposition, exists) && !access.canWrite() {
		return InvalidHandle, newPathError("open", p, ErrAccessDenied)
	}

	rh, shared := m.reals[p]
	if !shared {
		if !exists {
			var err error
			if id, err = ns.Create(p, KindFile, flags, creator); err != nil {
				return InvalidHandle, err
			}
		}
		rh = &realHandle{path: p, id: id, share: share}
		m.reals[p] = rh
	}

	rh.add(access, 1)
	if shared && !rh.compatible(access, share) {
		rh.add(access, -1)
		return InvalidHandle, newPathError("open", p, ErrAccessDenied)
	}

	if exists && (disposition == CreateAlways || disposition == TruncateExisting) {
		if err := ns.Truncate(rh.id, 0); err != nil {
			rh.add(access, -1)
			m.dropIfIdle(rh)
			return InvalidHandle, err
		}
	}

	if shared {
		rh.share &= share
	}
	m.next++
	h := m.next
	m.users[h] = &userHandle{path: p, creator: creator, access: access, share: share}
	return h, nil
}

// needsWrite reports whether a disposition modifies the file
func needsWrite(d Disposition, exists bool) bool {
	switch d {
	case CreateAlways, TruncateExisting:
		return true
	case OpenAlways, CreateNew:
		return !exists
	}
	return false
}

func (rh *realHandle) add(access AccessMode, delta int) {
	if access.canRead() {
		rh.readers += delta
	}
	if access.canWrite() {
		rh.writers += delta
	}
}

// compatible checks a new open against the handle's other users. Counts
// already include the new open.
func (rh *realHandle) compatible(access AccessMode, share ShareMode) bool {
	readers, writers := rh.readers, rh.writers
	if access.canRead() {
		readers--
	}
	if access.canWrite() {
		writers--
	}

	switch {
	case rh.share == ShareNone:
		return false
	case access.canWrite() && rh.share&ShareWrite == 0:
		return false
	case access.canRead() && rh.share&ShareRead == 0:
		return false
	case writers > 0 && share&ShareWrite == 0:
		return false
	case readers > 0 && share&ShareRead == 0:
		return false
	}
	return true
}

func (m *HandleManager) dropIfIdle(rh *realHandle) {
	if rh.readers == 0 && rh.writers == 0 {
		delete(m.reals, rh.path)
	}
}

// lookup returns the user handle h and its real handle
func (m *HandleManager) lookup(h Handle) (*userHandle, *realHandle, error) {
	uh, ok := m.users[h]
	if !ok {
		return nil, nil, ErrInvalidHandle
	}
	return uh, m.reals[uh.path], nil
}

// Release closes user handle h. The real handle goes away with its last user.
func (m *HandleManager) Release(h Handle) error {
	uh, rh, err := m.lookup(h)
	if err != nil {
		return err
	}
	delete(m.users, h)

	rh.add(uh.access, -1)
	rh.locks.release(h)
	rh.share = m.shareOf(rh.path)
	m.dropIfIdle(rh)
	return nil
}

// shareOf intersects the share modes of the remaining users of path
func (m *HandleManager) shareOf(path string) ShareMode {
	share := ShareRead | ShareWrite | ShareDelete
	for _, uh := range m.users {
		if uh.path == path {
			share &= uh.share
		}
	}
	return share
}

// CloseAll releases every handle opened by creator; creator 0 matches all.
// It returns the number of handles closed.
func (m *HandleManager) CloseAll(creator uint64) int {
	var closed int
	for _, h := range slices.Sorted(maps.Keys(m.users)) {
		if creator != 0 && m.users[h].creator != creator {
			continue
		}
		if m.Release(h) == nil {
			closed++
		}
	}
	return closed
}

// inUse reports whether p or anything below it is open
func (m *HandleManager) inUse(p string) bool {
	for path := range m.reals {
		if isWithin(path, p) {
			return true
		}
	}
	return false
}

// Counts returns the reader and writer counts of the real handle of p
func (m *HandleManager) Counts(p string) (readers, writers int, ok bool) {
	rh, ok := m.reals[p]
	if !ok {
		return 0, 0, false
	}
	return rh.readers, rh.writers, true
}

// Len returns the number of open user handles
func (m *HandleManager) Len() int {
	return len(m.users)
}
