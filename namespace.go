package vaultfs

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// ObjectKind is the result of resolving a path
type ObjectKind int

const (
	KindNone ObjectKind = iota
	KindFolder
	KindFile
)

// String returns the string representation of the kind
func (k ObjectKind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	default:
		return "none"
	}
}

// Namespace maps slash paths onto store objects. Paths passed in are
// already clean; callers hold the facade lock.
type Namespace struct {
	s *objectStore
}

func newNamespace(s *objectStore) *Namespace {
	return &Namespace{s: s}
}

// Resolve returns the kind and id of the object at p, KindNone if absent
func (n *Namespace) Resolve(p string) (ObjectKind, uint64) {
	o := n.s.lookup(p)
	switch {
	case o == nil:
		return KindNone, 0
	case o.dir:
		return KindFolder, o.id
	default:
		return KindFile, o.id
	}
}

// Create adds a folder or empty file at p and bumps the matching counter
func (n *Namespace) Create(p string, kind ObjectKind, flags uint32, creator uint64) (uint64, error) {
	if kind != KindFolder && kind != KindFile {
		return 0, NewValidationError("kind", kind, "unknown object kind")
	}
	parentPath, name := splitPath(p)
	parent := n.s.lookup(parentPath)
	if parent == nil || !parent.dir {
		return 0, newPathError("create", p, ErrNotFound)
	}
	if _, exists := parent.children[name]; exists {
		return 0, newPathError("create", p, ErrDuplicate)
	}

	now := time.Now()
	o := &object{
		parent: parent.id,
		name:   name,
		dir:    kind == KindFolder,
		attr: Attributes{
			Flags:     flags &^ AttrDirectory,
			CreatorID: creator,
			Created:   now,
			Accessed:  now,
			Written:   now,
		},
	}
	if o.dir {
		o.attr.Flags |= AttrDirectory
		o.children = make(map[string]uint64)
	} else if o.attr.Flags == 0 {
		o.attr.Flags = AttrNormal
	}

	err := n.s.update(func(tx *txn) error {
		s := tx.s
		o.id = s.nextID
		s.nextID++
		s.objects[o.id] = o
		parent.children[name] = o.id
		if o.dir {
			s.dirs++
		} else {
			s.files++
		}
		tx.onRollback(func() {
			s.nextID--
			delete(s.objects, o.id)
			delete(parent.children, name)
			if o.dir {
				s.dirs--
			} else {
				s.files--
			}
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return o.id, nil
}

// Move renames the object at oldPath to newPath. Files and folders both move;
// a folder cannot move below itself.
func (n *Namespace) Move(oldPath, newPath string) error {
	return n.move(oldPath, newPath, false)
}

// Replace is Move that first removes a file already at newPath. Both happen
// in one commit.
func (n *Namespace) Replace(oldPath, newPath string) error {
	return n.move(oldPath, newPath, true)
}

func (n *Namespace) move(oldPath, newPath string, replace bool) error {
	o := n.s.lookup(oldPath)
	if o == nil {
		return newPathError("move", oldPath, ErrNotFound)
	}
	target := n.s.lookup(newPath)
	if target != nil {
		switch {
		case replace && target == o:
			return nil
		case !replace || target.dir || o.dir:
			return newPathError("move", newPath, ErrDuplicate)
		}
	}
	newParentPath, newName := splitPath(newPath)
	newParent := n.s.lookup(newParentPath)
	if newParent == nil || !newParent.dir {
		return newPathError("move", newPath, ErrNotFound)
	}
	if o.dir && isWithin(newPath, oldPath) {
		return newPathError("move", newPath, ErrInvalidParam)
	}

	oldParent := n.s.objects[o.parent]
	oldName := o.name
	return n.s.update(func(tx *txn) error {
		s := tx.s
		if target != nil {
			freeBefore := slices.Clone(s.free)
			delete(newParent.children, newName)
			delete(s.objects, target.id)
			s.files--
			s.releaseChunks(target.chunks)
			tx.onRollback(func() {
				s.free = freeBefore
				newParent.children[newName] = target.id
				s.objects[target.id] = target
				s.files++
			})
		}
		delete(oldParent.children, oldName)
		newParent.children[newName] = o.id
		o.parent = newParent.id
		o.name = newName
		tx.onRollback(func() {
			delete(newParent.children, newName)
			oldParent.children[oldName] = o.id
			o.parent = oldParent.id
			o.name = oldName
		})
		return nil
	})
}

// Delete removes the object at p. Non-empty folders are ErrInUse.
func (n *Namespace) Delete(p string) error {
	o := n.s.lookup(p)
	if o == nil || o.id == rootID {
		return newPathError("delete", p, ErrNotFound)
	}
	if o.dir && len(o.children) > 0 {
		return newPathError("delete", p, ErrInUse)
	}

	parent := n.s.objects[o.parent]
	return n.s.update(func(tx *txn) error {
		s := tx.s
		freeBefore := slices.Clone(s.free)
		delete(parent.children, o.name)
		delete(s.objects, o.id)
		if o.dir {
			s.dirs--
		} else {
			s.files--
		}
		s.releaseChunks(o.chunks)
		tx.onRollback(func() {
			s.free = freeBefore
			parent.children[o.name] = o.id
			s.objects[o.id] = o
			if o.dir {
				s.dirs++
			} else {
				s.files++
			}
		})
		return nil
	})
}

// List returns the immediate children of folder p sorted by name
func (n *Namespace) List(p string) ([]DirEntry, error) {
	o := n.s.lookup(p)
	if o == nil {
		return nil, newPathError("list", p, ErrNotFound)
	}
	if !o.dir {
		return nil, newPathError("list", p, ErrInvalidParam)
	}

	names := slices.SortedFunc(maps.Keys(o.children), strings.Compare)
	entries := make([]DirEntry, 0, len(names))
	for _, name := range names {
		child := n.s.objects[o.children[name]]
		entries = append(entries, DirEntry{Name: name, Attributes: child.attr})
	}
	return entries, nil
}

// GetAttributes returns the attribute record of p
func (n *Namespace) GetAttributes(p string) (Attributes, error) {
	o := n.s.lookup(p)
	if o == nil {
		return Attributes{}, newPathError("getattr", p, ErrNotFound)
	}
	return o.attr, nil
}

// SetAttributes writes the fields of a selected by mask. The directory flag
// and the size are not writable.
func (n *Namespace) SetAttributes(p string, a Attributes, mask AttrMask) error {
	o := n.s.lookup(p)
	if o == nil {
		return newPathError("setattr", p, ErrNotFound)
	}

	prev := o.attr
	return n.s.update(func(tx *txn) error {
		if mask&SetFlags != 0 {
			o.attr.Flags = a.Flags&^AttrDirectory | prev.Flags&AttrDirectory
		}
		if mask&SetCreated != 0 {
			o.attr.Created = a.Created
		}
		if mask&SetAccessed != 0 {
			o.attr.Accessed = a.Accessed
		}
		if mask&SetWritten != 0 {
			o.attr.Written = a.Written
		}
		tx.onRollback(func() { o.attr = prev })
		return nil
	})
}

// Truncate sets the size of the file object id and persists the change
func (n *Namespace) Truncate(id uint64, size int64) error {
	o, ok := n.s.objects[id]
	if !ok || o.dir {
		return newPathError("truncate", "", ErrNotFound)
	}

	prevAttr := o.attr
	prevChunks := slices.Clone(o.chunks)
	return n.s.update(func(tx *txn) error {
		s := tx.s
		freeBefore := slices.Clone(s.free)
		tx.onRollback(func() {
			s.free = freeBefore
			o.attr = prevAttr
			o.chunks = prevChunks
		})
		return s.truncateObject(o, size)
	})
}
