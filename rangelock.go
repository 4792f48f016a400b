package vaultfs

// rangeLock is an advisory lock on [off, off+n) held by a user handle
type rangeLock struct {
	off       int64
	n         int64
	exclusive bool
	owner     Handle
}

func (r rangeLock) overlaps(off, n int64) bool {
	return off < r.off+r.n && r.off < off+n
}

// rangeLocks is the lock table of one RealHandle. It is consulted only by
// FileLock and FileUnlock, never by reads or writes.
type rangeLocks []rangeLock

// lock adds a lock unless it conflicts: an overlapping lock conflicts when
// either side is exclusive.
func (l *rangeLocks) lock(owner Handle, off, n int64, exclusive bool) error {
	for _, r := range *l {
		if r.overlaps(off, n) && (exclusive || r.exclusive) {
			return ErrInUse
		}
	}
	*l = append(*l, rangeLock{off: off, n: n, exclusive: exclusive, owner: owner})
	return nil
}

// unlock removes the lock owner holds on exactly [off, off+n)
func (l *rangeLocks) unlock(owner Handle, off, n int64) error {
	for i, r := range *l {
		if r.owner == owner && r.off == off && r.n == n {
			*l = append((*l)[:i], (*l)[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// release drops every lock held by owner
func (l *rangeLocks) release(owner Handle) {
	kept := (*l)[:0]
	for _, r := range *l {
		if r.owner != owner {
			kept = append(kept, r)
		}
	}
	*l = kept
}
