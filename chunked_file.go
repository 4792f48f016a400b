package vaultfs

import (
	"fmt"
	"io"
	"time"
)

// File data is stored in chunks of blockSize*ChunkBlocks bytes listed in the
// object's chunk table. Byte x of a file lives in chunks[x/chunkSize] at
// offset x%chunkSize. Runs of consecutive chunk numbers are transferred with
// one translator call.

// extent is a device-contiguous piece of an object byte range
type extent struct {
	off int64 // logical object-space offset
	pos int64 // offset into the caller buffer
	n   int64
}

// extents maps [off, off+n) of o onto object-space extents. The range must be
// covered by o.chunks.
func (s *objectStore) extents(o *object, off, n int64) []extent {
	var out []extent
	for done := int64(0); done < n; {
		idx := (off + done) / s.chunkSize
		within := (off + done) % s.chunkSize
		take := min(s.chunkSize-within, n-done)
		dev := s.chunkOffset(o.chunks[idx]) + within

		if last := len(out) - 1; last >= 0 && out[last].off+out[last].n == dev {
			out[last].n += take
		} else {
			out = append(out, extent{off: dev, pos: done, n: take})
		}
		done += take
	}
	return out
}

// readObject reads from file object o at off. Reads past the size are short
// and return io.EOF.
func (s *objectStore) readObject(o *object, p []byte, off int64) (int, error) {
	if err := ValidateReadWrite(p, off); err != nil {
		return 0, err
	}
	if off >= o.attr.Size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	n := min(int64(len(p)), o.attr.Size-off)
	for _, e := range s.extents(o, off, n) {
		if _, err := s.tr.ReadAt(p[e.pos:e.pos+e.n], e.off); err != nil {
			return 0, fmt.Errorf("failed to read %s: %w", s.pathOf(o), err)
		}
	}

	o.attr.Accessed = time.Now()
	if n < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

// writeObject writes p to file object o at off, growing it as needed. A gap
// between the current size and off is zero filled.
func (s *objectStore) writeObject(o *object, p []byte, off int64) (int, error) {
	if err := ValidateReadWrite(p, off); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	if off > o.attr.Size {
		if err := s.zeroFill(o, o.attr.Size, off); err != nil {
			return 0, err
		}
	}
	if err := s.writeRange(o, p, off); err != nil {
		return 0, err
	}

	now := time.Now()
	o.attr.Written = now
	o.attr.Accessed = now
	o.attr.Flags |= AttrArchive
	return len(p), nil
}

func (s *objectStore) writeRange(o *object, p []byte, off int64) error {
	end := off + int64(len(p))
	if err := s.growChunks(o, end); err != nil {
		return err
	}
	for _, e := range s.extents(o, off, int64(len(p))) {
		if _, err := s.tr.WriteAt(p[e.pos:e.pos+e.n], e.off); err != nil {
			return fmt.Errorf("failed to write %s: %w", s.pathOf(o), err)
		}
	}
	if end > o.attr.Size {
		o.attr.Size = end
	}
	s.dirty = true
	return nil
}

// zeroFill writes zeros over [from, to) of o
func (s *objectStore) zeroFill(o *object, from, to int64) error {
	zeros := make([]byte, min(to-from, s.chunkSize))
	for pos := from; pos < to; {
		n := min(int64(len(zeros)), to-pos)
		if err := s.writeRange(o, zeros[:n], pos); err != nil {
			return err
		}
		pos += n
	}
	return nil
}

// growChunks allocates chunks until o covers size bytes
func (s *objectStore) growChunks(o *object, size int64) error {
	need := int((size + s.chunkSize - 1) / s.chunkSize)
	for len(o.chunks) < need {
		c := s.allocChunk()
		if err := s.ensureAllocated(c); err != nil {
			s.releaseChunks([]uint32{c})
			return err
		}
		o.chunks = append(o.chunks, c)
		s.dirty = true
	}
	return nil
}

// truncateObject sets the size of file object o, releasing chunks past the
// new end or zero filling up to it.
func (s *objectStore) truncateObject(o *object, size int64) error {
	if err := ValidateOffset(size, "size"); err != nil {
		return err
	}
	if size > o.attr.Size {
		return s.zeroFill(o, o.attr.Size, size)
	}

	keep := int((size + s.chunkSize - 1) / s.chunkSize)
	if keep < len(o.chunks) {
		s.releaseChunks(o.chunks[keep:])
		o.chunks = append([]uint32(nil), o.chunks[:keep]...)
	}
	if size != o.attr.Size {
		o.attr.Size = size
		o.attr.Written = time.Now()
		s.dirty = true
	}
	return nil
}
