package vaultfs

import (
	"errors"
	"fmt"
	"io"
)

// BlockHook transforms buf in place; off is the logical offset of buf[0] and
// is always block aligned, len(buf) is always a block multiple.
type BlockHook func(buf []byte, off int64) error

// BlockHooks are the callbacks a BlockTranslator invokes around device I/O
type BlockHooks struct {
	// FillEmpty initializes blocks that extend the allocation
	FillEmpty BlockHook
	// BeforeWrite runs immediately before blocks are written (encryption)
	BeforeWrite BlockHook
	// AfterRead runs immediately after blocks are read (decryption)
	AfterRead BlockHook
}

// BlockTranslator maps arbitrary byte ranges of the object space onto whole
// blocks of a Device. It performs no locking; callers serialize access.
type BlockTranslator struct {
	dev       Device
	base      int64 // device offset of logical offset 0
	blockSize int64
	scratch   int64 // scratch capacity, a block multiple
	eoa       int64 // logical end of allocation, a block multiple
	hooks     BlockHooks
}

// NewBlockTranslator creates a translator over dev. Logical offset 0 maps to
// device offset base. maxScratch is rounded down to a block multiple, with a
// floor of one block.
func NewBlockTranslator(dev Device, base int64, blockSize, maxScratch int, hooks BlockHooks) (*BlockTranslator, error) {
	if dev == nil {
		return nil, NewValidationError("device", nil, "device cannot be nil")
	}
	if err := ValidateBlockSize(blockSize); err != nil {
		return nil, err
	}
	if err := ValidateOffset(base, "base"); err != nil {
		return nil, err
	}
	if maxScratch <= 0 {
		maxScratch = DefaultScratchSize
	}

	bs := int64(blockSize)
	scratch := int64(maxScratch) / bs * bs
	if scratch < bs {
		scratch = bs
	}

	info, err := dev.Stat()
	if err != nil {
		return nil, NewIOError("stat", "", err)
	}
	eoa := info.Size() - base
	if eoa < 0 {
		eoa = 0
	}

	return &BlockTranslator{
		dev:       dev,
		base:      base,
		blockSize: bs,
		scratch:   scratch,
		eoa:       eoa / bs * bs,
		hooks:     hooks,
	}, nil
}

// BlockSize returns the physical block size
func (t *BlockTranslator) BlockSize() int {
	return int(t.blockSize)
}

// Size returns the logical end of allocation
func (t *BlockTranslator) Size() int64 {
	return t.eoa
}

func (t *BlockTranslator) alignDown(off int64) int64 {
	return off / t.blockSize * t.blockSize
}

func (t *BlockTranslator) alignUp(off int64) int64 {
	return (off + t.blockSize - 1) / t.blockSize * t.blockSize
}

func (t *BlockTranslator) scratchFor(window int64) []byte {
	if window > t.scratch {
		window = t.scratch
	}
	return make([]byte, window)
}

func runHook(h BlockHook, buf []byte, off int64) error {
	if h == nil {
		return nil
	}
	return h(buf, off)
}

// readBlocks reads allocated blocks at logical offset off and runs AfterRead
func (t *BlockTranslator) readBlocks(buf []byte, off int64) error {
	n, err := t.dev.ReadAt(buf, t.base+off)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
		return newIOErrorAt("read", t.base+off, err)
	}
	if err := runHook(t.hooks.AfterRead, buf, off); err != nil {
		return newIOErrorAt("read", t.base+off, fmt.Errorf("after-read hook: %w", err))
	}
	return nil
}

// writeBlocks runs BeforeWrite and writes buf at logical offset off
func (t *BlockTranslator) writeBlocks(buf []byte, off int64) error {
	if err := runHook(t.hooks.BeforeWrite, buf, off); err != nil {
		return newIOErrorAt("write", t.base+off, fmt.Errorf("before-write hook: %w", err))
	}
	if _, err := t.dev.WriteAt(buf, t.base+off); err != nil {
		return newIOErrorAt("write", t.base+off, err)
	}
	return nil
}

// load fills buf with the plaintext of blocks at off: allocated blocks are
// read back, blocks past the allocation come from FillEmpty.
func (t *BlockTranslator) load(buf []byte, off int64) error {
	allocated := int64(len(buf))
	if off+allocated > t.eoa {
		allocated = max(t.eoa-off, 0)
	}
	if allocated > 0 {
		if err := t.readBlocks(buf[:allocated], off); err != nil {
			return err
		}
	}
	if allocated < int64(len(buf)) {
		if err := runHook(t.hooks.FillEmpty, buf[allocated:], off+allocated); err != nil {
			return newIOErrorAt("write", t.base+off+allocated, fmt.Errorf("fill-empty hook: %w", err))
		}
	}
	return nil
}

// ReadAt reads len(p) bytes at logical offset off. Reads past the end of
// allocation are short and return io.EOF.
func (t *BlockTranslator) ReadAt(p []byte, off int64) (int, error) {
	if err := ValidateReadWrite(p, off); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if off >= t.eoa {
		return 0, io.EOF
	}

	end := off + int64(len(p))
	short := end > t.eoa
	if short {
		end = t.eoa
	}

	start := t.alignDown(off)
	stop := t.alignUp(end)
	buf := t.scratchFor(stop - start)

	for pos := start; pos < stop; {
		n := min(int64(len(buf)), stop-pos)
		chunk := buf[:n]
		if err := t.readBlocks(chunk, pos); err != nil {
			return 0, err
		}

		from := max(off, pos)
		to := min(end, pos+n)
		copy(p[from-off:to-off], chunk[from-pos:to-pos])
		pos += n
	}

	if short {
		return int(end - off), io.EOF
	}
	return len(p), nil
}

// WriteAt writes p at logical offset off, extending the allocation if needed.
// Bytes of partially covered blocks outside [off, off+len(p)) are preserved.
func (t *BlockTranslator) WriteAt(p []byte, off int64) (int, error) {
	if err := ValidateReadWrite(p, off); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	start := t.alignDown(off)
	if start > t.eoa {
		if err := t.extend(start); err != nil {
			return 0, err
		}
	}

	end := off + int64(len(p))
	stop := t.alignUp(end)
	buf := t.scratchFor(stop - start)

	for pos := start; pos < stop; {
		n := min(int64(len(buf)), stop-pos)
		chunk := buf[:n]

		headPartial := off > pos
		tailPartial := end < pos+n
		if headPartial {
			if err := t.load(chunk[:t.blockSize], pos); err != nil {
				return 0, err
			}
		}
		if tailPartial && (!headPartial || n > t.blockSize) {
			last := n - t.blockSize
			if err := t.load(chunk[last:], pos+last); err != nil {
				return 0, err
			}
		}

		from := max(off, pos)
		to := min(end, pos+n)
		copy(chunk[from-pos:to-pos], p[from-off:to-off])

		if err := t.writeBlocks(chunk, pos); err != nil {
			return 0, err
		}
		if pos+n > t.eoa {
			t.eoa = pos + n
		}
		pos += n
	}

	return len(p), nil
}

// extend allocates [eoa, size) with FillEmpty content
func (t *BlockTranslator) extend(size int64) error {
	size = t.alignUp(size)
	if size <= t.eoa {
		return nil
	}

	buf := t.scratchFor(size - t.eoa)
	for t.eoa < size {
		n := min(int64(len(buf)), size-t.eoa)
		chunk := buf[:n]
		if err := runHook(t.hooks.FillEmpty, chunk, t.eoa); err != nil {
			return newIOErrorAt("write", t.base+t.eoa, fmt.Errorf("fill-empty hook: %w", err))
		}
		if err := t.writeBlocks(chunk, t.eoa); err != nil {
			return err
		}
		t.eoa += n
	}
	return nil
}

// Truncate sets the allocation to size rounded up to a whole block
func (t *BlockTranslator) Truncate(size int64) error {
	if err := ValidateOffset(size, "size"); err != nil {
		return err
	}
	size = t.alignUp(size)
	if size > t.eoa {
		return t.extend(size)
	}
	if err := t.dev.Truncate(t.base + size); err != nil {
		return newIOErrorAt("truncate", t.base+size, err)
	}
	t.eoa = size
	return nil
}

// Sync flushes the device
func (t *BlockTranslator) Sync() error {
	if err := t.dev.Sync(); err != nil {
		return NewIOError("sync", "", err)
	}
	return nil
}
