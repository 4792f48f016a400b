package vaultfs

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"
)

// hookRecorder counts hook calls and checks their alignment
type hookRecorder struct {
	t         *testing.T
	blockSize int
	fills     int
	writes    int
	reads     int
}

func (r *hookRecorder) check(name string, buf []byte, off int64) {
	if len(buf) == 0 || len(buf)%r.blockSize != 0 {
		r.t.Errorf("%s hook got %d bytes, not a block multiple", name, len(buf))
	}
	if off%int64(r.blockSize) != 0 {
		r.t.Errorf("%s hook got unaligned offset %d", name, off)
	}
}

// hooks XOR each byte with its block index so stored bytes differ from
// plaintext and misplaced blocks are detected.
func (r *hookRecorder) hooks() BlockHooks {
	xor := func(buf []byte, off int64) {
		for i := range buf {
			buf[i] ^= byte((off+int64(i))/int64(r.blockSize)) + 0x5A
		}
	}
	return BlockHooks{
		FillEmpty: func(buf []byte, off int64) error {
			r.check("fill", buf, off)
			r.fills++
			clear(buf)
			return nil
		},
		BeforeWrite: func(buf []byte, off int64) error {
			r.check("write", buf, off)
			r.writes++
			xor(buf, off)
			return nil
		},
		AfterRead: func(buf []byte, off int64) error {
			r.check("read", buf, off)
			r.reads++
			xor(buf, off)
			return nil
		},
	}
}

func newTestTranslator(t *testing.T, scratch int) (*BlockTranslator, *hookRecorder, Device) {
	t.Helper()
	dev := memDevice(t)
	rec := &hookRecorder{t: t, blockSize: testBlockSize}
	tr, err := NewBlockTranslator(dev, testBlockSize, testBlockSize, scratch, rec.hooks())
	if err != nil {
		t.Fatalf("NewBlockTranslator failed: %v", err)
	}
	return tr, rec, dev
}

func TestTranslatorRoundTrip(t *testing.T) {
	const scratch = 2 * testBlockSize

	tests := []struct {
		name string
		off  int64
		n    int
	}{
		{"sub-block unaligned", 100, 37},
		{"exactly one block aligned", testBlockSize, testBlockSize},
		{"one block unaligned", 300, testBlockSize},
		{"three blocks unaligned", 7, 3*testBlockSize + 11},
		{"larger than scratch", 123, 5*scratch + 99},
		{"aligned multi block", 2 * testBlockSize, 4 * testBlockSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _, _ := newTestTranslator(t, scratch)

			data := make([]byte, tt.n)
			rand.Read(data)

			n, err := tr.WriteAt(data, tt.off)
			if err != nil {
				t.Fatalf("WriteAt failed: %v", err)
			}
			if n != tt.n {
				t.Fatalf("WriteAt wrote %d bytes, want %d", n, tt.n)
			}

			got := make([]byte, tt.n)
			if _, err := tr.ReadAt(got, tt.off); err != nil {
				t.Fatalf("ReadAt failed: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Error("read back data does not match")
			}

			if tr.Size()%testBlockSize != 0 {
				t.Errorf("Size() = %d, not block aligned", tr.Size())
			}
			if tr.Size() < tt.off+int64(tt.n) {
				t.Errorf("Size() = %d, want at least %d", tr.Size(), tt.off+int64(tt.n))
			}
		})
	}
}

func TestTranslatorPreservesNeighbours(t *testing.T) {
	tr, _, _ := newTestTranslator(t, 0)

	base := make([]byte, 4*testBlockSize)
	rand.Read(base)
	if _, err := tr.WriteAt(base, 0); err != nil {
		t.Fatal(err)
	}

	patch := []byte("hello, blocks")
	off := int64(testBlockSize - 5)
	if _, err := tr.WriteAt(patch, off); err != nil {
		t.Fatal(err)
	}
	copy(base[off:], patch)

	got := make([]byte, len(base))
	if _, err := tr.ReadAt(got, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, base) {
		t.Error("bytes around an unaligned write were not preserved")
	}
}

func TestTranslatorStoresTransformedBlocks(t *testing.T) {
	tr, _, dev := newTestTranslator(t, 0)

	data := bytes.Repeat([]byte{0xAB}, testBlockSize)
	if _, err := tr.WriteAt(data, 0); err != nil {
		t.Fatal(err)
	}

	raw := make([]byte, testBlockSize)
	if n, err := dev.ReadAt(raw, testBlockSize); n != len(raw) {
		t.Fatalf("device ReadAt = (%d, %v)", n, err)
	}
	if bytes.Equal(raw, data) {
		t.Error("device holds untransformed plaintext")
	}
}

func TestTranslatorHookCounts(t *testing.T) {
	tr, rec, _ := newTestTranslator(t, 0)

	// Aligned full blocks need no read-modify-write
	if _, err := tr.WriteAt(make([]byte, 2*testBlockSize), 0); err != nil {
		t.Fatal(err)
	}
	if rec.reads != 0 || rec.fills != 0 {
		t.Errorf("aligned write: reads=%d fills=%d, want 0/0", rec.reads, rec.fills)
	}
	if rec.writes != 1 {
		t.Errorf("aligned write: writes=%d, want 1", rec.writes)
	}

	// An unaligned write inside allocated blocks reads its boundary block
	rec.reads, rec.writes = 0, 0
	if _, err := tr.WriteAt([]byte("x"), 10); err != nil {
		t.Fatal(err)
	}
	if rec.reads != 1 || rec.writes != 1 {
		t.Errorf("unaligned write: reads=%d writes=%d, want 1/1", rec.reads, rec.writes)
	}

	// Writing past the allocation fills the gap
	rec.fills = 0
	if _, err := tr.WriteAt([]byte("y"), 5*testBlockSize+1); err != nil {
		t.Fatal(err)
	}
	if rec.fills == 0 {
		t.Error("gap past the allocation was not filled")
	}
	if tr.Size() != 6*testBlockSize {
		t.Errorf("Size() = %d, want %d", tr.Size(), 6*testBlockSize)
	}
}

func TestTranslatorReadPastEnd(t *testing.T) {
	tr, _, _ := newTestTranslator(t, 0)

	if _, err := tr.WriteAt(make([]byte, testBlockSize), 0); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 100)
	n, err := tr.ReadAt(buf, testBlockSize-40)
	if !errors.Is(err, io.EOF) {
		t.Errorf("ReadAt across the end: err = %v, want io.EOF", err)
	}
	if n != 40 {
		t.Errorf("ReadAt across the end: n = %d, want 40", n)
	}

	if n, err := tr.ReadAt(buf, 10*testBlockSize); n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("ReadAt past the end = (%d, %v), want (0, io.EOF)", n, err)
	}
}

func TestTranslatorTruncate(t *testing.T) {
	tr, _, dev := newTestTranslator(t, 0)

	if err := tr.Truncate(3*testBlockSize + 1); err != nil {
		t.Fatal(err)
	}
	if tr.Size() != 4*testBlockSize {
		t.Errorf("Size() = %d, want %d", tr.Size(), 4*testBlockSize)
	}

	if err := tr.Truncate(testBlockSize); err != nil {
		t.Fatal(err)
	}
	if tr.Size() != testBlockSize {
		t.Errorf("Size() = %d, want %d", tr.Size(), testBlockSize)
	}
	info, err := dev.Stat()
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 2*testBlockSize {
		t.Errorf("device size = %d, want %d", info.Size(), 2*testBlockSize)
	}

	if err := tr.Truncate(-1); err == nil {
		t.Error("expected error for negative size")
	}
}

func TestTranslatorReopen(t *testing.T) {
	tr, rec, dev := newTestTranslator(t, 0)

	data := []byte("persisted across translators")
	if _, err := tr.WriteAt(data, 700); err != nil {
		t.Fatal(err)
	}

	again, err := NewBlockTranslator(dev, testBlockSize, testBlockSize, 0, rec.hooks())
	if err != nil {
		t.Fatal(err)
	}
	if again.Size() != tr.Size() {
		t.Errorf("reopened Size() = %d, want %d", again.Size(), tr.Size())
	}
	got := make([]byte, len(data))
	if _, err := again.ReadAt(got, 700); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("reopened translator returned different data")
	}
}

func TestNewBlockTranslatorErrors(t *testing.T) {
	if _, err := NewBlockTranslator(nil, 0, testBlockSize, 0, BlockHooks{}); err == nil {
		t.Error("expected error for nil device")
	}
	if _, err := NewBlockTranslator(memDevice(t), 0, 1000, 0, BlockHooks{}); err == nil {
		t.Error("expected error for bad block size")
	}
	if _, err := NewBlockTranslator(memDevice(t), -1, testBlockSize, 0, BlockHooks{}); err == nil {
		t.Error("expected error for negative base")
	}
}
