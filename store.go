package vaultfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const rootID uint64 = 1

// object is the in-memory form of a namespace object
type object struct {
	id       uint64
	parent   uint64
	name     string
	dir      bool
	attr     Attributes
	chunks   []uint32
	children map[string]uint64
}

// objectStore is the hierarchical object engine of a container: a catalog of
// objects kept in memory and persisted copy-on-write into the object space.
type objectStore struct {
	tr        *BlockTranslator
	chunkSize int64
	log       *log.Logger

	objects       map[uint64]*object
	nextID        uint64
	free          []uint32
	chunkCount    uint32
	catalogChunks []uint32
	generation    uint64

	name     string
	volumeID uuid.UUID
	files    uint64
	dirs     uint64
	dirty    bool
}

func newObjectStore(tr *BlockTranslator, logger *log.Logger) *objectStore {
	return &objectStore{
		tr:        tr,
		chunkSize: int64(tr.BlockSize()) * ChunkBlocks,
		log:       logger,
		objects:   make(map[uint64]*object),
	}
}

// formatStore initializes an empty object space with a root folder
func formatStore(tr *BlockTranslator, name string, logger *log.Logger) (*objectStore, error) {
	s := newObjectStore(tr, logger)
	if err := tr.Truncate(s.chunkSize); err != nil {
		return nil, fmt.Errorf("failed to allocate superblock: %w", err)
	}

	now := time.Now()
	s.objects[rootID] = &object{
		id:       rootID,
		dir:      true,
		attr:     Attributes{Flags: AttrDirectory, Created: now, Accessed: now, Written: now},
		children: make(map[string]uint64),
	}
	s.nextID = rootID + 1
	s.chunkCount = 1
	s.name = name
	s.volumeID = uuid.New()

	if err := s.commit(); err != nil {
		return nil, err
	}
	return s, nil
}

// loadStore reads the superblock and catalog of an existing object space
func loadStore(tr *BlockTranslator, logger *log.Logger) (*objectStore, error) {
	s := newObjectStore(tr, logger)

	block := make([]byte, tr.BlockSize())
	if _, err := tr.ReadAt(block, 0); err != nil {
		return nil, fmt.Errorf("failed to read superblock: %w", err)
	}
	var sb Superblock
	if _, err := sb.ReadFrom(bytes.NewReader(block)); err != nil {
		return nil, err
	}
	if int64(sb.ChunkCount)*s.chunkSize > tr.Size() {
		return nil, NewCorruptionError("superblock", "chunk count exceeds allocation")
	}

	payload, chain, err := s.readCatalogChain(sb)
	if err != nil {
		return nil, err
	}
	rec, err := decodeCatalog(payload)
	if err != nil {
		return nil, err
	}

	s.generation = sb.Generation
	s.chunkCount = sb.ChunkCount
	s.catalogChunks = chain
	if err := s.restore(rec); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *objectStore) readCatalogChain(sb Superblock) ([]byte, []uint32, error) {
	payload := make([]byte, 0, sb.CatalogLength)
	buf := make([]byte, s.chunkSize)
	per := int(s.chunkSize) - catalogLinkSize
	seen := make(map[uint32]bool)

	var chain []uint32
	for c := sb.CatalogHead; c != 0; {
		if c >= sb.ChunkCount || seen[c] {
			return nil, nil, &CorruptionError{Path: "catalog", Chunk: c, Message: "broken catalog chain"}
		}
		seen[c] = true
		chain = append(chain, c)

		if _, err := s.tr.ReadAt(buf, s.chunkOffset(c)); err != nil {
			return nil, nil, fmt.Errorf("failed to read catalog chunk %d: %w", c, err)
		}
		take := min(per, int(sb.CatalogLength)-len(payload))
		payload = append(payload, buf[:take]...)
		c = binary.LittleEndian.Uint32(buf[per:])
	}
	if len(payload) != int(sb.CatalogLength) {
		return nil, nil, NewCorruptionError("catalog", "catalog chain shorter than recorded length")
	}
	return payload, chain, nil
}

// restore rebuilds the in-memory catalog from its persisted form
func (s *objectStore) restore(rec *catalogRecord) error {
	id, err := uuid.Parse(rec.VolumeID)
	if err != nil {
		return &CorruptionError{Path: "catalog", Message: "bad volume id", Err: err}
	}
	s.name = rec.Name
	s.volumeID = id
	s.nextID = rec.NextID
	s.files = rec.Files
	s.dirs = rec.Dirs
	s.free = rec.Free

	for _, r := range rec.Objects {
		o := &object{
			id:     r.ID,
			parent: r.Parent,
			name:   r.Name,
			dir:    r.Dir,
			chunks: r.Chunks,
			attr: Attributes{
				Flags:     r.Flags,
				CreatorID: r.Creator,
				Created:   time.Unix(0, r.Created),
				Accessed:  time.Unix(0, r.Accessed),
				Written:   time.Unix(0, r.Written),
				Size:      r.Size,
			},
		}
		if o.dir {
			o.children = make(map[string]uint64)
		}
		s.objects[o.id] = o
	}

	root, ok := s.objects[rootID]
	if !ok || !root.dir {
		return NewCorruptionError("catalog", "missing root folder")
	}
	if err := s.checkChunks(); err != nil {
		return err
	}
	for _, o := range s.objects {
		if o.id == rootID {
			continue
		}
		parent, ok := s.objects[o.parent]
		if !ok || !parent.dir {
			return NewCorruptionError("catalog", fmt.Sprintf("object %d has no parent folder", o.id))
		}
		parent.children[o.name] = o.id
	}
	return nil
}

// checkChunks verifies that every chunk the catalog references lies inside
// the object space and has one owner, and that file sizes fit their chunks.
func (s *objectStore) checkChunks() error {
	owner := make(map[uint32]uint64)
	claim := func(c uint32, id uint64) error {
		if c == 0 || c >= s.chunkCount {
			return &CorruptionError{Path: "catalog", Chunk: c, Message: fmt.Sprintf("object %d references chunk outside the object space", id)}
		}
		if prev, dup := owner[c]; dup {
			return &CorruptionError{Path: "catalog", Chunk: c, Message: fmt.Sprintf("chunk shared by objects %d and %d", prev, id)}
		}
		owner[c] = id
		return nil
	}

	for _, c := range s.catalogChunks {
		if err := claim(c, 0); err != nil {
			return err
		}
	}
	for _, o := range s.objects {
		if o.dir && (len(o.chunks) > 0 || o.attr.Size != 0) {
			return NewCorruptionError("catalog", fmt.Sprintf("folder %d has data", o.id))
		}
		if o.attr.Size < 0 || o.attr.Size > int64(len(o.chunks))*s.chunkSize {
			return NewCorruptionError("catalog", fmt.Sprintf("object %d size %d exceeds its %d chunks", o.id, o.attr.Size, len(o.chunks)))
		}
		for _, c := range o.chunks {
			if err := claim(c, o.id); err != nil {
				return err
			}
		}
	}
	for _, c := range s.free {
		if c == 0 || c >= s.chunkCount {
			return &CorruptionError{Path: "catalog", Chunk: c, Message: "free chunk outside the object space"}
		}
		if id, used := owner[c]; used {
			return &CorruptionError{Path: "catalog", Chunk: c, Message: fmt.Sprintf("free chunk owned by object %d", id)}
		}
	}
	return nil
}

// snapshot captures the catalog with the given free list
func (s *objectStore) snapshot(free []uint32) *catalogRecord {
	rec := &catalogRecord{
		Version:  catalogVersion,
		Name:     s.name,
		VolumeID: s.volumeID.String(),
		NextID:   s.nextID,
		Files:    s.files,
		Dirs:     s.dirs,
		Free:     free,
		Objects:  make([]objectRecord, 0, len(s.objects)),
	}
	for _, o := range s.objects {
		rec.Objects = append(rec.Objects, objectRecord{
			ID:       o.id,
			Parent:   o.parent,
			Name:     o.name,
			Dir:      o.dir,
			Flags:    o.attr.Flags,
			Creator:  o.attr.CreatorID,
			Created:  o.attr.Created.UnixNano(),
			Accessed: o.attr.Accessed.UnixNano(),
			Written:  o.attr.Written.UnixNano(),
			Size:     o.attr.Size,
			Chunks:   o.chunks,
		})
	}
	slices.SortFunc(rec.Objects, func(a, b objectRecord) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return rec
}

// commit persists the catalog: new chain first, then the superblock, then the
// previous chain is released. On failure allocation state is restored.
func (s *objectStore) commit() error {
	savedFree := slices.Clone(s.free)
	savedCount := s.chunkCount
	oldChain := s.catalogChunks

	fail := func(err error) error {
		s.free = savedFree
		s.chunkCount = savedCount
		s.log.Error("catalog commit failed", "generation", s.generation, "err", err)
		return err
	}

	var chain []uint32
	var payload []byte
	for {
		free := append(slices.Clone(s.free), oldChain...)
		slices.Sort(free)

		var err error
		payload, err = encodeCatalog(s.snapshot(free))
		if err != nil {
			return fail(err)
		}
		need := catalogChunksFor(len(payload), s.chunkSize)
		if len(chain) >= need {
			break
		}
		for len(chain) < need {
			chain = append(chain, s.allocChunk())
		}
	}

	per := int(s.chunkSize) - catalogLinkSize
	buf := make([]byte, s.chunkSize)
	for i, c := range chain {
		clear(buf)
		from := min(i*per, len(payload))
		to := min(from+per, len(payload))
		copy(buf, payload[from:to])
		var next uint32
		if i+1 < len(chain) {
			next = chain[i+1]
		}
		binary.LittleEndian.PutUint32(buf[per:], next)
		if err := s.ensureAllocated(c); err != nil {
			return fail(err)
		}
		if _, err := s.tr.WriteAt(buf, s.chunkOffset(c)); err != nil {
			return fail(fmt.Errorf("failed to write catalog chunk %d: %w", c, err))
		}
	}
	if err := s.tr.Sync(); err != nil {
		return fail(err)
	}

	sb := Superblock{
		Magic:         SuperblockMagic,
		Generation:    s.generation + 1,
		CatalogHead:   chain[0],
		CatalogLength: uint32(len(payload)),
		ChunkCount:    s.chunkCount,
	}
	block := make([]byte, s.tr.BlockSize())
	var sbBuf bytes.Buffer
	if _, err := sb.WriteTo(&sbBuf); err != nil {
		return fail(err)
	}
	copy(block, sbBuf.Bytes())
	if _, err := s.tr.WriteAt(block, 0); err != nil {
		return fail(fmt.Errorf("failed to write superblock: %w", err))
	}

	s.free = append(s.free, oldChain...)
	slices.Sort(s.free)
	s.catalogChunks = chain
	s.generation = sb.Generation
	s.dirty = false
	s.log.Debug("catalog committed", "generation", s.generation, "bytes", len(payload), "chunks", len(chain))
	return nil
}

// allocChunk returns the lowest free chunk or a new one past the end
func (s *objectStore) allocChunk() uint32 {
	if len(s.free) > 0 {
		c := s.free[0]
		s.free = s.free[1:]
		return c
	}
	c := s.chunkCount
	s.chunkCount++
	return c
}

// releaseChunks returns chunks to the free list
func (s *objectStore) releaseChunks(chunks []uint32) {
	if len(chunks) == 0 {
		return
	}
	s.free = append(s.free, chunks...)
	slices.Sort(s.free)
	s.dirty = true
}

// ensureAllocated extends the translator so chunk c is backed by blocks
func (s *objectStore) ensureAllocated(c uint32) error {
	end := s.chunkOffset(c) + s.chunkSize
	if end <= s.tr.Size() {
		return nil
	}
	return s.tr.Truncate(end)
}

func (s *objectStore) chunkOffset(c uint32) int64 {
	return int64(c) * s.chunkSize
}

// lookup resolves a clean path to an object, or nil
func (s *objectStore) lookup(p string) *object {
	o := s.objects[rootID]
	for _, name := range pathSegments(p) {
		if !o.dir {
			return nil
		}
		id, ok := o.children[name]
		if !ok {
			return nil
		}
		o = s.objects[id]
	}
	return o
}

// pathOf rebuilds the path of an object from its ancestry
func (s *objectStore) pathOf(o *object) string {
	var names []string
	for o != nil && o.id != rootID {
		names = append(names, o.name)
		o = s.objects[o.parent]
	}
	p := RootPath
	for i := len(names) - 1; i >= 0; i-- {
		p = joinPath(p, names[i])
	}
	return p
}

// stats returns block usage of the object space
func (s *objectStore) stats() (usedBlocks, freeBlocks, usedBytes uint64) {
	blocksPerChunk := uint64(ChunkBlocks)
	used := uint64(s.chunkCount) - uint64(len(s.free))
	usedBlocks = used * blocksPerChunk

	allocated := uint64(s.tr.Size()) / uint64(s.tr.BlockSize())
	freeBlocks = uint64(len(s.free)) * blocksPerChunk
	if reserved := uint64(s.chunkCount) * blocksPerChunk; allocated > reserved {
		freeBlocks += allocated - reserved
	}

	for _, o := range s.objects {
		if !o.dir {
			usedBytes += uint64(o.attr.Size)
		}
	}
	return usedBlocks, freeBlocks, usedBytes
}

// txn collects undo steps for one namespace mutation
type txn struct {
	s    *objectStore
	undo []func()
}

// onRollback registers f to run if the transaction fails
func (tx *txn) onRollback(f func()) {
	tx.undo = append(tx.undo, f)
}

func (tx *txn) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

// update runs fn and commits the catalog; if either fails every change
// registered with onRollback is undone.
func (s *objectStore) update(fn func(tx *txn) error) error {
	tx := &txn{s: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if err := s.commit(); err != nil {
		tx.rollback()
		return err
	}
	return nil
}
