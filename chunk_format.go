package vaultfs

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Object space layout:
// ┌─────────────────────────────────────┐
// │ Chunk 0                             │
// │ └─ Block 0: Superblock              │ <- magic, generation, catalog head/length, chunk count
// ├─────────────────────────────────────┤
// │ Chunk 1..N                          │ <- file data chunks and catalog chunks
// │ Catalog chunk:                      │
// │ ├─ zstd(JSON catalog) fragment      │
// │ └─ next catalog chunk (uint32)      │ <- 0 terminates the chain
// └─────────────────────────────────────┘
// Every block of the object space passes through the data cipher.

const (
	// SuperblockMagic identifies a valid superblock (ASCII: "VSB1")
	SuperblockMagic = uint32(0x56534231)

	// SuperblockSize is the encoded size of Superblock
	SuperblockSize = 4 + 8 + 4 + 4 + 4

	// catalogLinkSize is the trailing next-chunk pointer of a catalog chunk
	catalogLinkSize = 4

	catalogVersion = 1
)

// Superblock is the root record of the object space
type Superblock struct {
	Magic         uint32
	Generation    uint64
	CatalogHead   uint32
	CatalogLength uint32
	ChunkCount    uint32
}

// WriteTo writes the superblock to the given writer
func (sb *Superblock) WriteTo(w io.Writer) (int64, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, sb); err != nil {
		return 0, fmt.Errorf("failed to encode superblock: %w", err)
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// ReadFrom reads the superblock from the given reader
func (sb *Superblock) ReadFrom(r io.Reader) (int64, error) {
	if err := binary.Read(r, binary.LittleEndian, sb); err != nil {
		return 0, fmt.Errorf("failed to read superblock: %w", err)
	}
	return SuperblockSize, sb.Validate()
}

// Validate checks if the superblock is valid
func (sb *Superblock) Validate() error {
	if sb.Magic != SuperblockMagic {
		return NewCorruptionError("superblock", "bad magic")
	}
	if sb.ChunkCount == 0 || sb.CatalogHead == 0 || sb.CatalogHead >= sb.ChunkCount {
		return NewCorruptionError("superblock", "catalog pointer out of range")
	}
	return nil
}

// catalogRecord is the persisted form of the namespace
type catalogRecord struct {
	Version  int            `json:"version"`
	Name     string         `json:"name"`
	VolumeID string         `json:"volume_id"`
	NextID   uint64         `json:"next_id"`
	Files    uint64         `json:"files"`
	Dirs     uint64         `json:"dirs"`
	Free     []uint32       `json:"free,omitempty"`
	Objects  []objectRecord `json:"objects"`
}

type objectRecord struct {
	ID       uint64   `json:"id"`
	Parent   uint64   `json:"parent"`
	Name     string   `json:"name"`
	Dir      bool     `json:"dir,omitempty"`
	Flags    uint32   `json:"flags"`
	Creator  uint64   `json:"creator,omitempty"`
	Created  int64    `json:"created"`
	Accessed int64    `json:"accessed"`
	Written  int64    `json:"written"`
	Size     int64    `json:"size,omitempty"`
	Chunks   []uint32 `json:"chunks,omitempty"`
}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// encodeCatalog serializes and compresses a catalog
func encodeCatalog(rec *catalogRecord) ([]byte, error) {
	enc, _, err := zstdCodec()
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}
	return enc.EncodeAll(raw, nil), nil
}

// decodeCatalog decompresses and parses a catalog
func decodeCatalog(data []byte) (*catalogRecord, error) {
	_, dec, err := zstdCodec()
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, &CorruptionError{Path: "catalog", Message: "cannot decompress", Err: err}
	}
	rec := &catalogRecord{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, &CorruptionError{Path: "catalog", Message: "cannot parse", Err: err}
	}
	if rec.Version > catalogVersion {
		return nil, ErrUnsupportedVersion
	}
	return rec, nil
}

// catalogChunksFor returns how many chunks a payload of n bytes needs
func catalogChunksFor(n int, chunkSize int64) int {
	per := int(chunkSize) - catalogLinkSize
	if n == 0 {
		return 1
	}
	return (n + per - 1) / per
}
