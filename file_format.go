package vaultfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// CurrentVersion is the container format version written by Create
	CurrentVersion = uint32(1)

	// HeaderSize is the encoded size of Header:
	// 8 (signature) + 3*4 (version, block size, encrypted) + 2*12 (cipher triples)
	// + 128 (master key) + 16 (key hash) + 128 (iv) = 316 bytes
	HeaderSize = 8 + 3*4 + 2*12 + MasterKeyLen + KeyHashLen + MasterKeyLen
)

// Signature identifies a container file
var Signature = [8]byte{'V', 'A', 'U', 'L', 'T', 'F', 'S', 0}

// Header is the fixed-size record at the start of a container. The rest of the
// first block after the header is random filler.
type Header struct {
	Signature   [8]byte
	Version     uint32
	BlockSize   uint32
	IsEncrypted uint32
	KeyCipher   CipherParams
	DataCipher  CipherParams
	MasterKey   [MasterKeyLen]byte
	KeyHash     [KeyHashLen]byte
	IV          [MasterKeyLen]byte
}

// NewHeader creates a header for a new container
func NewHeader(blockSize int, keyCipher, dataCipher CipherParams) *Header {
	return &Header{
		Signature:  Signature,
		Version:    CurrentVersion,
		BlockSize:  uint32(blockSize),
		KeyCipher:  keyCipher,
		DataCipher: dataCipher,
	}
}

// Encrypted reports whether the key envelope is encrypted
func (h *Header) Encrypted() bool {
	return h.IsEncrypted != 0
}

// WriteTo writes the header to the given writer
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	buf := new(bytes.Buffer)
	buf.Grow(HeaderSize)

	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return 0, fmt.Errorf("failed to encode header: %w", err)
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// ReadFrom reads the header from the given reader
func (h *Header) ReadFrom(r io.Reader) (int64, error) {
	raw := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, raw)
	if err != nil {
		return int64(n), fmt.Errorf("failed to read header: %w", err)
	}

	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, h); err != nil {
		return int64(n), fmt.Errorf("failed to decode header: %w", err)
	}

	return int64(n), h.Validate()
}

// Validate checks if the header is valid
func (h *Header) Validate() error {
	if h.Signature != Signature {
		return ErrCorruptHeader
	}
	if h.Version == 0 {
		return ErrCorruptHeader
	}
	if h.Version > CurrentVersion {
		return ErrUnsupportedVersion
	}
	if err := ValidateBlockSize(int(h.BlockSize)); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptHeader, err)
	}
	if h.IsEncrypted > 1 {
		return ErrCorruptHeader
	}
	if err := ValidateKeyCipher(h.KeyCipher); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptHeader, err)
	}
	if h.DataCipher.Mode > CipherChaCha20 {
		return fmt.Errorf("%w: data cipher mode %d", ErrCorruptHeader, h.DataCipher.Mode)
	}
	return nil
}

// Marshal encodes the header into a block-sized region, filling the tail from fill
func (h *Header) Marshal(fill func([]byte) error) ([]byte, error) {
	region := make([]byte, h.BlockSize)
	if fill != nil {
		if err := fill(region[HeaderSize:]); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := h.WriteTo(&buf); err != nil {
		return nil, err
	}
	copy(region, buf.Bytes())
	return region, nil
}
