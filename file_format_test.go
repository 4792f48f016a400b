package vaultfs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := NewHeader(4096, DefaultKeyCipher(), DefaultDataCipher())
	h.IsEncrypted = 1
	for i := range h.MasterKey {
		h.MasterKey[i] = byte(i)
	}
	h.KeyHash[0] = 0xAA
	h.IV[MasterKeyLen-1] = 0x55

	var buf bytes.Buffer
	n, err := h.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if n != HeaderSize {
		t.Errorf("WriteTo wrote %d bytes, want %d", n, HeaderSize)
	}

	var got Header
	if _, err := got.ReadFrom(&buf); err != nil {
		t.Fatalf("ReadFrom failed: %v", err)
	}
	if got != *h {
		t.Error("decoded header does not match")
	}
}

func TestHeaderSize(t *testing.T) {
	if size := binary.Size(Header{}); size != HeaderSize {
		t.Errorf("binary.Size(Header) = %d, want %d", size, HeaderSize)
	}
}

func TestHeaderValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(h *Header)
		wantErr error
	}{
		{"valid", func(h *Header) {}, nil},
		{"bad signature", func(h *Header) { h.Signature[0] = 'X' }, ErrCorruptHeader},
		{"zero version", func(h *Header) { h.Version = 0 }, ErrCorruptHeader},
		{"future version", func(h *Header) { h.Version = CurrentVersion + 1 }, ErrUnsupportedVersion},
		{"bad block size", func(h *Header) { h.BlockSize = 1000 }, ErrCorruptHeader},
		{"bad encrypted flag", func(h *Header) { h.IsEncrypted = 2 }, ErrCorruptHeader},
		{"unknown key mode", func(h *Header) { h.KeyCipher.Mode = 7 }, ErrCorruptHeader},
		{"pbkdf2 iterations too high", func(h *Header) {
			h.KeyCipher = CipherParams{Mode: KeyModePBKDF2, ParamA: 0xFFFFFFFF, ParamB: uint32(SHA256)}
		}, ErrCorruptHeader},
		{"argon2 memory too high", func(h *Header) {
			h.KeyCipher = CipherParams{Mode: KeyModeArgon2id, ParamA: 3, ParamB: 0xFFFFFFFF}
		}, ErrCorruptHeader},
		{"unknown data cipher", func(h *Header) { h.DataCipher.Mode = 42 }, ErrCorruptHeader},
		{"default derivation", func(h *Header) { h.KeyCipher = DefaultKeyCipher() }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHeader(DefaultBlockSize, CipherParams{}, CipherParams{})
			tt.mutate(h)
			err := h.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHeaderMarshal(t *testing.T) {
	h := NewHeader(512, CipherParams{}, CipherParams{})
	region, err := h.Marshal(func(b []byte) error {
		for i := range b {
			b[i] = 0xEE
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if len(region) != 512 {
		t.Fatalf("region is %d bytes, want 512", len(region))
	}
	if !bytes.Equal(region[:8], Signature[:]) {
		t.Error("region does not start with the signature")
	}
	for i := HeaderSize; i < len(region); i++ {
		if region[i] != 0xEE {
			t.Fatalf("filler byte %d = %#x, want 0xEE", i, region[i])
		}
	}

	var got Header
	if _, err := got.ReadFrom(bytes.NewReader(region)); err != nil {
		t.Fatalf("ReadFrom(region) failed: %v", err)
	}
	if got.BlockSize != 512 {
		t.Errorf("BlockSize = %d, want 512", got.BlockSize)
	}
}

func TestHeaderReadShort(t *testing.T) {
	var h Header
	if _, err := h.ReadFrom(bytes.NewReader(make([]byte, 10))); err == nil {
		t.Error("expected error for truncated header")
	}
}

func TestSuperblockRoundTrip(t *testing.T) {
	sb := Superblock{
		Magic:         SuperblockMagic,
		Generation:    42,
		CatalogHead:   3,
		CatalogLength: 1234,
		ChunkCount:    10,
	}

	var buf bytes.Buffer
	if _, err := sb.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if buf.Len() != SuperblockSize {
		t.Errorf("encoded superblock is %d bytes, want %d", buf.Len(), SuperblockSize)
	}

	var got Superblock
	if _, err := got.ReadFrom(&buf); err != nil {
		t.Fatalf("ReadFrom failed: %v", err)
	}
	if got != sb {
		t.Errorf("got %+v, want %+v", got, sb)
	}
}

func TestSuperblockValidate(t *testing.T) {
	tests := []struct {
		name string
		sb   Superblock
	}{
		{"bad magic", Superblock{Magic: 1, CatalogHead: 1, ChunkCount: 2}},
		{"no chunks", Superblock{Magic: SuperblockMagic, CatalogHead: 1}},
		{"catalog in chunk 0", Superblock{Magic: SuperblockMagic, ChunkCount: 2}},
		{"catalog past end", Superblock{Magic: SuperblockMagic, CatalogHead: 5, ChunkCount: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.sb.Validate(); !IsCorruptionError(err) {
				t.Errorf("Validate() = %v, want CorruptionError", err)
			}
		})
	}
}

func TestCatalogCodec(t *testing.T) {
	rec := &catalogRecord{
		Version:  catalogVersion,
		Name:     "box",
		VolumeID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		NextID:   3,
		Files:    1,
		Free:     []uint32{4, 5},
		Objects: []objectRecord{
			{ID: 1, Dir: true, Flags: AttrDirectory},
			{ID: 2, Parent: 1, Name: "a.txt", Flags: AttrNormal, Size: 10, Chunks: []uint32{2}},
		},
	}

	data, err := encodeCatalog(rec)
	if err != nil {
		t.Fatalf("encodeCatalog failed: %v", err)
	}
	got, err := decodeCatalog(data)
	if err != nil {
		t.Fatalf("decodeCatalog failed: %v", err)
	}
	if got.Name != rec.Name || got.NextID != rec.NextID || len(got.Objects) != 2 {
		t.Errorf("decoded catalog = %+v", got)
	}
	if got.Objects[1].Name != "a.txt" || got.Objects[1].Chunks[0] != 2 {
		t.Errorf("decoded object = %+v", got.Objects[1])
	}

	if _, err := decodeCatalog([]byte("not zstd")); !IsCorruptionError(err) {
		t.Errorf("decodeCatalog(garbage) = %v, want CorruptionError", err)
	}
}

func TestCatalogChunksFor(t *testing.T) {
	const chunk = 1024
	per := chunk - catalogLinkSize

	tests := []struct {
		n    int
		want int
	}{
		{0, 1},
		{1, 1},
		{per, 1},
		{per + 1, 2},
		{3 * per, 3},
	}
	for _, tt := range tests {
		if got := catalogChunksFor(tt.n, chunk); got != tt.want {
			t.Errorf("catalogChunksFor(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}
