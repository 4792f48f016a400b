package vaultfs

import (
	"errors"
	"testing"
)

func TestValidateBuffer(t *testing.T) {
	tests := []struct {
		name    string
		buf     []byte
		bufName string
		minSize int
		wantErr bool
	}{
		{
			name:    "nil buffer",
			buf:     nil,
			bufName: "data",
			minSize: 0,
			wantErr: true,
		},
		{
			name:    "valid buffer no min size",
			buf:     make([]byte, 10),
			bufName: "data",
			minSize: 0,
			wantErr: false,
		},
		{
			name:    "buffer too small",
			buf:     make([]byte, 5),
			bufName: "data",
			minSize: 10,
			wantErr: true,
		},
		{
			name:    "buffer exact size",
			buf:     make([]byte, 10),
			bufName: "data",
			minSize: 10,
			wantErr: false,
		},
		{
			name:    "buffer larger than min",
			buf:     make([]byte, 20),
			bufName: "data",
			minSize: 10,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBuffer(tt.buf, tt.bufName, tt.minSize)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBuffer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidationError(err) {
				t.Errorf("ValidateBuffer() should return ValidationError, got %T", err)
			}
		})
	}
}

func TestValidateOffset(t *testing.T) {
	tests := []struct {
		name       string
		offset     int64
		offsetName string
		wantErr    bool
	}{
		{
			name:       "negative offset",
			offset:     -1,
			offsetName: "offset",
			wantErr:    true,
		},
		{
			name:       "zero offset",
			offset:     0,
			offsetName: "offset",
			wantErr:    false,
		},
		{
			name:       "positive offset",
			offset:     1024,
			offsetName: "offset",
			wantErr:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOffset(tt.offset, tt.offsetName)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOffset() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidationError(err) {
				t.Errorf("ValidateOffset() should return ValidationError, got %T", err)
			}
		})
	}
}

func TestValidateSize(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		sizeName string
		minSize  int
		maxSize  int
		wantErr  bool
	}{
		{
			name:     "negative size",
			size:     -1,
			sizeName: "scratch_size",
			minSize:  0,
			maxSize:  100,
			wantErr:  true,
		},
		{
			name:     "zero size valid",
			size:     0,
			sizeName: "scratch_size",
			minSize:  0,
			maxSize:  100,
			wantErr:  false,
		},
		{
			name:     "size too small",
			size:     5,
			sizeName: "scratch_size",
			minSize:  10,
			maxSize:  100,
			wantErr:  true,
		},
		{
			name:     "size too large",
			size:     150,
			sizeName: "scratch_size",
			minSize:  10,
			maxSize:  100,
			wantErr:  true,
		},
		{
			name:     "size within bounds",
			size:     50,
			sizeName: "scratch_size",
			minSize:  10,
			maxSize:  100,
			wantErr:  false,
		},
		{
			name:     "size at min bound",
			size:     10,
			sizeName: "scratch_size",
			minSize:  10,
			maxSize:  100,
			wantErr:  false,
		},
		{
			name:     "size at max bound",
			size:     100,
			sizeName: "scratch_size",
			minSize:  10,
			maxSize:  100,
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSize(tt.size, tt.sizeName, tt.minSize, tt.maxSize)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidationError(err) {
				t.Errorf("ValidateSize() should return ValidationError, got %T", err)
			}
		})
	}
}

func TestValidateBlockSize(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"below minimum", 256, true},
		{"minimum", MinBlockSize, false},
		{"default", DefaultBlockSize, false},
		{"not a multiple of 512", 4000, true},
		{"maximum", MaxBlockSize, false},
		{"above maximum", MaxBlockSize + MinBlockSize, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBlockSize(tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBlockSize(%d) error = %v, wantErr %v", tt.size, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSize) {
				t.Errorf("ValidateBlockSize(%d) should wrap ErrInvalidSize, got %v", tt.size, err)
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name         string
		key          []byte
		expectedSize int
		wantErr      bool
	}{
		{
			name:         "nil key",
			key:          nil,
			expectedSize: 32,
			wantErr:      true,
		},
		{
			name:         "valid key",
			key:          make([]byte, 32),
			expectedSize: 32,
			wantErr:      false,
		},
		{
			name:         "key too small",
			key:          make([]byte, 16),
			expectedSize: 32,
			wantErr:      true,
		},
		{
			name:         "master key larger than needed",
			key:          make([]byte, MasterKeyLen),
			expectedSize: 64,
			wantErr:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key, tt.expectedSize)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidKey) {
				t.Errorf("ValidateKey() should wrap ErrInvalidKey, got %v", err)
			}
		})
	}
}

func TestValidateAccess(t *testing.T) {
	tests := []struct {
		name        string
		access      AccessMode
		share       ShareMode
		disposition Disposition
		wantErr     bool
	}{
		{"read", AccessRead, ShareRead, OpenExisting, false},
		{"read write", AccessReadWrite, ShareNone, CreateAlways, false},
		{"all shares", AccessWrite, ShareRead | ShareWrite | ShareDelete, OpenAlways, false},
		{"no access", 0, ShareRead, OpenExisting, true},
		{"unknown access bit", AccessRead | 1, ShareRead, OpenExisting, true},
		{"unknown share bit", AccessRead, 0x10, OpenExisting, true},
		{"disposition zero", AccessRead, ShareRead, 0, true},
		{"disposition too large", AccessRead, ShareRead, TruncateExisting + 1, true},
		{"share bits without access", 0, ShareRead | ShareWrite | ShareDelete, CreateNew, true},
		{"write only exclusive truncate", AccessWrite, ShareNone, TruncateExisting, false},
		{"high access bit", AccessReadWrite | 0x1000, ShareNone, OpenAlways, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAccess(tt.access, tt.share, tt.disposition)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAccess() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && StatusOf(err) != StatusInvalidParam {
				t.Errorf("ValidateAccess() status = %v, want %v", StatusOf(err), StatusInvalidParam)
			}
		})
	}
}

func TestValidateAccessDispositions(t *testing.T) {
	for d := CreateNew; d <= TruncateExisting; d++ {
		if err := ValidateAccess(AccessRead, ShareRead, d); err != nil {
			t.Errorf("ValidateAccess(%v) = %v", d, err)
		}
	}
}

func TestValidateReadWrite(t *testing.T) {
	tests := []struct {
		name     string
		buf      []byte
		position int64
		wantErr  bool
		errType  error
	}{
		{
			name:     "nil buffer",
			buf:      nil,
			position: 0,
			wantErr:  true,
			errType:  ErrNilBuffer,
		},
		{
			name:     "negative position",
			buf:      make([]byte, 10),
			position: -1,
			wantErr:  true,
			errType:  ErrInvalidOffset,
		},
		{
			name:     "valid",
			buf:      make([]byte, 10),
			position: 100,
			wantErr:  false,
		},
		{
			name:     "empty buffer",
			buf:      []byte{},
			position: 0,
			wantErr:  false,
		},
		{
			name:     "nil buffer checked before position",
			buf:      nil,
			position: -5,
			wantErr:  true,
			errType:  ErrNilBuffer,
		},
		{
			name:     "past any object size",
			buf:      make([]byte, 1),
			position: 1 << 62,
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReadWrite(tt.buf, tt.position)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateReadWrite() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != tt.errType {
				t.Errorf("ValidateReadWrite() error = %v, want %v", err, tt.errType)
			}
		})
	}
}
