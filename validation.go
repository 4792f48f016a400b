package vaultfs

import (
	"fmt"
)

// ValidateBuffer checks if a buffer is valid (non-nil and has expected size)
func ValidateBuffer(buf []byte, name string, minSize int) error {
	if buf == nil {
		return &ValidationError{
			Field:   name,
			Message: "buffer cannot be nil",
			Err:     ErrNilBuffer,
		}
	}
	if minSize > 0 && len(buf) < minSize {
		return &ValidationError{
			Field:   name,
			Value:   len(buf),
			Message: fmt.Sprintf("buffer too small: got %d bytes, need at least %d bytes", len(buf), minSize),
		}
	}
	return nil
}

// ValidateOffset checks if a file offset is valid
func ValidateOffset(offset int64, name string) error {
	if offset < 0 {
		return &ValidationError{
			Field:   name,
			Value:   offset,
			Message: "offset cannot be negative",
			Err:     ErrInvalidOffset,
		}
	}
	return nil
}

// ValidateSize checks if a size parameter is valid
func ValidateSize(size int, name string, minSize, maxSize int) error {
	if size < 0 {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: "size cannot be negative",
			Err:     ErrInvalidSize,
		}
	}
	if minSize >= 0 && size < minSize {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: fmt.Sprintf("size too small: got %d, minimum is %d", size, minSize),
			Err:     ErrInvalidSize,
		}
	}
	if maxSize > 0 && size > maxSize {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: fmt.Sprintf("size too large: got %d, maximum is %d", size, maxSize),
			Err:     ErrInvalidSize,
		}
	}
	return nil
}

// ValidateBlockSize checks that a block size is in range and a multiple of MinBlockSize
func ValidateBlockSize(size int) error {
	if err := ValidateSize(size, "block_size", MinBlockSize, MaxBlockSize); err != nil {
		return err
	}
	if size%MinBlockSize != 0 {
		return &ValidationError{
			Field:   "block_size",
			Value:   size,
			Message: fmt.Sprintf("block size must be a multiple of %d", MinBlockSize),
			Err:     ErrInvalidSize,
		}
	}
	return nil
}

// ValidateKey checks if a key has the correct size
func ValidateKey(key []byte, expectedSize int) error {
	if key == nil {
		return &ValidationError{
			Field:   "key",
			Message: "key cannot be nil",
			Err:     ErrInvalidKey,
		}
	}

	if len(key) < expectedSize {
		return &ValidationError{
			Field:   "key",
			Value:   len(key),
			Message: fmt.Sprintf("invalid key size: got %d bytes, need %d bytes", len(key), expectedSize),
			Err:     ErrInvalidKey,
		}
	}

	return nil
}

// ValidateAccess checks desired access, share mode and disposition of a file open
func ValidateAccess(access AccessMode, share ShareMode, disposition Disposition) error {
	if access == 0 {
		return NewValidationError("access", access, "access must include read or write")
	}
	if access&^AccessReadWrite != 0 {
		return NewValidationError("access", access, "unknown access bits")
	}
	if share&^(ShareRead|ShareWrite|ShareDelete) != 0 {
		return NewValidationError("share", share, "unknown share bits")
	}
	if disposition < CreateNew || disposition > TruncateExisting {
		return NewValidationError("disposition", disposition, "unknown creation disposition")
	}
	return nil
}

// ValidateReadWrite checks common preconditions for read/write operations
func ValidateReadWrite(buf []byte, position int64) error {
	if buf == nil {
		return ErrNilBuffer
	}
	if position < 0 {
		return ErrInvalidOffset
	}
	return nil
}
