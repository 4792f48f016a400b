package vaultfs

import (
	"errors"
	"fmt"
)

// Status is the result code of a VirtualFS operation
type Status uint32

const (
	StatusSuccess Status = iota
	StatusInvalidParam
	StatusNotFound
	StatusDuplicate
	StatusAccessDenied
	StatusInUse
	StatusDiskRead
	StatusDiskWrite
	StatusOutOfMemory
	StatusSecurityRestricted
	StatusNotReady
	StatusExternalFailure
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInvalidParam:
		return "invalid parameter"
	case StatusNotFound:
		return "not found"
	case StatusDuplicate:
		return "duplicate"
	case StatusAccessDenied:
		return "access denied"
	case StatusInUse:
		return "in use"
	case StatusDiskRead:
		return "disk read error"
	case StatusDiskWrite:
		return "disk write error"
	case StatusOutOfMemory:
		return "out of memory"
	case StatusSecurityRestricted:
		return "security restricted"
	case StatusNotReady:
		return "not ready"
	case StatusExternalFailure:
		return "external failure"
	default:
		return "unknown"
	}
}

// ValidationError represents a parameter validation error
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IOError represents a failure of the backing device
type IOError struct {
	Operation string // "read", "write", "truncate", "sync", "open", "close"
	Path      string // Backing file path, if known
	Offset    int64  // Device offset, -1 if not applicable
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" && e.Offset >= 0 {
		return fmt.Sprintf("io error: %s %s at offset %d: %s", e.Operation, e.Path, e.Offset, e.Message)
	} else if e.Offset >= 0 {
		return fmt.Sprintf("io error: %s at offset %d: %s", e.Operation, e.Offset, e.Message)
	} else if e.Path != "" {
		return fmt.Sprintf("io error: %s %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("io error: %s: %s", e.Operation, e.Message)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// CorruptionError represents on-disk structures that fail to parse or verify
type CorruptionError struct {
	Path    string // Backing file or object path
	Chunk   uint32 // Chunk index, if applicable
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *CorruptionError) Error() string {
	if e.Chunk > 0 {
		return fmt.Sprintf("corruption error: %s (chunk %d): %s", e.Path, e.Chunk, e.Message)
	} else if e.Path != "" {
		return fmt.Sprintf("corruption error: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("corruption error: %s", e.Message)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// AuthenticationError represents a failed key envelope check
type AuthenticationError struct {
	Path    string // Backing file path
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *AuthenticationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("authentication error: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("authentication error: %s", e.Message)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// PathError records a namespace operation that failed on a path
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Sentinel errors, one per status plus the key envelope failures
var (
	ErrInvalidParam       = errors.New("invalid parameter")
	ErrNotFound           = errors.New("not found")
	ErrDuplicate          = errors.New("already exists")
	ErrAccessDenied       = errors.New("access denied")
	ErrInUse              = errors.New("in use")
	ErrOutOfMemory        = errors.New("out of memory")
	ErrSecurityRestricted = errors.New("security restricted field")
	ErrNotReady           = errors.New("file system is not open")
	ErrExternal           = errors.New("external failure")

	ErrWrongPassword      = errors.New("wrong password")
	ErrCorruptHeader      = errors.New("invalid container header")
	ErrUnsupportedVersion = errors.New("unsupported container version")
	ErrMissingCipher      = errors.New("encrypted container requires a password")
	ErrNotEncrypted       = errors.New("container is not encrypted")
	ErrUnsupportedCipher  = errors.New("unsupported cipher mode")
	ErrInvalidKey         = errors.New("invalid encryption key")

	ErrNilConfig     = errors.New("config cannot be nil")
	ErrNilBuffer     = errors.New("buffer cannot be nil")
	ErrInvalidOffset = errors.New("invalid file offset")
	ErrInvalidSize   = errors.New("invalid size parameter")
	ErrInvalidHandle = errors.New("invalid handle")
	ErrInvalidPath   = errors.New("invalid path")
)

// Helper functions for creating structured errors

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewIOError creates a new I/O error
func NewIOError(operation, path string, err error) error {
	return &IOError{
		Operation: operation,
		Path:      path,
		Offset:    -1,
		Message:   err.Error(),
		Err:       err,
	}
}

// newIOErrorAt creates an I/O error at a device offset
func newIOErrorAt(operation string, offset int64, err error) error {
	return &IOError{
		Operation: operation,
		Offset:    offset,
		Message:   err.Error(),
		Err:       err,
	}
}

// NewCorruptionError creates a new corruption error
func NewCorruptionError(path string, message string) error {
	return &CorruptionError{
		Path:    path,
		Message: message,
	}
}

// NewAuthenticationError creates a new authentication error
func NewAuthenticationError(path string, err error) error {
	return &AuthenticationError{
		Path:    path,
		Message: err.Error(),
		Err:     err,
	}
}

func newPathError(op, path string, err error) error {
	return &PathError{Op: op, Path: path, Err: err}
}

// Error checking helpers

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsIOError checks if an error is an I/O error
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}

// IsCorruptionError checks if an error is a corruption error
func IsCorruptionError(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}

// IsAuthenticationError checks if an error is an authentication error
func IsAuthenticationError(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

var sentinelStatus = []struct {
	err    error
	status Status
}{
	{ErrNotReady, StatusNotReady},
	{ErrNotFound, StatusNotFound},
	{ErrDuplicate, StatusDuplicate},
	{ErrInUse, StatusInUse},
	{ErrAccessDenied, StatusAccessDenied},
	{ErrWrongPassword, StatusAccessDenied},
	{ErrSecurityRestricted, StatusSecurityRestricted},
	{ErrOutOfMemory, StatusOutOfMemory},
	{ErrMissingCipher, StatusInvalidParam},
	{ErrNotEncrypted, StatusInvalidParam},
	{ErrUnsupportedCipher, StatusInvalidParam},
	{ErrInvalidKey, StatusInvalidParam},
	{ErrInvalidParam, StatusInvalidParam},
	{ErrInvalidPath, StatusInvalidParam},
	{ErrInvalidHandle, StatusInvalidParam},
	{ErrNilConfig, StatusInvalidParam},
	{ErrNilBuffer, StatusInvalidParam},
	{ErrInvalidOffset, StatusInvalidParam},
	{ErrInvalidSize, StatusInvalidParam},
	{ErrCorruptHeader, StatusExternalFailure},
	{ErrUnsupportedVersion, StatusExternalFailure},
	{ErrExternal, StatusExternalFailure},
}

// StatusOf maps an error returned by this package to its status code
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return s.status
		}
	}

	var ie *IOError
	if errors.As(err, &ie) {
		if ie.Operation == "read" {
			return StatusDiskRead
		}
		return StatusDiskWrite
	}
	switch {
	case IsValidationError(err):
		return StatusInvalidParam
	case IsAuthenticationError(err):
		return StatusAccessDenied
	case IsCorruptionError(err):
		return StatusDiskRead
	}
	return StatusExternalFailure
}
