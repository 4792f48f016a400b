package vaultfs

import (
	"fmt"
	"time"

	"github.com/absfs/absfs"
	"github.com/charmbracelet/log"
)

const (
	// MasterKeyLen is the size of the master key envelope field
	MasterKeyLen = 128

	// DataIVLen is the number of meaningful bytes in the IV envelope field
	DataIVLen = 16

	// KeyHashLen is the size of the master key hash
	KeyHashLen = 16

	// ChunkBlocks is the number of blocks in one object-space chunk
	ChunkBlocks = 16

	// DefaultBlockSize is the block size used when none is configured
	DefaultBlockSize = 4096

	// MinBlockSize is the smallest block size a container may use
	MinBlockSize = 512

	// MaxBlockSize is the largest block size a container may use
	MaxBlockSize = 1024 * 1024

	// DefaultScratchSize caps the translator's scratch buffer (16 MB)
	DefaultScratchSize = 16 * 1024 * 1024

	// MinNameLen is the minimum length of container aliases and image file names
	MinNameLen = 3
)

// Handle identifies one caller-level open of a file
type Handle uint64

// InvalidHandle is never returned by a successful FileCreate
const InvalidHandle Handle = 0

// AccessMode is the desired access bitmask of a file open
type AccessMode uint32

const (
	// AccessRead requests read access
	AccessRead AccessMode = 0x80000000
	// AccessWrite requests write access
	AccessWrite AccessMode = 0x40000000
	// AccessReadWrite requests both
	AccessReadWrite = AccessRead | AccessWrite
)

func (a AccessMode) canRead() bool  { return a&AccessRead != 0 }
func (a AccessMode) canWrite() bool { return a&AccessWrite != 0 }

// ShareMode is the bitmask of access other openers are allowed to have
type ShareMode uint32

const (
	// ShareNone denies concurrent opens
	ShareNone ShareMode = 0
	// ShareRead allows concurrent readers
	ShareRead ShareMode = 0x1
	// ShareWrite allows concurrent writers
	ShareWrite ShareMode = 0x2
	// ShareDelete allows concurrent deletes
	ShareDelete ShareMode = 0x4
)

// Disposition selects what FileCreate does depending on whether the file exists
type Disposition uint32

const (
	// CreateNew creates the file and fails if it exists
	CreateNew Disposition = 1
	// CreateAlways creates the file, truncating it if it exists
	CreateAlways Disposition = 2
	// OpenExisting opens the file and fails if it is absent
	OpenExisting Disposition = 3
	// OpenAlways opens the file, creating it if it is absent
	OpenAlways Disposition = 4
	// TruncateExisting opens and truncates the file, failing if it is absent
	TruncateExisting Disposition = 5
)

// String returns the string representation of the disposition
func (d Disposition) String() string {
	switch d {
	case CreateNew:
		return "create-new"
	case CreateAlways:
		return "create-always"
	case OpenExisting:
		return "open-existing"
	case OpenAlways:
		return "open-always"
	case TruncateExisting:
		return "truncate-existing"
	default:
		return "unknown"
	}
}

// DOS-like attribute flags
const (
	AttrReadOnly  uint32 = 0x01
	AttrHidden    uint32 = 0x02
	AttrSystem    uint32 = 0x04
	AttrDirectory uint32 = 0x10
	AttrArchive   uint32 = 0x20
	AttrNormal    uint32 = 0x80
)

// Attributes describes a namespace object
type Attributes struct {
	Flags     uint32
	CreatorID uint64
	Created   time.Time
	Accessed  time.Time
	Written   time.Time
	Size      int64 // files only
}

// IsDir reports whether the attributes describe a folder
func (a Attributes) IsDir() bool {
	return a.Flags&AttrDirectory != 0
}

// DirEntry is one record returned by FolderList
type DirEntry struct {
	Name string
	Attributes
}

// AttrMask selects which fields SetAttributes writes
type AttrMask uint32

const (
	SetFlags AttrMask = 1 << iota
	SetCreated
	SetAccessed
	SetWritten
)

// CipherParams is the {mode, paramA, paramB} triple stored in the header
type CipherParams struct {
	Mode   uint32
	ParamA uint32
	ParamB uint32
}

// String returns a printable form of the triple
func (p CipherParams) String() string {
	return fmt.Sprintf("%d/%d/%d", p.Mode, p.ParamA, p.ParamB)
}

// Config contains process-side settings of a VirtualFS
type Config struct {
	// ScratchSize caps the block translator's scratch buffer in bytes
	ScratchSize int

	// FileSystem, when set, is used to open the backing file instead of the OS
	FileSystem absfs.Filer

	// Logger receives lifecycle events; nil discards them
	Logger *log.Logger

	// Parallel controls per-block cipher parallelism
	Parallel ParallelConfig
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ScratchSize: DefaultScratchSize,
		Parallel:    DefaultParallelConfig(),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.ScratchSize != 0 {
		if err := ValidateSize(c.ScratchSize, "scratch_size", MinBlockSize, 0); err != nil {
			return err
		}
	}
	if err := c.Parallel.Validate(); err != nil {
		return &ValidationError{Field: "parallel", Message: err.Error(), Err: err}
	}
	return nil
}

// CreateOptions describes a new container
type CreateOptions struct {
	// Name is the container alias (at least 3 characters)
	Name string

	// Password enables encryption when non-empty
	Password []byte

	// KeyCipher selects the password key derivation, see KeyMode*
	KeyCipher CipherParams

	// DataCipher selects the block cipher, see Cipher*
	DataCipher CipherParams

	// BlockSize is the physical block size; 0 selects DefaultBlockSize
	BlockSize int

	// InitialBlocks preallocates object space
	InitialBlocks int
}

// Validate checks if the create options are valid
func (o *CreateOptions) Validate() error {
	if o == nil {
		return &ValidationError{Message: "create options cannot be nil", Err: ErrNilConfig}
	}
	if len([]rune(o.Name)) < MinNameLen {
		return NewValidationError("name", o.Name, "container name is too short")
	}
	if err := ValidateBlockSize(o.blockSize()); err != nil {
		return err
	}
	if o.InitialBlocks < 0 {
		return NewValidationError("initial_blocks", o.InitialBlocks, "initial blocks cannot be negative")
	}
	if len(o.Password) > 0 {
		if o.KeyCipher.Mode == KeyModeNone {
			return NewValidationError("key_cipher", o.KeyCipher.Mode, "password given without key derivation mode")
		}
		if o.DataCipher.Mode == CipherNone {
			return NewValidationError("data_cipher", o.DataCipher.Mode, "password given without data cipher")
		}
		if err := ValidateKeyCipher(o.KeyCipher); err != nil {
			return err
		}
	}
	return nil
}

func (o *CreateOptions) blockSize() int {
	if o.BlockSize == 0 {
		return DefaultBlockSize
	}
	return o.BlockSize
}

// MetaField enumerates the container metadata readable through GetMeta
type MetaField uint32

const (
	MetaVersion MetaField = iota + 1
	MetaName
	MetaBlockSize
	MetaFilesCount
	MetaDirCount
	MetaUsedBlocks
	MetaFreeBlocks
	MetaUsedBytes
	MetaIsEncrypted
	MetaKeyMode
	MetaKeyParamA
	MetaKeyParamB
	MetaDataMode
	MetaDataParamA
	MetaDataParamB
	MetaMasterKey
	MetaKeyHash
	MetaIV
	MetaVolumeID
)

var metaFieldNames = map[MetaField]string{
	MetaVersion:     "version",
	MetaName:        "name",
	MetaBlockSize:   "block_size",
	MetaFilesCount:  "files_count",
	MetaDirCount:    "dir_count",
	MetaUsedBlocks:  "used_blocks",
	MetaFreeBlocks:  "free_blocks",
	MetaUsedBytes:   "used_bytes",
	MetaIsEncrypted: "is_encrypted",
	MetaKeyMode:     "key_mode",
	MetaKeyParamA:   "key_param_a",
	MetaKeyParamB:   "key_param_b",
	MetaDataMode:    "data_mode",
	MetaDataParamA:  "data_param_a",
	MetaDataParamB:  "data_param_b",
	MetaMasterKey:   "master_key",
	MetaKeyHash:     "key_hash",
	MetaIV:          "iv",
	MetaVolumeID:    "volume_id",
}

// String returns the string representation of the field
func (f MetaField) String() string {
	if name, ok := metaFieldNames[f]; ok {
		return name
	}
	return "unknown"
}

// PublicMetaFields lists the fields GetMeta returns without SecurityRestricted
func PublicMetaFields() []MetaField {
	return []MetaField{
		MetaVersion, MetaName, MetaBlockSize, MetaFilesCount, MetaDirCount,
		MetaUsedBlocks, MetaFreeBlocks, MetaUsedBytes, MetaIsEncrypted,
		MetaKeyMode, MetaKeyParamA, MetaKeyParamB,
		MetaDataMode, MetaDataParamA, MetaDataParamB, MetaVolumeID,
	}
}
