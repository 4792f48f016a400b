// Package vaultfs stores a hierarchical file system inside one encrypted
// container file.
//
// # Overview
//
// A container is a single backing file holding a fixed header followed by an
// object space. The object space holds a catalog of folders and files and
// their data, and every block of it passes through a length-preserving data
// cipher. A VirtualFS opens one container at a time and exposes folders,
// files with share-mode handles, metadata and password management. All
// methods are safe for concurrent use.
//
// # Basic Usage
//
//	v, err := vaultfs.New(nil)
//	if err != nil {
//	    panic(err)
//	}
//	defer v.Release()
//
//	err = v.Create("/data/box.vfs", &vaultfs.CreateOptions{
//	    Name:       "my-box",
//	    Password:   []byte("my-secure-password"),
//	    KeyCipher:  vaultfs.DefaultKeyCipher(),
//	    DataCipher: vaultfs.DefaultDataCipher(),
//	})
//	if err != nil {
//	    panic(err)
//	}
//
//	f, _ := v.OpenFile("/secret.txt", vaultfs.AccessReadWrite, vaultfs.ShareRead, vaultfs.CreateAlways)
//	f.WriteString("This will be encrypted on disk")
//	f.Close()
//
// A Filer adapts an open VirtualFS to absfs.Filer, so the container can be
// used wherever an absfs file system is expected.
//
// # Handles and Sharing
//
// Every FileCreate returns a new Handle with its own cursor. Handles on the
// same path share one open state that counts readers and writers and keeps
// the intersection of their share modes. An open is refused with
// ErrAccessDenied when it conflicts with that state:
//   - the shared mode is ShareNone
//   - it wants to write and the shared mode lacks ShareWrite
//   - it wants to read and the shared mode lacks ShareRead
//   - there are writers and its own share mode lacks ShareWrite
//   - there are readers and its own share mode lacks ShareRead
//
// Files and folders with open handles cannot be moved or deleted. Range
// locks taken with FileLock are advisory.
//
// # Key Derivation
//
// The master key is random and stored in the header sealed under a key
// derived from the password (AES-256-CBC, zero IV). Two derivations are
// supported:
//
// PBKDF2 (KeyModePBKDF2):
//   - ParamA is the iteration count, ParamB the hash (SHA256 or SHA512)
//
// Argon2id (KeyModeArgon2id):
//   - ParamA is the time cost, ParamB the memory in KiB
//
// A 16-byte BLAKE2b hash of the master key is stored next to it, so a wrong
// password is detected without touching the object space. ChangeAccessPassword
// re-seals the same master key; data is never re-encrypted.
//
// # File Format
//
// The backing file is laid out in blocks of the container block size:
//   - Block 0: header (signature, version, block size, key and data cipher
//     triples, sealed master key, key hash, sealed IV) then random filler
//   - Block 1 on: the object space, in chunks of ChunkBlocks blocks
//
// Chunk 0 starts with the superblock. The catalog is zstd-compressed JSON
// stored in a chain of chunks and is rewritten copy-on-write on every
// namespace change, so an interrupted commit leaves the previous catalog
// intact. Integers are little endian.
//
// # Security Considerations
//
// Protected Against:
//   - Reading file contents or names from the container at rest
//   - Offline password checks cheaper than the configured derivation
//
// Not Protected Against:
//   - Tampering: the data ciphers are not authenticated
//   - Memory dumps while a container is open
//   - Leakage of the total container size
package vaultfs
