package vaultfs

// Rekey re-encrypts the cached master key and IV under a new password and
// returns the header to persist. The live header is replaced only after the
// new envelope has been built.
func (k *KeyManager) Rekey(password []byte) (*Header, error) {
	if !k.header.Encrypted() {
		return nil, ErrNotEncrypted
	}
	if len(password) == 0 {
		return nil, NewValidationError("password", nil, "password cannot be empty")
	}

	pc, err := PasswordCipher(password, k.header.KeyCipher)
	if err != nil {
		return nil, err
	}
	defer pc.Wipe()

	next := *k.header
	if err := k.seal(&next, pc); err != nil {
		return nil, err
	}
	return &next, nil
}

// Commit installs a header returned by Rekey once it is on disk
func (k *KeyManager) Commit(h *Header) {
	k.header = h
}
