package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"securechat/internal/crypto"
	"securechat/internal/domain"
)

const (
	// The current supported version of the encrypted blob format.
	blobFormatVersion = 1
	kdfPBKDF2SHA512   = "pbkdf2-sha512"

	DefaultIterations = 120_000
)

var errUnsupportedBlob = errors.New("unsupported blob")

// seal derives a key from secret with a fresh salt and encrypts raw under a
// fresh IV. slot is bound as associated data.
func seal(secret []byte, slot string, raw []byte, iterations int) ([]byte, error) {
	salt, err := crypto.RandomBytes(crypto.SaltBytes)
	if err != nil {
		return nil, err
	}
	key := crypto.DeriveKey(secret, salt, iterations)
	defer crypto.Wipe(key)

	iv, ct, err := crypto.Seal(key, raw, []byte(slot))
	if err != nil {
		return nil, err
	}
	return json.Marshal(domain.EncryptedBlob{
		V:          blobFormatVersion,
		KDF:        kdfPBKDF2SHA512,
		Iterations: iterations,
		Salt:       salt,
		IV:         iv,
		Ciphertext: ct,
	})
}

// open parses and authenticates a blob written by seal for slot. Every
// failure wraps domain.ErrStorageCorrupted.
func open(secret []byte, slot string, b []byte) ([]byte, error) {
	var bl domain.EncryptedBlob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageCorrupted, err)
	}
	if bl.V != blobFormatVersion || bl.KDF != kdfPBKDF2SHA512 {
		return nil, fmt.Errorf("%w: %w v%d/%s", domain.ErrStorageCorrupted, errUnsupportedBlob, bl.V, bl.KDF)
	}
	if bl.Iterations < crypto.MinPBKDF2Iterations || len(bl.Salt) != crypto.SaltBytes {
		return nil, fmt.Errorf("%w: bad kdf parameters", domain.ErrStorageCorrupted)
	}
	key := crypto.DeriveKey(secret, bl.Salt, bl.Iterations)
	defer crypto.Wipe(key)

	pt, err := crypto.Open(key, bl.IV, bl.Ciphertext, []byte(slot))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageCorrupted, err)
	}
	return pt, nil
}
