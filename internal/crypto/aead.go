package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

const (
	KeyBytes   = 32
	SaltBytes  = 16
	NonceBytes = 12
)

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyBytes {
		return nil, fmt.Errorf("invalid key size %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-256-GCM under a freshly drawn nonce.
func Seal(key, plaintext, ad []byte) (nonce, ciphertext []byte, err error) {
	nonce, err = RandomBytes(NonceBytes)
	if err != nil {
		return nil, nil, err
	}
	ciphertext, err = SealWithNonce(key, nonce, plaintext, ad)
	if err != nil {
		return nil, nil, err
	}
	return nonce, ciphertext, nil
}

// SealWithNonce encrypts under a caller-supplied nonce, for callers that bind
// the nonce into ad. The nonce must never repeat for the same key.
func SealWithNonce(key, nonce, plaintext, ad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("invalid nonce size %d", len(nonce))
	}
	return aead.Seal(nil, nonce, plaintext, ad), nil
}

// Open authenticates and decrypts ciphertext.
func Open(key, nonce, ciphertext, ad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("invalid nonce size %d", len(nonce))
	}
	return aead.Open(nil, nonce, ciphertext, ad)
}
