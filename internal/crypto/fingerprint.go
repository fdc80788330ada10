package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"
)

// IdentityPrefix prefixes every local identity handle.
const IdentityPrefix = "did:local:"

// Fingerprint returns the hex SHA-256 digest of the canonical encoding of
// pubDER. Encodings of the same key that differ in DER layout agree.
func Fingerprint(pubDER []byte) (string, error) {
	canonical, err := CanonicalPublicKey(pubDER)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// IdentityHandle returns did:local:<base58(sha256(canonical pub))>.
func IdentityHandle(pubDER []byte) (string, error) {
	canonical, err := CanonicalPublicKey(pubDER)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return IdentityPrefix + base58.Encode(sum[:]), nil
}

// FingerprintWords renders the fingerprint as 24 BIP-39 words so two people
// can compare keys by reading them aloud.
func FingerprintWords(pubDER []byte) (string, error) {
	canonical, err := CanonicalPublicKey(pubDER)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	words, err := bip39.NewMnemonic(sum[:])
	if err != nil {
		return "", fmt.Errorf("fingerprint words: %w", err)
	}
	return words, nil
}
