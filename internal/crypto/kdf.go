package crypto

import (
	"crypto/sha512"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// MinPBKDF2Iterations is the floor enforced for at-rest key derivation.
const MinPBKDF2Iterations = 10_000

// Argon2id parameters for password hashing.
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 2
)

// DeriveKey stretches secret into a 32-byte key with PBKDF2-HMAC-SHA512.
func DeriveKey(secret, salt []byte, iterations int) []byte {
	if iterations < MinPBKDF2Iterations {
		iterations = MinPBKDF2Iterations
	}
	return pbkdf2.Key(secret, salt, iterations, KeyBytes, sha512.New)
}

// HashPassword hashes password with argon2id and a fresh salt.
func HashPassword(password []byte) (hash, salt []byte, err error) {
	salt, err = RandomBytes(SaltBytes)
	if err != nil {
		return nil, nil, err
	}
	return argon2.IDKey(password, salt, argon2Time, argon2Memory, argon2Threads, KeyBytes), salt, nil
}

// VerifyPassword recomputes the hash in constant time.
func VerifyPassword(password, salt, expected []byte) bool {
	computed := argon2.IDKey(password, salt, argon2Time, argon2Memory, argon2Threads, KeyBytes)
	defer Wipe(computed)
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
