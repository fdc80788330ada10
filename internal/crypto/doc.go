// Package crypto exposes the primitives used by securechat.
//
// Contents
//
//   - RSA key generation and canonical DER encoding (GenerateRSA,
//     MarshalPublicKey, ParsePublicKey, MarshalPrivateKey, ParsePrivateKey)
//   - RSA-OAEP wrapping of arbitrary-length payloads in ordered chunks
//     (WrapChunks, UnwrapChunks, MaxChunkSize)
//   - AES-256-GCM sealing with a fresh nonce per call (Seal, Open)
//   - PBKDF2-HMAC-SHA512 key derivation and argon2id password hashing
//     (DeriveKey, HashPassword, VerifyPassword)
//   - Public-key fingerprints and identity handles (Fingerprint,
//     IdentityHandle, FingerprintWords)
//   - Uniform random bytes and numeric codes (RandomBytes, RandomDigits)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//
// # Notes
//
// Callers should treat returned secrets as sensitive and rely on Wipe when
// practical to reduce their lifetime in memory.
package crypto
