// Package store provides encrypted-at-rest persistence for securechat.
//
// SecureStore serialises values as JSON and seals each one into an
// independent EncryptedBlob: PBKDF2-HMAC-SHA512 stretches the storage secret
// with a fresh salt, and AES-256-GCM encrypts under a fresh IV with the
// logical key bound as associated data. Sealed blobs are handed to a Backend:
//   - FileBackend: one <hex(key)>.enc file per key, written atomically
//   - SQLiteBackend: rows in a secure_records table
//   - MemoryBackend: process-local, used for short-lived challenges
//
// Operations on the same key are serialised by a per-key lock. A blob that
// fails to open is logged, purged and reported as absent.
//
// AccountStore keeps password accounts on top of a SecureStore.
package store
