// Package hybrid encrypts chat payloads for a recipient RSA public key.
//
// # Overview
//
// Each call to Encrypt:
//  1. Draws a fresh 32-byte content key and a fresh 12-byte IV.
//  2. Encrypts the plaintext with AES-256-GCM, binding the envelope header
//     (version, algorithm, IV, timestamp, ephemeral flag) as associated data.
//  3. Wraps the content key with RSA-OAEP-SHA256 under the recipient key,
//     split into ordered chunks no larger than one OAEP operation allows.
//
// Decrypt unwraps the chunks in order, reassembles the content key and opens
// the payload.
//
// # Errors
//
// Encrypt returns domain.ErrEncryptionFailed for missing or unusable inputs.
// Decrypt returns domain.ErrDecryptionFailed for every failure, whether the
// key is wrong, a chunk is malformed or the tag does not verify.
package hybrid
