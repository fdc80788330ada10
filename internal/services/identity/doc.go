// Package identity mints self-owned RSA identities and holds the unlocked
// private key for the running session.
//
// An identity's ID (did:local:...) and fingerprint are pure functions of its
// public key, so recovering a private key recreates the same identity. Once
// unlocked, the private key lives in a memguard enclave and is only decrypted
// for the duration of a PrivateKey call.
package identity
