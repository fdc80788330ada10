// Package webauthn encodes and checks the WebAuthn structures exchanged with
// a platform authenticator: client data JSON, authenticator data, the CBOR
// attestation object and ES256 COSE keys.
//
// Only the subset securechat needs is supported: "none" attestation,
// ECDSA P-256 credentials and no extensions.
package webauthn
