package domain

import "errors"

// Cryptographic failures.
var (
	ErrKeyGenerationFailed = errors.New("key generation failed")
	// ErrDecryptionFailed covers wrong keys and tampered ciphertext alike.
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrEncryptionFailed = errors.New("encryption failed")
	// ErrStorageCorrupted is logged and recovered inside the store; callers
	// only ever observe an absent value.
	ErrStorageCorrupted = errors.New("stored record is corrupted")
)

// Second-factor failures.
var (
	ErrNoChallengeFound       = errors.New("no one-time code challenge found")
	ErrChallengeExpired       = errors.New("one-time code expired")
	ErrCodeMismatch           = errors.New("one-time code does not match")
	ErrRateLimited            = errors.New("too many requests, try again later")
	ErrNoCredentialRegistered = errors.New("no biometric credential registered")
	ErrAuthenticatorError     = errors.New("platform authenticator rejected the request")
	ErrBiometricUnsupported   = errors.New("biometric authentication is not supported on this device")
)

// Session failures.
var (
	ErrLoginInProgress      = errors.New("login already in progress")
	ErrAlreadyLoggedIn      = errors.New("already logged in")
	ErrNotLoggedIn          = errors.New("not logged in")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrAccountExists        = errors.New("account already exists")
	ErrElevationDenied      = errors.New("high security elevation denied")
	ErrHighSecurityRequired = errors.New("high security mode required")
	ErrNoIdentity           = errors.New("no identity available")
)

// Messaging failures.
var (
	ErrFingerprintMismatch = errors.New("peer public key fingerprint changed")
)
