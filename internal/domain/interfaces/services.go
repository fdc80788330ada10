package interfaces

import (
	"context"
	"crypto/rsa"

	domaintypes "securechat/internal/domain/types"
)

// IdentityKeyring mints identities and holds the unlocked private key.
type IdentityKeyring interface {
	CreateIdentity(ctx context.Context) (*domaintypes.Identity, error)
	Fingerprint(publicKey []byte) (domaintypes.Fingerprint, error)
	Recover(privateKeyDER []byte) (*domaintypes.Identity, error)
	Unlock(id *domaintypes.Identity) error
	PrivateKey() (*rsa.PrivateKey, error)
	Identity() (domaintypes.Identity, bool)
	Lock()
}

// HybridCipher encrypts payloads for a recipient public key.
type HybridCipher interface {
	Encrypt(plaintext, recipientPublicKey []byte, ephemeral bool) (domaintypes.MessageEnvelope, error)
	Decrypt(envelope domaintypes.MessageEnvelope, privateKey *rsa.PrivateKey) ([]byte, error)
}

// OTPService issues and verifies one-time codes.
type OTPService interface {
	Issue(ctx context.Context, userID string) (domaintypes.OTPChallenge, error)
	Verify(ctx context.Context, code string) (domaintypes.FactorProof, error)
	Discard(ctx context.Context) error
}

// BiometricService wraps a platform authenticator.
type BiometricService interface {
	IsSupported() bool
	Register(ctx context.Context, userHandle string) (domaintypes.BiometricCredential, error)
	Assert(ctx context.Context) (domaintypes.AssertionResult, error)
	Unregister(ctx context.Context) error
}

// SessionService is the login and elevation state machine.
type SessionService interface {
	Signup(ctx context.Context, creds domaintypes.Credentials) (domaintypes.SessionRecord, error)
	Login(ctx context.Context, creds domaintypes.Credentials) (domaintypes.SessionRecord, error)
	LoginWithIdentity(ctx context.Context) (domaintypes.SessionRecord, error)
	LoginWithBiometric(ctx context.Context) (domaintypes.SessionRecord, error)
	Elevate(ctx context.Context, proof domaintypes.FactorProof) error
	Downgrade(ctx context.Context) error
	Logout(ctx context.Context) error
	Current() (domaintypes.SessionRecord, bool)
	CanSendEphemeral() bool
}

// MessageService sends and receives envelopes through the relay.
type MessageService interface {
	PublishIdentity(ctx context.Context) error
	Send(ctx context.Context, to domaintypes.IdentityID, plaintext []byte, ephemeral bool) error
	Receive(ctx context.Context, limit int) ([]domaintypes.DecryptedMessage, error)
}
