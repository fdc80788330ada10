package interfaces

import (
	"context"

	domaintypes "securechat/internal/domain/types"
)

// Authenticator is a platform authenticator (Touch ID, Windows Hello, ...).
type Authenticator interface {
	Available() bool
	MakeCredential(
		ctx context.Context,
		opts domaintypes.CredentialCreationOptions,
	) (domaintypes.AttestationResponse, error)
	GetAssertion(
		ctx context.Context,
		opts domaintypes.CredentialRequestOptions,
	) (domaintypes.AssertionResponse, error)
	// Forget deletes the private key of a credential. Forgetting an unknown
	// credential is not an error.
	Forget(ctx context.Context, credentialID []byte) error
}
