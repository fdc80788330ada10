package types

import "time"

// Public key credential algorithm identifiers (COSE).
const (
	COSEAlgES256 = -7
	COSEAlgRS256 = -257
)

// CredentialCreationOptions mirrors the WebAuthn create() request.
type CredentialCreationOptions struct {
	Challenge        []byte
	RPID             string
	RPName           string
	UserID           []byte
	UserName         string
	Algorithms       []int
	UserVerification bool
	Timeout          time.Duration
}

// CredentialRequestOptions mirrors the WebAuthn get() request.
type CredentialRequestOptions struct {
	Challenge          []byte
	RPID               string
	AllowCredentialIDs [][]byte
	UserVerification   bool
	Timeout            time.Duration
}

// AttestationResponse is returned by an authenticator on registration.
// AttestationObject is CBOR {fmt, attStmt, authData}.
type AttestationResponse struct {
	CredentialID      []byte
	ClientDataJSON    []byte
	AttestationObject []byte
}

// AssertionResponse is returned by an authenticator on assertion.
type AssertionResponse struct {
	CredentialID      []byte
	ClientDataJSON    []byte
	AuthenticatorData []byte
	Signature         []byte
	UserHandle        []byte
}
