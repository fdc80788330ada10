package types

import "time"

// OTPChallenge is an issued one-time code.
type OTPChallenge struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FactorProof attests that a second factor succeeded. MAC is set by the
// issuing service and checked by the session controller.
type FactorProof struct {
	ID         string       `json:"id"`
	Method     FactorMethod `json:"method"`
	Subject    string       `json:"subject"`
	VerifiedAt time.Time    `json:"verified_at"`
	MAC        []byte       `json:"mac"`
}

// BiometricCredential is the registered platform credential.
type BiometricCredential struct {
	CredentialID      []byte `json:"credential_id"`
	UserHandle        string `json:"user_handle"`
	PublicKey         []byte `json:"public_key"` // PKIX DER
	AAGUID            string `json:"aaguid"`
	AttestationFormat string `json:"attestation_format"`
	SignCount         uint32 `json:"sign_count"`
	CreatedAt         int64  `json:"created_at"`
}

// AssertionResult is returned by a verified biometric assertion.
type AssertionResult struct {
	CredentialID []byte      `json:"credential_id"`
	UserHandle   string      `json:"user_handle"`
	SignCount    uint32      `json:"sign_count"`
	Proof        FactorProof `json:"proof"`
}
