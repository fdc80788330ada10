package domain

import (
	interfaces "securechat/internal/domain/interfaces"
	types "securechat/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Username                  = types.Username
	IdentityID                = types.IdentityID
	Fingerprint               = types.Fingerprint
	SecurityLevel             = types.SecurityLevel
	AuthMode                  = types.AuthMode
	FactorMethod              = types.FactorMethod
	Identity                  = types.Identity
	PublicKeyRecord           = types.PublicKeyRecord
	ContactPin                = types.ContactPin
	EncryptedBlob             = types.EncryptedBlob
	MessageEnvelope           = types.MessageEnvelope
	Delivery                  = types.Delivery
	DecryptedMessage          = types.DecryptedMessage
	SessionRecord             = types.SessionRecord
	Credentials               = types.Credentials
	Account                   = types.Account
	OTPChallenge              = types.OTPChallenge
	FactorProof               = types.FactorProof
	BiometricCredential       = types.BiometricCredential
	AssertionResult           = types.AssertionResult
	CredentialCreationOptions = types.CredentialCreationOptions
	CredentialRequestOptions  = types.CredentialRequestOptions
	AttestationResponse       = types.AttestationResponse
	AssertionResponse         = types.AssertionResponse
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	SecureStore      = interfaces.SecureStore
	Backend          = interfaces.Backend
	AccountStore     = interfaces.AccountStore
	RelayClient      = interfaces.RelayClient
	CodeDelivery     = interfaces.CodeDelivery
	Authenticator    = interfaces.Authenticator
	IdentityKeyring  = interfaces.IdentityKeyring
	HybridCipher     = interfaces.HybridCipher
	OTPService       = interfaces.OTPService
	BiometricService = interfaces.BiometricService
	SessionService   = interfaces.SessionService
	MessageService   = interfaces.MessageService
)

// Constants re-exported from the types subpackage.
const (
	LevelStandard   = types.LevelStandard
	LevelHigh       = types.LevelHigh
	AuthPassword    = types.AuthPassword
	AuthIdentity    = types.AuthIdentity
	AuthBiometric   = types.AuthBiometric
	FactorOTP       = types.FactorOTP
	FactorBiometric = types.FactorBiometric
	COSEAlgES256    = types.COSEAlgES256
	COSEAlgRS256    = types.COSEAlgRS256

	KindText           = types.KindText
	KindSecurityNotice = types.KindSecurityNotice
)
