package types

// Username identifies a password account.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// IdentityID is the stable local identity handle (a did:local: string).
type IdentityID string

// String returns the string form of the identity handle.
func (id IdentityID) String() string { return string(id) }

// Fingerprint is the hex SHA-256 digest of a canonical public key.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// SecurityLevel is the elevation level of an active session.
type SecurityLevel string

const (
	LevelStandard SecurityLevel = "standard"
	LevelHigh     SecurityLevel = "high"
)

// String returns the string form of the level.
func (l SecurityLevel) String() string { return string(l) }

// AuthMode records how a session was authenticated.
type AuthMode string

const (
	AuthPassword  AuthMode = "password"
	AuthIdentity  AuthMode = "identity"
	AuthBiometric AuthMode = "biometric"
)

// String returns the string form of the auth mode.
func (m AuthMode) String() string { return string(m) }

// FactorMethod names the second factor that produced a proof.
type FactorMethod string

const (
	FactorOTP       FactorMethod = "otp"
	FactorBiometric FactorMethod = "biometric"
)

// String returns the string form of the factor method.
func (m FactorMethod) String() string { return string(m) }
