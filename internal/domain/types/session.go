package types

// SessionRecord is the plaintext of the stored session blob. Timestamps are
// Unix milliseconds.
type SessionRecord struct {
	SessionID   string        `json:"session_id"`
	IdentityID  IdentityID    `json:"identity_id"`
	Fingerprint Fingerprint   `json:"fingerprint"`
	Username    Username      `json:"username,omitempty"`
	AuthMode    AuthMode      `json:"auth_mode"`
	Level       SecurityLevel `json:"level"`
	LoggedInAt  int64         `json:"logged_in_at"`
	ElevatedAt  int64         `json:"elevated_at,omitempty"`
	ElevatedBy  FactorMethod  `json:"elevated_by,omitempty"`
}

// Credentials are the inputs of password signup and login.
type Credentials struct {
	Username    Username
	Password    string
	DisplayName string
}

// Account is a password account held by the account repository.
type Account struct {
	Username     Username   `json:"username"`
	DisplayName  string     `json:"display_name"`
	PasswordHash []byte     `json:"password_hash"`
	PasswordSalt []byte     `json:"password_salt"`
	IdentityID   IdentityID `json:"identity_id"`
	CreatedAt    int64      `json:"created_at"`
}
