package types

import "securechat/internal/util/memzero"

// Identity is a self-owned asymmetric identity.
//
// PublicKey is PKIX DER and PrivateKey is PKCS#8 DER. PrivateKey is only
// populated transiently, between generation or load and the moment it is
// persisted or sealed; call Wipe once it is no longer needed.
type Identity struct {
	ID          IdentityID  `json:"id"`
	Fingerprint Fingerprint `json:"fingerprint"`
	PublicKey   []byte      `json:"public_key"`
	PrivateKey  []byte      `json:"private_key,omitempty"`
}

// Public returns a copy without private key material.
func (id Identity) Public() Identity {
	return Identity{
		ID:          id.ID,
		Fingerprint: id.Fingerprint,
		PublicKey:   append([]byte(nil), id.PublicKey...),
	}
}

// Wipe zeroes and drops the private key.
func (id *Identity) Wipe() {
	if id == nil || id.PrivateKey == nil {
		return
	}
	memzero.Zero(id.PrivateKey)
	id.PrivateKey = nil
}

// PublicKeyRecord is what peers exchange through the relay directory.
type PublicKeyRecord struct {
	ID        IdentityID `json:"id"`
	PublicKey []byte     `json:"public_key"`
}

// ContactPin records the fingerprint first seen for a peer.
type ContactPin struct {
	IdentityID  IdentityID  `json:"identity_id"`
	Fingerprint Fingerprint `json:"fingerprint"`
	PinnedAt    int64       `json:"pinned_at"`
}
