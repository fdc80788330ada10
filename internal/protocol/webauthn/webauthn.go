package webauthn

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// Authenticator data flags.
const (
	FlagUserPresent  byte = 0x01
	FlagUserVerified byte = 0x04
	FlagAttestedData byte = 0x40
	FlagExtensions   byte = 0x80
)

// Client data types.
const (
	TypeCreate = "webauthn.create"
	TypeGet    = "webauthn.get"
)

const (
	FormatNone = "none"
	AlgES256   = -7

	coseKeyTypeEC2 = 2
	coseCurveP256  = 1

	rpIDHashLen = 32
	aaguidLen   = 16
	minAuthData = rpIDHashLen + 1 + 4
)

var (
	ErrMalformed      = errors.New("malformed authenticator data")
	ErrClientData     = errors.New("client data mismatch")
	ErrUnsupportedAlg = errors.New("unsupported credential algorithm")
)

// ClientData is the JSON the client hashes into every signature.
type ClientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

// NewClientData encodes client data for challenge.
func NewClientData(typ string, challenge []byte, origin string) ([]byte, error) {
	return json.Marshal(ClientData{
		Type:      typ,
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
		Origin:    origin,
	})
}

// CheckClientData verifies type, challenge and origin.
func CheckClientData(raw []byte, typ string, challenge []byte, origin string) error {
	var cd ClientData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return fmt.Errorf("%w: %v", ErrClientData, err)
	}
	got, err := base64.RawURLEncoding.DecodeString(cd.Challenge)
	if err != nil {
		return fmt.Errorf("%w: challenge encoding", ErrClientData)
	}
	switch {
	case cd.Type != typ:
		return fmt.Errorf("%w: type %q", ErrClientData, cd.Type)
	case !bytes.Equal(got, challenge):
		return fmt.Errorf("%w: challenge", ErrClientData)
	case cd.Origin != origin:
		return fmt.Errorf("%w: origin %q", ErrClientData, cd.Origin)
	}
	return nil
}

// AuthData is parsed authenticator data. CredentialID, AAGUID and PublicKey
// are only set when FlagAttestedData is present.
type AuthData struct {
	RPIDHash     [rpIDHashLen]byte
	Flags        byte
	SignCount    uint32
	AAGUID       [aaguidLen]byte
	CredentialID []byte
	PublicKey    []byte // COSE_Key
}

// RPIDHash returns SHA-256 of the relying party ID.
func RPIDHash(rpID string) [rpIDHashLen]byte { return sha256.Sum256([]byte(rpID)) }

func (a AuthData) Has(flag byte) bool { return a.Flags&flag == flag }

// Marshal encodes a as authenticator data bytes.
func (a AuthData) Marshal() []byte {
	b := make([]byte, 0, minAuthData+aaguidLen+2+len(a.CredentialID)+len(a.PublicKey))
	b = append(b, a.RPIDHash[:]...)
	b = append(b, a.Flags)
	b = binary.BigEndian.AppendUint32(b, a.SignCount)
	if a.Has(FlagAttestedData) {
		b = append(b, a.AAGUID[:]...)
		b = binary.BigEndian.AppendUint16(b, uint16(len(a.CredentialID)))
		b = append(b, a.CredentialID...)
		b = append(b, a.PublicKey...)
	}
	return b
}

// ParseAuthData decodes authenticator data.
func ParseAuthData(b []byte) (AuthData, error) {
	var a AuthData
	if len(b) < minAuthData {
		return a, ErrMalformed
	}
	copy(a.RPIDHash[:], b[:rpIDHashLen])
	a.Flags = b[rpIDHashLen]
	a.SignCount = binary.BigEndian.Uint32(b[rpIDHashLen+1:])
	rest := b[minAuthData:]

	if a.Has(FlagExtensions) {
		return a, fmt.Errorf("%w: extensions not supported", ErrMalformed)
	}
	if !a.Has(FlagAttestedData) {
		if len(rest) != 0 {
			return a, fmt.Errorf("%w: trailing bytes", ErrMalformed)
		}
		return a, nil
	}

	if len(rest) < aaguidLen+2 {
		return a, ErrMalformed
	}
	copy(a.AAGUID[:], rest[:aaguidLen])
	n := int(binary.BigEndian.Uint16(rest[aaguidLen:]))
	rest = rest[aaguidLen+2:]
	if n == 0 || len(rest) < n {
		return a, ErrMalformed
	}
	a.CredentialID = append([]byte(nil), rest[:n]...)
	rest = rest[n:]

	var key cbor.RawMessage
	trailing, err := cbor.UnmarshalFirst(rest, &key)
	if err != nil {
		return a, fmt.Errorf("%w: credential key: %v", ErrMalformed, err)
	}
	if len(trailing) != 0 {
		return a, fmt.Errorf("%w: trailing bytes", ErrMalformed)
	}
	a.PublicKey = []byte(key)
	return a, nil
}

// AttestationObject is the CBOR map returned by credential creation.
type AttestationObject struct {
	Format   string         `cbor:"fmt"`
	AttStmt  map[string]any `cbor:"attStmt"`
	AuthData []byte         `cbor:"authData"`
}

// MarshalNoneAttestation wraps authData in a "none" attestation object.
func MarshalNoneAttestation(authData []byte) ([]byte, error) {
	return cbor.Marshal(AttestationObject{
		Format:   FormatNone,
		AttStmt:  map[string]any{},
		AuthData: authData,
	})
}

// ParseAttestation decodes an attestation object.
func ParseAttestation(b []byte) (AttestationObject, error) {
	var obj AttestationObject
	if err := cbor.Unmarshal(b, &obj); err != nil {
		return obj, fmt.Errorf("%w: attestation object: %v", ErrMalformed, err)
	}
	return obj, nil
}

type coseKey struct {
	Kty int    `cbor:"1,keyasint"`
	Alg int    `cbor:"3,keyasint"`
	Crv int    `cbor:"-1,keyasint"`
	X   []byte `cbor:"-2,keyasint"`
	Y   []byte `cbor:"-3,keyasint"`
}

// EncodeCOSEKey encodes a P-256 public key as an ES256 COSE_Key.
func EncodeCOSEKey(pub *ecdsa.PublicKey) ([]byte, error) {
	if pub == nil || pub.Curve != elliptic.P256() {
		return nil, ErrUnsupportedAlg
	}
	return cbor.Marshal(coseKey{
		Kty: coseKeyTypeEC2,
		Alg: AlgES256,
		Crv: coseCurveP256,
		X:   pub.X.FillBytes(make([]byte, 32)),
		Y:   pub.Y.FillBytes(make([]byte, 32)),
	})
}

// DecodeCOSEKey parses an ES256 COSE_Key.
func DecodeCOSEKey(b []byte) (*ecdsa.PublicKey, error) {
	var k coseKey
	if err := cbor.Unmarshal(b, &k); err != nil {
		return nil, fmt.Errorf("%w: cose key: %v", ErrMalformed, err)
	}
	if k.Kty != coseKeyTypeEC2 || k.Alg != AlgES256 || k.Crv != coseCurveP256 {
		return nil, ErrUnsupportedAlg
	}
	if len(k.X) != 32 || len(k.Y) != 32 {
		return nil, fmt.Errorf("%w: cose key coordinates", ErrMalformed)
	}
	curve := elliptic.P256()
	x, y := new(big.Int).SetBytes(k.X), new(big.Int).SetBytes(k.Y)
	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("%w: point not on curve", ErrMalformed)
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// SignedDigest is the ES256 message digest: SHA-256(authData || SHA-256(clientData)).
func SignedDigest(authData, clientDataJSON []byte) []byte {
	cd := sha256.Sum256(clientDataJSON)
	h := sha256.New()
	h.Write(authData)
	h.Write(cd[:])
	return h.Sum(nil)
}

// VerifyES256 checks an ASN.1 ECDSA signature over authData and client data.
func VerifyES256(pub *ecdsa.PublicKey, authData, clientDataJSON, sig []byte) bool {
	return ecdsa.VerifyASN1(pub, SignedDigest(authData, clientDataJSON), sig)
}
