package webauthn_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securechat/internal/protocol/webauthn"
)

func TestClientData(t *testing.T) {
	challenge := []byte("0123456789abcdef0123456789abcdef")
	raw, err := webauthn.NewClientData(webauthn.TypeGet, challenge, "securechat://local")
	require.NoError(t, err)

	assert.NoError(t, webauthn.CheckClientData(raw, webauthn.TypeGet, challenge, "securechat://local"))
	assert.ErrorIs(t, webauthn.CheckClientData(raw, webauthn.TypeCreate, challenge, "securechat://local"), webauthn.ErrClientData)
	assert.ErrorIs(t, webauthn.CheckClientData(raw, webauthn.TypeGet, []byte("other"), "securechat://local"), webauthn.ErrClientData)
	assert.ErrorIs(t, webauthn.CheckClientData(raw, webauthn.TypeGet, challenge, "https://evil"), webauthn.ErrClientData)
	assert.ErrorIs(t, webauthn.CheckClientData([]byte("{"), webauthn.TypeGet, challenge, ""), webauthn.ErrClientData)
}

func TestAuthData_AttestedRoundTrip(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	cose, err := webauthn.EncodeCOSEKey(&priv.PublicKey)
	require.NoError(t, err)

	in := webauthn.AuthData{
		RPIDHash:     webauthn.RPIDHash("securechat.local"),
		Flags:        webauthn.FlagUserPresent | webauthn.FlagUserVerified | webauthn.FlagAttestedData,
		SignCount:    7,
		AAGUID:       [16]byte{1, 2, 3},
		CredentialID: []byte("cred-id"),
		PublicKey:    cose,
	}
	obj, err := webauthn.MarshalNoneAttestation(in.Marshal())
	require.NoError(t, err)

	att, err := webauthn.ParseAttestation(obj)
	require.NoError(t, err)
	assert.Equal(t, webauthn.FormatNone, att.Format)

	out, err := webauthn.ParseAuthData(att.AuthData)
	require.NoError(t, err)
	assert.Equal(t, in.RPIDHash, out.RPIDHash)
	assert.Equal(t, uint32(7), out.SignCount)
	assert.True(t, out.Has(webauthn.FlagUserVerified))
	assert.Equal(t, in.CredentialID, out.CredentialID)
	assert.Equal(t, in.AAGUID, out.AAGUID)

	pub, err := webauthn.DecodeCOSEKey(out.PublicKey)
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(pub))
}

func TestAuthData_Malformed(t *testing.T) {
	_, err := webauthn.ParseAuthData([]byte{1, 2, 3})
	assert.ErrorIs(t, err, webauthn.ErrMalformed)

	a := webauthn.AuthData{Flags: webauthn.FlagUserPresent}
	b := append(a.Marshal(), 0xff)
	_, err = webauthn.ParseAuthData(b)
	assert.ErrorIs(t, err, webauthn.ErrMalformed)

	a.Flags |= webauthn.FlagAttestedData
	a.CredentialID = []byte("id")
	a.PublicKey = []byte{0xff}
	_, err = webauthn.ParseAuthData(a.Marshal())
	assert.ErrorIs(t, err, webauthn.ErrMalformed)
}

func TestVerifyES256(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	authData := webauthn.AuthData{Flags: webauthn.FlagUserPresent, SignCount: 1}.Marshal()
	clientData := []byte(`{"type":"webauthn.get"}`)

	sig, err := ecdsa.SignASN1(rand.Reader, priv, webauthn.SignedDigest(authData, clientData))
	require.NoError(t, err)
	assert.True(t, webauthn.VerifyES256(&priv.PublicKey, authData, clientData, sig))
	assert.False(t, webauthn.VerifyES256(&priv.PublicKey, authData, []byte(`{}`), sig))
}

func TestDecodeCOSEKey_RejectsOtherCurves(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	_, err = webauthn.EncodeCOSEKey(&priv.PublicKey)
	assert.ErrorIs(t, err, webauthn.ErrUnsupportedAlg)
}
