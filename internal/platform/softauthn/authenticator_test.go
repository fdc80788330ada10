package softauthn_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securechat/internal/crypto"
	"securechat/internal/domain"
	"securechat/internal/platform/softauthn"
	"securechat/internal/protocol/webauthn"
	"securechat/internal/store"
)

const (
	rpID   = "securechat.local"
	origin = "securechat://local"
)

func newAuthenticator(t *testing.T, opts softauthn.Options) *softauthn.Authenticator {
	t.Helper()
	ss, err := store.NewSecureStore(store.NewMemoryBackend(), bytes.Repeat([]byte{3}, 32), store.Options{
		Iterations: crypto.MinPBKDF2Iterations,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	opts.Origin = origin
	opts.Logger = zerolog.Nop()
	return softauthn.New(ss, opts)
}

func create(t *testing.T, a *softauthn.Authenticator) domain.AttestationResponse {
	t.Helper()
	resp, err := a.MakeCredential(context.Background(), domain.CredentialCreationOptions{
		Challenge:  []byte("create-challenge"),
		RPID:       rpID,
		UserID:     []byte("fingerprint"),
		UserName:   "alice",
		Algorithms: []int{webauthn.AlgES256},
	})
	require.NoError(t, err)
	return resp
}

func TestMakeCredentialAndAssert(t *testing.T) {
	a := newAuthenticator(t, softauthn.Options{})
	assert.True(t, a.Available())

	att := create(t, a)
	require.NoError(t, webauthn.CheckClientData(att.ClientDataJSON, webauthn.TypeCreate, []byte("create-challenge"), origin))

	obj, err := webauthn.ParseAttestation(att.AttestationObject)
	require.NoError(t, err)
	authData, err := webauthn.ParseAuthData(obj.AuthData)
	require.NoError(t, err)
	assert.Equal(t, att.CredentialID, authData.CredentialID)
	assert.Equal(t, webauthn.RPIDHash(rpID), authData.RPIDHash)
	pub, err := webauthn.DecodeCOSEKey(authData.PublicKey)
	require.NoError(t, err)

	for want := uint32(1); want <= 2; want++ {
		resp, err := a.GetAssertion(context.Background(), domain.CredentialRequestOptions{
			Challenge:          []byte("get-challenge"),
			RPID:               rpID,
			AllowCredentialIDs: [][]byte{att.CredentialID},
		})
		require.NoError(t, err)
		assert.Equal(t, []byte("fingerprint"), resp.UserHandle)
		assert.True(t, webauthn.VerifyES256(pub, resp.AuthenticatorData, resp.ClientDataJSON, resp.Signature))

		ad, err := webauthn.ParseAuthData(resp.AuthenticatorData)
		require.NoError(t, err)
		assert.Equal(t, want, ad.SignCount)
	}
}

func TestGetAssertion_UnknownCredential(t *testing.T) {
	a := newAuthenticator(t, softauthn.Options{})
	att := create(t, a)

	_, err := a.GetAssertion(context.Background(), domain.CredentialRequestOptions{
		RPID:               rpID,
		AllowCredentialIDs: [][]byte{[]byte("nope")},
	})
	assert.ErrorIs(t, err, softauthn.ErrNoCredential)

	_, err = a.GetAssertion(context.Background(), domain.CredentialRequestOptions{
		RPID:               "other.example",
		AllowCredentialIDs: [][]byte{att.CredentialID},
	})
	assert.ErrorIs(t, err, softauthn.ErrNoCredential)

	require.NoError(t, a.Forget(context.Background(), att.CredentialID))
	_, err = a.GetAssertion(context.Background(), domain.CredentialRequestOptions{
		RPID:               rpID,
		AllowCredentialIDs: [][]byte{att.CredentialID},
	})
	assert.ErrorIs(t, err, softauthn.ErrNoCredential)
}

func TestPresenceDenied(t *testing.T) {
	a := newAuthenticator(t, softauthn.Options{
		Presence: func(context.Context, string) error { return errors.New("user cancelled") },
	})
	_, err := a.MakeCredential(context.Background(), domain.CredentialCreationOptions{
		RPID:       rpID,
		Algorithms: []int{webauthn.AlgES256},
	})
	assert.ErrorIs(t, err, softauthn.ErrNotAllowed)
}

func TestUnsupported(t *testing.T) {
	a := newAuthenticator(t, softauthn.Options{})
	_, err := a.MakeCredential(context.Background(), domain.CredentialCreationOptions{
		RPID:       rpID,
		Algorithms: []int{-257},
	})
	assert.ErrorIs(t, err, softauthn.ErrUnsupported)

	off := newAuthenticator(t, softauthn.Options{Disabled: true})
	assert.False(t, off.Available())
	_, err = off.MakeCredential(context.Background(), domain.CredentialCreationOptions{})
	assert.ErrorIs(t, err, domain.ErrBiometricUnsupported)
}
