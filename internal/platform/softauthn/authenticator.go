package softauthn

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"securechat/internal/crypto"
	"securechat/internal/domain"
	"securechat/internal/protocol/webauthn"
)

const keyPrefix = "softauthn/"

// AAGUID identifies this authenticator model.
var AAGUID = uuid.MustParse("5ec0c4a7-0000-4000-8000-736563636874")

var (
	ErrNoCredential = errors.New("softauthn: no matching credential")
	ErrUnsupported  = errors.New("softauthn: no supported algorithm requested")
	ErrNotAllowed   = errors.New("softauthn: user presence not confirmed")
)

// PresenceFunc asks the user to confirm an operation. A nil error confirms.
type PresenceFunc func(ctx context.Context, prompt string) error

// AutoConfirm approves every request.
func AutoConfirm(context.Context, string) error { return nil }

type storedKey struct {
	PrivateKey []byte `json:"private_key"` // PKCS#8
	RPID       string `json:"rp_id"`
	UserID     []byte `json:"user_id"`
	SignCount  uint32 `json:"sign_count"`
}

// Authenticator implements domain.Authenticator in software.
type Authenticator struct {
	store    domain.SecureStore
	origin   string
	presence PresenceFunc
	disabled bool
	log      zerolog.Logger

	mu sync.Mutex
}

// Options configure an Authenticator.
type Options struct {
	Origin   string
	Presence PresenceFunc
	// Disabled makes Available report false, as on a machine without an
	// authenticator.
	Disabled bool
	Logger   zerolog.Logger
}

// New returns an Authenticator keeping its keys in store.
func New(store domain.SecureStore, opts Options) *Authenticator {
	presence := opts.Presence
	if presence == nil {
		presence = AutoConfirm
	}
	return &Authenticator{
		store:    store,
		origin:   opts.Origin,
		presence: presence,
		disabled: opts.Disabled,
		log:      opts.Logger.With().Str("component", "softauthn").Logger(),
	}
}

func (a *Authenticator) Available() bool { return !a.disabled }

// MakeCredential creates a new ES256 credential.
func (a *Authenticator) MakeCredential(
	ctx context.Context,
	opts domain.CredentialCreationOptions,
) (domain.AttestationResponse, error) {
	if a.disabled {
		return domain.AttestationResponse{}, domain.ErrBiometricUnsupported
	}
	if !slices.Contains(opts.Algorithms, webauthn.AlgES256) {
		return domain.AttestationResponse{}, ErrUnsupported
	}
	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	if err := a.confirm(ctx, fmt.Sprintf("Create a credential for %s on %s", opts.UserName, opts.RPID)); err != nil {
		return domain.AttestationResponse{}, err
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return domain.AttestationResponse{}, err
	}
	credID, err := crypto.RandomBytes(32)
	if err != nil {
		return domain.AttestationResponse{}, err
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return domain.AttestationResponse{}, err
	}
	defer crypto.Wipe(der)
	cose, err := webauthn.EncodeCOSEKey(&priv.PublicKey)
	if err != nil {
		return domain.AttestationResponse{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.store.Put(ctx, storageKey(credID), storedKey{
		PrivateKey: der,
		RPID:       opts.RPID,
		UserID:     opts.UserID,
	}); err != nil {
		return domain.AttestationResponse{}, err
	}

	auth := webauthn.AuthData{
		RPIDHash:     webauthn.RPIDHash(opts.RPID),
		Flags:        webauthn.FlagUserPresent | webauthn.FlagUserVerified | webauthn.FlagAttestedData,
		AAGUID:       AAGUID,
		CredentialID: credID,
		PublicKey:    cose,
	}
	obj, err := webauthn.MarshalNoneAttestation(auth.Marshal())
	if err != nil {
		return domain.AttestationResponse{}, err
	}
	clientData, err := webauthn.NewClientData(webauthn.TypeCreate, opts.Challenge, a.origin)
	if err != nil {
		return domain.AttestationResponse{}, err
	}
	a.log.Info().Str("credential", hex.EncodeToString(credID[:8])).Msg("credential created")
	return domain.AttestationResponse{
		CredentialID:      credID,
		ClientDataJSON:    clientData,
		AttestationObject: obj,
	}, nil
}

// GetAssertion signs the challenge with the first allowed credential this
// authenticator holds.
func (a *Authenticator) GetAssertion(
	ctx context.Context,
	opts domain.CredentialRequestOptions,
) (domain.AssertionResponse, error) {
	if a.disabled {
		return domain.AssertionResponse{}, domain.ErrBiometricUnsupported
	}
	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	a.mu.Lock()
	defer a.mu.Unlock()

	var (
		credID []byte
		key    storedKey
	)
	for _, id := range opts.AllowCredentialIDs {
		ok, err := a.store.Get(ctx, storageKey(id), &key)
		if err != nil {
			return domain.AssertionResponse{}, err
		}
		if ok && key.RPID == opts.RPID {
			credID = id
			break
		}
	}
	if credID == nil {
		return domain.AssertionResponse{}, ErrNoCredential
	}
	defer crypto.Wipe(key.PrivateKey)

	if err := a.confirm(ctx, "Confirm sign-in on "+opts.RPID); err != nil {
		return domain.AssertionResponse{}, err
	}

	parsed, err := x509.ParsePKCS8PrivateKey(key.PrivateKey)
	if err != nil {
		return domain.AssertionResponse{}, err
	}
	priv, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return domain.AssertionResponse{}, ErrUnsupported
	}

	key.SignCount++
	if err := a.store.Put(ctx, storageKey(credID), key); err != nil {
		return domain.AssertionResponse{}, err
	}

	authData := webauthn.AuthData{
		RPIDHash:  webauthn.RPIDHash(opts.RPID),
		Flags:     webauthn.FlagUserPresent | webauthn.FlagUserVerified,
		SignCount: key.SignCount,
	}.Marshal()
	clientData, err := webauthn.NewClientData(webauthn.TypeGet, opts.Challenge, a.origin)
	if err != nil {
		return domain.AssertionResponse{}, err
	}
	sig, err := ecdsa.SignASN1(rand.Reader, priv, webauthn.SignedDigest(authData, clientData))
	if err != nil {
		return domain.AssertionResponse{}, err
	}
	return domain.AssertionResponse{
		CredentialID:      credID,
		ClientDataJSON:    clientData,
		AuthenticatorData: authData,
		Signature:         sig,
		UserHandle:        key.UserID,
	}, nil
}

// Forget deletes a credential's private key.
func (a *Authenticator) Forget(ctx context.Context, credentialID []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.Remove(ctx, storageKey(credentialID))
}

func (a *Authenticator) confirm(ctx context.Context, prompt string) error {
	if err := a.presence(ctx, prompt); err != nil {
		return fmt.Errorf("%w: %v", ErrNotAllowed, err)
	}
	return ctx.Err()
}

func storageKey(credID []byte) string { return keyPrefix + hex.EncodeToString(credID) }

var _ domain.Authenticator = (*Authenticator)(nil)
