package biometric

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"securechat/internal/crypto"
	"securechat/internal/domain"
	"securechat/internal/metrics"
	"securechat/internal/protocol/webauthn"
	"securechat/internal/services/factor"
	"securechat/internal/util/clock"
)

// StorageKey is the SecureStore slot of the registered credential.
const StorageKey = "biometric_credential"

const challengeBytes = 32

// Config describes the relying party. Zero values pick defaults.
type Config struct {
	RPID    string
	RPName  string
	Origin  string
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.RPID == "" {
		c.RPID = "securechat.local"
	}
	if c.RPName == "" {
		c.RPName = "securechat"
	}
	if c.Origin == "" {
		c.Origin = "securechat://" + c.RPID
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

// Gate implements domain.BiometricService.
type Gate struct {
	auth    domain.Authenticator
	store   domain.SecureStore
	signer  *factor.Signer
	clock   clock.TimeProvider
	cfg     Config
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New returns a Gate. auth may be nil on platforms without an authenticator.
func New(
	auth domain.Authenticator,
	store domain.SecureStore,
	signer *factor.Signer,
	clk clock.TimeProvider,
	cfg Config,
	log zerolog.Logger,
	m *metrics.Metrics,
) *Gate {
	if clk == nil {
		clk = clock.DefaultTimeProvider{}
	}
	return &Gate{
		auth:    auth,
		store:   store,
		signer:  signer,
		clock:   clk,
		cfg:     cfg.withDefaults(),
		log:     log.With().Str("component", "biometric").Logger(),
		metrics: m,
	}
}

// IsSupported reports whether an authenticator is present and secure random
// numbers are available.
func (g *Gate) IsSupported() bool {
	if g.auth == nil || !g.auth.Available() {
		return false
	}
	_, err := crypto.RandomBytes(1)
	return err == nil
}

// Register creates and stores a credential bound to userHandle (the identity
// fingerprint). Any previous credential is replaced.
func (g *Gate) Register(ctx context.Context, userHandle string) (domain.BiometricCredential, error) {
	cred, err := g.register(ctx, userHandle)
	g.metrics.Biometric("register", err)
	return cred, err
}

func (g *Gate) register(ctx context.Context, userHandle string) (domain.BiometricCredential, error) {
	if !g.IsSupported() {
		return domain.BiometricCredential{}, domain.ErrBiometricUnsupported
	}
	if userHandle == "" {
		return domain.BiometricCredential{}, errors.New("biometric: empty user handle")
	}
	challenge, err := crypto.RandomBytes(challengeBytes)
	if err != nil {
		return domain.BiometricCredential{}, err
	}

	actx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	resp, err := g.auth.MakeCredential(actx, domain.CredentialCreationOptions{
		Challenge:        challenge,
		RPID:             g.cfg.RPID,
		RPName:           g.cfg.RPName,
		UserID:           []byte(userHandle),
		UserName:         userHandle,
		Algorithms:       []int{domain.COSEAlgES256},
		UserVerification: true,
		Timeout:          g.cfg.Timeout,
	})
	if err != nil {
		return domain.BiometricCredential{}, fmt.Errorf("%w: %v", domain.ErrAuthenticatorError, err)
	}

	cred, err := g.verifyAttestation(resp, challenge, userHandle)
	if err != nil {
		g.log.Warn().Err(err).Msg("attestation rejected")
		return domain.BiometricCredential{}, fmt.Errorf("%w: %v", domain.ErrAuthenticatorError, err)
	}
	old, hadOld, err := g.Credential(ctx)
	if err != nil {
		return domain.BiometricCredential{}, err
	}
	if err := g.store.Put(ctx, StorageKey, cred); err != nil {
		if ferr := g.auth.Forget(ctx, cred.CredentialID); ferr != nil {
			g.log.Warn().Err(ferr).Msg("could not discard new credential key")
		}
		return domain.BiometricCredential{}, err
	}
	if hadOld && !bytes.Equal(old.CredentialID, cred.CredentialID) {
		if err := g.auth.Forget(ctx, old.CredentialID); err != nil {
			g.log.Warn().Err(err).Msg("could not discard replaced credential key")
		}
	}
	g.log.Info().Str("aaguid", cred.AAGUID).Msg("credential registered")
	return cred, nil
}

func (g *Gate) verifyAttestation(
	resp domain.AttestationResponse,
	challenge []byte,
	userHandle string,
) (domain.BiometricCredential, error) {
	if err := webauthn.CheckClientData(resp.ClientDataJSON, webauthn.TypeCreate, challenge, g.cfg.Origin); err != nil {
		return domain.BiometricCredential{}, err
	}
	obj, err := webauthn.ParseAttestation(resp.AttestationObject)
	if err != nil {
		return domain.BiometricCredential{}, err
	}
	if obj.Format != webauthn.FormatNone {
		return domain.BiometricCredential{}, fmt.Errorf("unsupported attestation format %q", obj.Format)
	}
	ad, err := webauthn.ParseAuthData(obj.AuthData)
	if err != nil {
		return domain.BiometricCredential{}, err
	}
	if err := g.checkAuthData(ad); err != nil {
		return domain.BiometricCredential{}, err
	}
	if !ad.Has(webauthn.FlagAttestedData) || !bytes.Equal(ad.CredentialID, resp.CredentialID) {
		return domain.BiometricCredential{}, errors.New("credential id mismatch")
	}
	pub, err := webauthn.DecodeCOSEKey(ad.PublicKey)
	if err != nil {
		return domain.BiometricCredential{}, err
	}
	pkix, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return domain.BiometricCredential{}, err
	}
	return domain.BiometricCredential{
		CredentialID:      ad.CredentialID,
		UserHandle:        userHandle,
		PublicKey:         pkix,
		AAGUID:            uuid.UUID(ad.AAGUID).String(),
		AttestationFormat: obj.Format,
		SignCount:         ad.SignCount,
		CreatedAt:         g.clock.Now().Unix(),
	}, nil
}

// Assert requests and verifies an assertion for the stored credential.
func (g *Gate) Assert(ctx context.Context) (domain.AssertionResult, error) {
	res, err := g.assert(ctx)
	g.metrics.Biometric("assert", err)
	return res, err
}

func (g *Gate) assert(ctx context.Context) (domain.AssertionResult, error) {
	if !g.IsSupported() {
		return domain.AssertionResult{}, domain.ErrBiometricUnsupported
	}
	cred, ok, err := g.Credential(ctx)
	if err != nil {
		return domain.AssertionResult{}, err
	}
	if !ok {
		return domain.AssertionResult{}, domain.ErrNoCredentialRegistered
	}
	challenge, err := crypto.RandomBytes(challengeBytes)
	if err != nil {
		return domain.AssertionResult{}, err
	}

	actx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	resp, err := g.auth.GetAssertion(actx, domain.CredentialRequestOptions{
		Challenge:          challenge,
		RPID:               g.cfg.RPID,
		AllowCredentialIDs: [][]byte{cred.CredentialID},
		UserVerification:   true,
		Timeout:            g.cfg.Timeout,
	})
	if err != nil {
		return domain.AssertionResult{}, fmt.Errorf("%w: %v", domain.ErrAuthenticatorError, err)
	}

	count, err := g.verifyAssertion(resp, cred, challenge)
	if err != nil {
		g.log.Warn().Err(err).Msg("assertion rejected")
		return domain.AssertionResult{}, fmt.Errorf("%w: %v", domain.ErrAuthenticatorError, err)
	}

	cred.SignCount = count
	if err := g.store.Put(ctx, StorageKey, cred); err != nil {
		return domain.AssertionResult{}, err
	}
	proof, err := g.signer.Issue(domain.FactorBiometric, cred.UserHandle, g.clock.Now())
	if err != nil {
		return domain.AssertionResult{}, err
	}
	return domain.AssertionResult{
		CredentialID: cred.CredentialID,
		UserHandle:   cred.UserHandle,
		SignCount:    count,
		Proof:        proof,
	}, nil
}

func (g *Gate) verifyAssertion(
	resp domain.AssertionResponse,
	cred domain.BiometricCredential,
	challenge []byte,
) (uint32, error) {
	if !bytes.Equal(resp.CredentialID, cred.CredentialID) {
		return 0, errors.New("credential id mismatch")
	}
	if len(resp.UserHandle) > 0 && string(resp.UserHandle) != cred.UserHandle {
		return 0, errors.New("user handle mismatch")
	}
	if err := webauthn.CheckClientData(resp.ClientDataJSON, webauthn.TypeGet, challenge, g.cfg.Origin); err != nil {
		return 0, err
	}
	ad, err := webauthn.ParseAuthData(resp.AuthenticatorData)
	if err != nil {
		return 0, err
	}
	if err := g.checkAuthData(ad); err != nil {
		return 0, err
	}

	parsed, err := x509.ParsePKIXPublicKey(cred.PublicKey)
	if err != nil {
		return 0, err
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return 0, webauthn.ErrUnsupportedAlg
	}
	if !webauthn.VerifyES256(pub, resp.AuthenticatorData, resp.ClientDataJSON, resp.Signature) {
		return 0, errors.New("signature does not verify")
	}
	if (ad.SignCount != 0 || cred.SignCount != 0) && ad.SignCount <= cred.SignCount {
		return 0, fmt.Errorf("sign counter went from %d to %d", cred.SignCount, ad.SignCount)
	}
	return ad.SignCount, nil
}

func (g *Gate) checkAuthData(ad webauthn.AuthData) error {
	if ad.RPIDHash != webauthn.RPIDHash(g.cfg.RPID) {
		return errors.New("rp id hash mismatch")
	}
	if !ad.Has(webauthn.FlagUserPresent) || !ad.Has(webauthn.FlagUserVerified) {
		return errors.New("user presence and verification required")
	}
	return nil
}

// Credential returns the stored credential, if any.
func (g *Gate) Credential(ctx context.Context) (domain.BiometricCredential, bool, error) {
	var cred domain.BiometricCredential
	ok, err := g.store.Get(ctx, StorageKey, &cred)
	if err != nil || !ok {
		return domain.BiometricCredential{}, false, err
	}
	return cred, true, nil
}

// Unregister removes the stored credential and its authenticator key.
func (g *Gate) Unregister(ctx context.Context) error {
	cred, ok, err := g.Credential(ctx)
	if err != nil {
		return err
	}
	if ok && g.auth != nil {
		if err := g.auth.Forget(ctx, cred.CredentialID); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrAuthenticatorError, err)
		}
	}
	return g.store.Remove(ctx, StorageKey)
}

// Compile-time assertion that Gate implements domain.BiometricService.
var _ domain.BiometricService = (*Gate)(nil)
