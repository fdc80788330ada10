package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"securechat/internal/crypto"
	"securechat/internal/domain"
	"securechat/internal/metrics"
	"securechat/internal/services/factor"
	"securechat/internal/util/clock"
)

// SecureStore slots owned by the controller.
const (
	SessionKey  = "session"
	IdentityKey = "identity"
)

// Config tunes the controller. Zero values pick defaults.
type Config struct {
	AuthTimeout     time.Duration
	HighSecurityTTL time.Duration
	// ProofMaxAge bounds how old a FactorProof may be when presented.
	ProofMaxAge time.Duration
	// PurgeCredentialOnLogout also removes the biometric credential.
	PurgeCredentialOnLogout bool
}

func (c Config) withDefaults() Config {
	if c.AuthTimeout == 0 {
		c.AuthTimeout = 45 * time.Second
	}
	if c.HighSecurityTTL == 0 {
		c.HighSecurityTTL = 15 * time.Minute
	}
	if c.ProofMaxAge == 0 {
		c.ProofMaxAge = 2 * time.Minute
	}
	return c
}

// Deps are the controller's collaborators. OTP and Biometric may be nil.
type Deps struct {
	Keyring   domain.IdentityKeyring
	Store     domain.SecureStore
	Accounts  domain.AccountStore
	OTP       domain.OTPService
	Biometric domain.BiometricService
	Signer    *factor.Signer
	Clock     clock.TimeProvider
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
}

// Controller implements domain.SessionService.
type Controller struct {
	keyring   domain.IdentityKeyring
	store     domain.SecureStore
	accounts  domain.AccountStore
	otp       domain.OTPService
	biometric domain.BiometricService
	signer    *factor.Signer
	clock     clock.TimeProvider
	cfg       Config
	log       zerolog.Logger
	metrics   *metrics.Metrics

	mu         sync.Mutex
	state      State
	session    domain.SessionRecord
	usedProofs map[string]struct{}
	observers  []Observer
}

// New returns a controller in the LoggedOut state.
func New(d Deps, cfg Config) *Controller {
	clk := d.Clock
	if clk == nil {
		clk = clock.DefaultTimeProvider{}
	}
	return &Controller{
		keyring:    d.Keyring,
		store:      d.Store,
		accounts:   d.Accounts,
		otp:        d.OTP,
		biometric:  d.Biometric,
		signer:     d.Signer,
		clock:      clk,
		cfg:        cfg.withDefaults(),
		log:        d.Logger.With().Str("component", "session").Logger(),
		metrics:    d.Metrics,
		usedProofs: make(map[string]struct{}),
	}
}

// Subscribe registers fn for state changes.
func (c *Controller) Subscribe(fn Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	lapsed := c.lapseLocked(context.Background())
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if lapsed {
		c.emit(snap)
	}
	return snap
}

// Current returns the active session record.
func (c *Controller) Current() (domain.SessionRecord, bool) {
	s := c.Snapshot()
	return s.Session, s.State == StateLoggedIn
}

// CanSendEphemeral reports whether ephemeral messages are allowed.
func (c *Controller) CanSendEphemeral() bool {
	return c.Snapshot().Level() == domain.LevelHigh
}

// Subject is the identifier second factors are bound to: the identity
// fingerprint of the active session.
func (c *Controller) Subject() (string, error) {
	rec, ok := c.Current()
	if !ok {
		return "", domain.ErrNotLoggedIn
	}
	return rec.Fingerprint.String(), nil
}

// Signup creates a password account bound to this device's identity, minting
// the identity if none exists, and logs in. A signup that fails leaves no
// account behind.
func (c *Controller) Signup(ctx context.Context, creds domain.Credentials) (domain.SessionRecord, error) {
	if creds.Username == "" {
		return domain.SessionRecord{}, errors.New("username is required")
	}
	if !isSecurePassword(creds.Password) {
		return domain.SessionRecord{}, ErrWeakPassword
	}
	var inserted bool
	rec, err := c.authenticate(ctx, domain.AuthPassword, func(ctx context.Context) (domain.SessionRecord, error) {
		if _, exists, err := c.accounts.LookupAccount(ctx, creds.Username); err != nil {
			return domain.SessionRecord{}, err
		} else if exists {
			return domain.SessionRecord{}, domain.ErrAccountExists
		}
		id, err := c.loadIdentity(ctx, true)
		if err != nil {
			return domain.SessionRecord{}, err
		}
		defer id.Wipe()

		hash, salt, err := crypto.HashPassword([]byte(creds.Password))
		if err != nil {
			return domain.SessionRecord{}, err
		}
		displayName := creds.DisplayName
		if displayName == "" {
			displayName = creds.Username.String()
		}
		if err := c.accounts.InsertAccount(ctx, domain.Account{
			Username:     creds.Username,
			DisplayName:  displayName,
			PasswordHash: hash,
			PasswordSalt: salt,
			IdentityID:   id.ID,
			CreatedAt:    c.clock.Now().UnixMilli(),
		}); err != nil {
			return domain.SessionRecord{}, err
		}
		inserted = true
		return c.open(ctx, id, creds.Username, domain.AuthPassword)
	})
	if err != nil && inserted {
		if derr := c.accounts.DeleteAccount(context.WithoutCancel(ctx), creds.Username); derr != nil {
			c.log.Error().Err(derr).Str("user", creds.Username.String()).Msg("could not remove account of failed signup")
		}
	}
	return rec, err
}

// Login authenticates a password account.
func (c *Controller) Login(ctx context.Context, creds domain.Credentials) (domain.SessionRecord, error) {
	return c.authenticate(ctx, domain.AuthPassword, func(ctx context.Context) (domain.SessionRecord, error) {
		acct, ok, err := c.accounts.LookupAccount(ctx, creds.Username)
		if err != nil {
			return domain.SessionRecord{}, err
		}
		if !ok {
			// Spend the same time as a real check.
			crypto.VerifyPassword([]byte(creds.Password), make([]byte, crypto.SaltBytes), nil)
			return domain.SessionRecord{}, domain.ErrInvalidCredentials
		}
		if !crypto.VerifyPassword([]byte(creds.Password), acct.PasswordSalt, acct.PasswordHash) {
			return domain.SessionRecord{}, domain.ErrInvalidCredentials
		}
		id, err := c.loadIdentity(ctx, false)
		if err != nil {
			return domain.SessionRecord{}, err
		}
		defer id.Wipe()
		if id.ID != acct.IdentityID {
			return domain.SessionRecord{}, fmt.Errorf("%w: account is bound to %s", domain.ErrNoIdentity, acct.IdentityID)
		}
		return c.open(ctx, id, acct.Username, domain.AuthPassword)
	})
}

// LoginWithIdentity logs in with the stored identity, creating one if needed.
func (c *Controller) LoginWithIdentity(ctx context.Context) (domain.SessionRecord, error) {
	return c.authenticate(ctx, domain.AuthIdentity, func(ctx context.Context) (domain.SessionRecord, error) {
		id, err := c.loadIdentity(ctx, true)
		if err != nil {
			return domain.SessionRecord{}, err
		}
		defer id.Wipe()
		return c.open(ctx, id, "", domain.AuthIdentity)
	})
}

// LoginWithBiometric logs in with a verified assertion from the registered
// credential. The session starts at Standard; the assertion does not count
// towards elevation.
func (c *Controller) LoginWithBiometric(ctx context.Context) (domain.SessionRecord, error) {
	if c.biometric == nil {
		return domain.SessionRecord{}, domain.ErrBiometricUnsupported
	}
	return c.authenticate(ctx, domain.AuthBiometric, func(ctx context.Context) (domain.SessionRecord, error) {
		res, err := c.biometric.Assert(ctx)
		if err != nil {
			return domain.SessionRecord{}, err
		}
		c.mu.Lock()
		c.usedProofs[res.Proof.ID] = struct{}{}
		c.mu.Unlock()

		id, err := c.loadIdentity(ctx, false)
		if err != nil {
			return domain.SessionRecord{}, err
		}
		defer id.Wipe()
		if res.UserHandle != id.Fingerprint.String() {
			return domain.SessionRecord{}, fmt.Errorf("%w: credential bound to another identity", domain.ErrAuthenticatorError)
		}
		return c.open(ctx, id, "", domain.AuthBiometric)
	})
}

// Restore resumes a persisted session at startup. A missing, unreadable or
// orphaned session leaves the controller LoggedOut.
func (c *Controller) Restore(ctx context.Context) (domain.SessionRecord, bool, error) {
	var rec domain.SessionRecord
	_, err := c.authenticate(ctx, "", func(ctx context.Context) (domain.SessionRecord, error) {
		found, err := c.store.Get(ctx, SessionKey, &rec)
		if err != nil {
			return domain.SessionRecord{}, err
		}
		if !found {
			return domain.SessionRecord{}, errNoSession
		}
		id, err := c.loadIdentity(ctx, false)
		if err != nil || id.ID != rec.IdentityID {
			if err == nil {
				id.Wipe()
			}
			c.log.Warn().Msg("stored session has no matching identity, discarding")
			if rerr := c.store.Remove(ctx, SessionKey); rerr != nil {
				return domain.SessionRecord{}, rerr
			}
			return domain.SessionRecord{}, errNoSession
		}
		if err := c.keyring.Unlock(id); err != nil {
			return domain.SessionRecord{}, err
		}
		if rec.Level == domain.LevelHigh && c.lapsed(rec) {
			rec = standard(rec)
			if err := c.store.Put(ctx, SessionKey, rec); err != nil {
				return domain.SessionRecord{}, err
			}
		}
		return rec, nil
	})
	if errors.Is(err, errNoSession) {
		return domain.SessionRecord{}, false, nil
	}
	if err != nil {
		return domain.SessionRecord{}, false, err
	}
	return rec, true, nil
}

var errNoSession = errors.New("no stored session")

// Elevate switches a Standard session to High on a valid, fresh, unused proof.
func (c *Controller) Elevate(ctx context.Context, proof domain.FactorProof) error {
	err := c.elevate(ctx, proof)
	method := proof.Method.String()
	if proof.Method != domain.FactorOTP && proof.Method != domain.FactorBiometric {
		method = "unknown"
	}
	c.metrics.Elevation(method, err)
	return err
}

func (c *Controller) elevate(ctx context.Context, proof domain.FactorProof) error {
	c.mu.Lock()
	lapsed := c.lapseLocked(ctx)
	lapseSnap := c.snapshotLocked()
	snap, changed, err := c.elevateLocked(ctx, proof)
	c.mu.Unlock()

	if lapsed {
		c.emit(lapseSnap)
	}
	if err != nil {
		if errors.Is(err, domain.ErrElevationDenied) {
			c.log.Warn().Err(err).Str("method", proof.Method.String()).Msg("elevation denied")
		}
		return err
	}
	if changed {
		c.log.Info().Str("method", proof.Method.String()).Msg("elevated to high security")
		c.emit(snap)
	}
	return nil
}

func (c *Controller) elevateLocked(ctx context.Context, proof domain.FactorProof) (Snapshot, bool, error) {
	if c.state != StateLoggedIn {
		return Snapshot{}, false, domain.ErrNotLoggedIn
	}
	if c.session.Level == domain.LevelHigh {
		return Snapshot{}, false, nil
	}
	if err := c.checkProofLocked(proof); err != nil {
		return Snapshot{}, false, err
	}

	rec := c.session
	rec.Level = domain.LevelHigh
	rec.ElevatedAt = c.clock.Now().UnixMilli()
	rec.ElevatedBy = proof.Method
	if err := c.store.Put(ctx, SessionKey, rec); err != nil {
		return Snapshot{}, false, err
	}
	c.usedProofs[proof.ID] = struct{}{}
	c.session = rec
	return c.snapshotLocked(), true, nil
}

func (c *Controller) checkProofLocked(p domain.FactorProof) error {
	now := c.clock.Now()
	switch {
	case c.signer == nil || !c.signer.Verify(p):
		return fmt.Errorf("%w: proof signature invalid", domain.ErrElevationDenied)
	case p.Method != domain.FactorOTP && p.Method != domain.FactorBiometric:
		return fmt.Errorf("%w: unknown factor %q", domain.ErrElevationDenied, p.Method)
	case p.Subject != c.session.Fingerprint.String():
		return fmt.Errorf("%w: proof issued for another subject", domain.ErrElevationDenied)
	case p.VerifiedAt.UnixMilli() < c.session.LoggedInAt:
		return fmt.Errorf("%w: proof predates login", domain.ErrElevationDenied)
	case now.Sub(p.VerifiedAt) > c.cfg.ProofMaxAge || p.VerifiedAt.After(now):
		return fmt.Errorf("%w: proof is stale", domain.ErrElevationDenied)
	}
	if _, used := c.usedProofs[p.ID]; used {
		return fmt.Errorf("%w: proof already used", domain.ErrElevationDenied)
	}
	return nil
}

// Downgrade returns a High session to Standard. Downgrading a Standard
// session is a no-op.
func (c *Controller) Downgrade(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateLoggedIn {
		c.mu.Unlock()
		return domain.ErrNotLoggedIn
	}
	if c.lapseLocked(ctx) {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.emit(snap)
		return nil
	}
	if c.session.Level != domain.LevelHigh {
		c.mu.Unlock()
		return nil
	}
	rec := standard(c.session)
	if err := c.store.Put(ctx, SessionKey, rec); err != nil {
		c.mu.Unlock()
		return err
	}
	c.session = rec
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.log.Info().Msg("downgraded to standard security")
	c.emit(snap)
	return nil
}

// Logout purges the session, the active OTP challenge and, when configured,
// the biometric credential, then locks the keyring. Logging out while logged
// out still purges.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateAuthenticating {
		c.mu.Unlock()
		return domain.ErrLoginInProgress
	}

	var errs []error
	if err := c.store.Remove(ctx, SessionKey); err != nil {
		errs = append(errs, fmt.Errorf("remove session: %w", err))
	}
	if c.otp != nil {
		if err := c.otp.Discard(ctx); err != nil {
			errs = append(errs, fmt.Errorf("discard otp: %w", err))
		}
	}
	if c.cfg.PurgeCredentialOnLogout && c.biometric != nil {
		if err := c.biometric.Unregister(ctx); err != nil {
			errs = append(errs, fmt.Errorf("remove credential: %w", err))
		}
	}
	c.keyring.Lock()

	wasLoggedIn := c.state == StateLoggedIn
	c.state = StateLoggedOut
	c.session = domain.SessionRecord{}
	c.usedProofs = make(map[string]struct{})
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if wasLoggedIn {
		c.log.Info().Msg("logged out")
		c.emit(snap)
	}
	return errors.Join(errs...)
}

// ChangePassword replaces the password of the logged-in account.
func (c *Controller) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	rec, ok := c.Current()
	if !ok {
		return domain.ErrNotLoggedIn
	}
	if rec.Username == "" {
		return fmt.Errorf("%w: session has no password account", domain.ErrInvalidCredentials)
	}
	acct, found, err := c.accounts.LookupAccount(ctx, rec.Username)
	if err != nil {
		return err
	}
	if !found || !crypto.VerifyPassword([]byte(oldPassword), acct.PasswordSalt, acct.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	if !isSecurePassword(newPassword) {
		return ErrWeakPassword
	}
	hash, salt, err := crypto.HashPassword([]byte(newPassword))
	if err != nil {
		return err
	}
	acct.PasswordHash, acct.PasswordSalt = hash, salt
	if err := c.accounts.UpdateAccount(ctx, acct); err != nil {
		return err
	}
	c.log.Info().Str("user", rec.Username.String()).Msg("password changed")
	return nil
}

// authenticate runs fn as the single in-flight authentication, bounded by
// AuthTimeout. mode is empty for Restore, which is not counted as a login.
// A failed login removes any session record fn may have written, including
// one written just before the deadline passed.
func (c *Controller) authenticate(
	ctx context.Context,
	mode domain.AuthMode,
	fn func(context.Context) (domain.SessionRecord, error),
) (domain.SessionRecord, error) {
	c.mu.Lock()
	switch c.state {
	case StateAuthenticating:
		c.mu.Unlock()
		return domain.SessionRecord{}, domain.ErrLoginInProgress
	case StateLoggedIn:
		c.mu.Unlock()
		return domain.SessionRecord{}, domain.ErrAlreadyLoggedIn
	}
	c.state = StateAuthenticating
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)

	actx, cancel := context.WithTimeout(ctx, c.cfg.AuthTimeout)
	defer cancel()
	rec, err := fn(actx)
	if err == nil {
		err = actx.Err()
	}
	if err != nil && mode != "" {
		if rerr := c.store.Remove(context.WithoutCancel(ctx), SessionKey); rerr != nil {
			c.log.Error().Err(rerr).Msg("could not discard session of failed login")
		}
	}

	c.mu.Lock()
	if err != nil {
		c.keyring.Lock()
		c.state = StateLoggedOut
		c.session = domain.SessionRecord{}
	} else {
		c.state = StateLoggedIn
		c.session = rec
	}
	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)

	if mode != "" {
		c.metrics.Login(mode.String(), err)
		if err != nil {
			c.log.Warn().Err(err).Str("mode", mode.String()).Msg("login failed")
		} else {
			c.log.Info().Str("mode", mode.String()).Str("identity", rec.IdentityID.String()).Msg("logged in")
		}
	}
	if err != nil {
		return domain.SessionRecord{}, err
	}
	return rec, nil
}

// open unlocks id, writes a fresh Standard session and returns it.
func (c *Controller) open(
	ctx context.Context,
	id *domain.Identity,
	username domain.Username,
	mode domain.AuthMode,
) (domain.SessionRecord, error) {
	rec := domain.SessionRecord{
		SessionID:   uuid.NewString(),
		IdentityID:  id.ID,
		Fingerprint: id.Fingerprint,
		Username:    username,
		AuthMode:    mode,
		Level:       domain.LevelStandard,
		LoggedInAt:  c.clock.Now().UnixMilli(),
	}
	if err := c.keyring.Unlock(id); err != nil {
		return domain.SessionRecord{}, err
	}
	if err := c.store.Put(ctx, SessionKey, rec); err != nil {
		return domain.SessionRecord{}, err
	}
	return rec, nil
}

// loadIdentity reads the stored identity, minting and persisting one when
// create is set and none exists.
func (c *Controller) loadIdentity(ctx context.Context, create bool) (*domain.Identity, error) {
	var id domain.Identity
	ok, err := c.store.Get(ctx, IdentityKey, &id)
	if err != nil {
		return nil, err
	}
	if ok {
		return &id, nil
	}
	if !create {
		return nil, domain.ErrNoIdentity
	}
	created, err := c.keyring.CreateIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(ctx, IdentityKey, created); err != nil {
		created.Wipe()
		return nil, err
	}
	return created, nil
}

func (c *Controller) lapsed(rec domain.SessionRecord) bool {
	elevated := time.UnixMilli(rec.ElevatedAt)
	return c.clock.Now().Sub(elevated) > c.cfg.HighSecurityTTL
}

// lapseLocked drops an expired High level and rewrites the stored record. It
// reports whether the level changed; the caller emits after unlocking.
func (c *Controller) lapseLocked(ctx context.Context) bool {
	if c.state != StateLoggedIn || c.session.Level != domain.LevelHigh || !c.lapsed(c.session) {
		return false
	}
	c.session = standard(c.session)
	if err := c.store.Put(context.WithoutCancel(ctx), SessionKey, c.session); err != nil {
		c.log.Warn().Err(err).Msg("could not persist lapsed session")
	}
	c.log.Info().Msg("high security lapsed")
	return true
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{State: c.state, Session: c.session}
}

func (c *Controller) emit(s Snapshot) {
	c.mu.Lock()
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()
	for _, fn := range observers {
		fn(s)
	}
}

func standard(rec domain.SessionRecord) domain.SessionRecord {
	rec.Level = domain.LevelStandard
	rec.ElevatedAt = 0
	rec.ElevatedBy = ""
	return rec
}

// Compile-time assertion that Controller implements domain.SessionService.
var _ domain.SessionService = (*Controller)(nil)
