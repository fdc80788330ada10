package identity

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/rs/zerolog"

	"securechat/internal/crypto"
	"securechat/internal/domain"
)

// DefaultBits is the modulus size used when none is configured.
const DefaultBits = 3072

var errKeyMismatch = errors.New("private key does not match identity public key")

// Keyring creates identities and keeps the active one unlocked.
type Keyring struct {
	bits int
	log  zerolog.Logger

	mu      sync.RWMutex
	current domain.Identity
	sealed  *memguard.Enclave
}

// New returns a Keyring generating keys of the given size (0 = DefaultBits).
func New(bits int, log zerolog.Logger) *Keyring {
	if bits == 0 {
		bits = DefaultBits
	}
	return &Keyring{bits: bits, log: log.With().Str("component", "identity").Logger()}
}

// CreateIdentity generates a new key pair. The returned identity carries the
// PKCS#8 private key; the caller persists it and then calls Wipe or Unlock.
func (k *Keyring) CreateIdentity(ctx context.Context) (*domain.Identity, error) {
	priv, err := crypto.GenerateRSA(ctx, k.bits)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrKeyGenerationFailed, err)
	}
	id, err := fromKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrKeyGenerationFailed, err)
	}
	k.log.Info().Str("identity", id.ID.String()).Int("bits", k.bits).Msg("identity created")
	return id, nil
}

// Fingerprint returns the fingerprint of a PKIX public key.
func (k *Keyring) Fingerprint(publicKey []byte) (domain.Fingerprint, error) {
	fp, err := crypto.Fingerprint(publicKey)
	return domain.Fingerprint(fp), err
}

// FingerprintWords renders a fingerprint for reading aloud.
func (k *Keyring) FingerprintWords(publicKey []byte) (string, error) {
	return crypto.FingerprintWords(publicKey)
}

// Recover rebuilds the identity that owns privateKeyDER.
func (k *Keyring) Recover(privateKeyDER []byte) (*domain.Identity, error) {
	priv, err := crypto.ParsePrivateKey(privateKeyDER)
	if err != nil {
		return nil, err
	}
	return fromKey(priv)
}

// Unlock seals id's private key and makes id the active identity. The
// plaintext key in id is wiped.
func (k *Keyring) Unlock(id *domain.Identity) error {
	if id == nil || len(id.PrivateKey) == 0 {
		return domain.ErrNoIdentity
	}
	priv, err := crypto.ParsePrivateKey(id.PrivateKey)
	if err != nil {
		return err
	}
	pub, err := crypto.MarshalPublicKey(&priv.PublicKey)
	if err != nil {
		return err
	}
	want, err := crypto.CanonicalPublicKey(id.PublicKey)
	if err != nil || string(pub) != string(want) {
		return errKeyMismatch
	}

	sealed := memguard.NewEnclave(append([]byte(nil), id.PrivateKey...))
	public := id.Public()
	id.Wipe()

	k.mu.Lock()
	k.sealed = sealed
	k.current = public
	k.mu.Unlock()
	return nil
}

// PrivateKey opens the sealed key of the active identity.
func (k *Keyring) PrivateKey() (*rsa.PrivateKey, error) {
	k.mu.RLock()
	sealed := k.sealed
	k.mu.RUnlock()
	if sealed == nil {
		return nil, domain.ErrNoIdentity
	}
	buf, err := sealed.Open()
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()
	return crypto.ParsePrivateKey(buf.Bytes())
}

// Identity returns the public projection of the active identity.
func (k *Keyring) Identity() (domain.Identity, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.sealed == nil {
		return domain.Identity{}, false
	}
	return k.current.Public(), true
}

// Lock forgets the active identity.
func (k *Keyring) Lock() {
	k.mu.Lock()
	k.sealed = nil
	k.current = domain.Identity{}
	k.mu.Unlock()
}

func fromKey(priv *rsa.PrivateKey) (*domain.Identity, error) {
	pub, err := crypto.MarshalPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	privDER, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	id, err := crypto.IdentityHandle(pub)
	if err != nil {
		return nil, err
	}
	fp, err := crypto.Fingerprint(pub)
	if err != nil {
		return nil, err
	}
	return &domain.Identity{
		ID:          domain.IdentityID(id),
		Fingerprint: domain.Fingerprint(fp),
		PublicKey:   pub,
		PrivateKey:  privDER,
	}, nil
}

// Compile-time assertion that Keyring implements domain.IdentityKeyring.
var _ domain.IdentityKeyring = (*Keyring)(nil)
