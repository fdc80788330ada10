package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/rs/zerolog"

	"securechat/internal/crypto"
	"securechat/internal/domain"
	"securechat/internal/metrics"
	"securechat/internal/util/lock"
)

var (
	errEmptyKey          = errors.New("empty storage key")
	errSecretUnavailable = errors.New("storage secret unavailable")
)

// Options tune a SecureStore. Zero values pick defaults.
type Options struct {
	Iterations int
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

// SecureStore is the encrypted key/value store.
type SecureStore struct {
	backend    domain.Backend
	secret     *memguard.Enclave
	iterations int
	locks      *lock.Keyed
	unseal     func() (*memguard.LockedBuffer, error)
	log        zerolog.Logger
	metrics    *metrics.Metrics
}

// NewSecureStore seals secret into an enclave and wipes the caller's copy.
func NewSecureStore(backend domain.Backend, secret []byte, opts Options) (*SecureStore, error) {
	if backend == nil {
		return nil, errors.New("nil backend")
	}
	if len(secret) == 0 {
		return nil, errors.New("empty storage secret")
	}
	iter := opts.Iterations
	if iter == 0 {
		iter = DefaultIterations
	}
	if iter < crypto.MinPBKDF2Iterations {
		return nil, fmt.Errorf("pbkdf2 iterations %d below minimum %d", iter, crypto.MinPBKDF2Iterations)
	}
	s := &SecureStore{
		backend:    backend,
		secret:     memguard.NewEnclave(secret),
		iterations: iter,
		locks:      lock.NewKeyed(),
		log:        opts.Logger.With().Str("component", "store").Logger(),
		metrics:    opts.Metrics,
	}
	s.unseal = s.secret.Open
	return s, nil
}

// Put JSON-encodes value and stores it sealed under key.
func (s *SecureStore) Put(ctx context.Context, key string, value any) error {
	if key == "" {
		return errEmptyKey
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	defer crypto.Wipe(raw)

	unlock, err := s.locks.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	blob, err := s.withSecret(func(secret []byte) ([]byte, error) {
		return seal(secret, key, raw, s.iterations)
	})
	if err != nil {
		return fmt.Errorf("seal %q: %w", key, err)
	}
	return s.backend.Write(ctx, key, blob)
}

// Get decodes the value under key into out. A missing key reports found=false.
// A blob that cannot be opened or decoded is purged and also reports
// found=false. Backend failures and an unavailable secret return an error and
// leave the record in place.
func (s *SecureStore) Get(ctx context.Context, key string, out any) (bool, error) {
	if key == "" {
		return false, errEmptyKey
	}
	unlock, err := s.locks.Lock(ctx, key)
	if err != nil {
		return false, err
	}
	defer unlock()

	blob, ok, err := s.backend.Read(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %q: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	raw, err := s.withSecret(func(secret []byte) ([]byte, error) {
		return open(secret, key, blob)
	})
	if errors.Is(err, errSecretUnavailable) {
		return false, fmt.Errorf("open %q: %w", key, err)
	}
	if err == nil {
		err = json.Unmarshal(raw, out)
		crypto.Wipe(raw)
		if err != nil {
			err = fmt.Errorf("%w: %v", domain.ErrStorageCorrupted, err)
		}
	}
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("purging unreadable record")
		s.metrics.CorruptedRecord()
		if derr := s.backend.Delete(ctx, key); derr != nil {
			return false, fmt.Errorf("purge %q: %w", key, derr)
		}
		return false, nil
	}
	return true, nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *SecureStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return errEmptyKey
	}
	unlock, err := s.locks.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return s.backend.Delete(ctx, key)
}

// Clear removes every record, taking each key's lock in turn.
func (s *SecureStore) Clear(ctx context.Context) error {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.Remove(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *SecureStore) withSecret(fn func([]byte) ([]byte, error)) ([]byte, error) {
	buf, err := s.unseal()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errSecretUnavailable, err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// Compile-time assertion that SecureStore implements domain.SecureStore.
var _ domain.SecureStore = (*SecureStore)(nil)
