package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"securechat/internal/crypto"
	"securechat/internal/domain"
	"securechat/internal/metrics"
	"securechat/internal/services/factor"
	"securechat/internal/util/clock"
	"securechat/internal/util/lock"
)

// StorageKey is the SecureStore slot of the active challenge.
const StorageKey = "otp_challenge"

// Config tunes the service. Zero values pick defaults.
type Config struct {
	Digits int
	TTL    time.Duration
	// IssueInterval and IssueBurst bound how often one user may request a code.
	IssueInterval time.Duration
	IssueBurst    int
}

func (c Config) withDefaults() Config {
	if c.Digits == 0 {
		c.Digits = 6
	}
	if c.TTL == 0 {
		c.TTL = 5 * time.Minute
	}
	if c.IssueInterval == 0 {
		c.IssueInterval = 30 * time.Second
	}
	if c.IssueBurst == 0 {
		c.IssueBurst = 3
	}
	return c
}

// Service implements domain.OTPService.
type Service struct {
	store    domain.SecureStore
	delivery domain.CodeDelivery
	signer   *factor.Signer
	clock    clock.TimeProvider
	cfg      Config
	log      zerolog.Logger
	metrics  *metrics.Metrics

	mu *lock.Mutex

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter
}

// New returns an OTP service. store should be an ephemeral (memory-backed)
// SecureStore.
func New(
	store domain.SecureStore,
	delivery domain.CodeDelivery,
	signer *factor.Signer,
	clk clock.TimeProvider,
	cfg Config,
	log zerolog.Logger,
	m *metrics.Metrics,
) *Service {
	if clk == nil {
		clk = clock.DefaultTimeProvider{}
	}
	return &Service{
		store:    store,
		delivery: delivery,
		signer:   signer,
		clock:    clk,
		cfg:      cfg.withDefaults(),
		log:      log.With().Str("component", "otp").Logger(),
		metrics:  m,
		mu:       lock.NewMutex(),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Issue creates a challenge for userID, replacing any active one, and hands
// the code to the delivery channel.
func (s *Service) Issue(ctx context.Context, userID string) (domain.OTPChallenge, error) {
	if userID == "" {
		return domain.OTPChallenge{}, errors.New("otp: empty user id")
	}
	now := s.clock.Now()
	if !s.limiter(userID).AllowN(now, 1) {
		return domain.OTPChallenge{}, domain.ErrRateLimited
	}

	if err := s.mu.Lock(ctx); err != nil {
		return domain.OTPChallenge{}, err
	}
	defer s.mu.Unlock()

	code, err := crypto.RandomDigits(s.cfg.Digits)
	if err != nil {
		return domain.OTPChallenge{}, err
	}
	ch := domain.OTPChallenge{
		ID:        uuid.NewString(),
		UserID:    userID,
		Code:      code,
		ExpiresAt: now.Add(s.cfg.TTL).UTC(),
	}
	if err := s.store.Put(ctx, StorageKey, ch); err != nil {
		return domain.OTPChallenge{}, fmt.Errorf("store challenge: %w", err)
	}
	if err := s.delivery.DeliverCode(ctx, userID, code, ch.ExpiresAt); err != nil {
		if rerr := s.store.Remove(ctx, StorageKey); rerr != nil {
			s.log.Error().Err(rerr).Msg("failed to drop undelivered challenge")
		}
		return domain.OTPChallenge{}, fmt.Errorf("deliver code: %w", err)
	}
	s.metrics.IssuedOTP()
	s.log.Info().Str("challenge", ch.ID).Time("expires_at", ch.ExpiresAt).Msg("challenge issued")
	return ch, nil
}

// Verify checks code against the active challenge and consumes it.
func (s *Service) Verify(ctx context.Context, code string) (domain.FactorProof, error) {
	proof, err := s.verify(ctx, code)
	s.metrics.VerifiedOTP(err)
	return proof, err
}

func (s *Service) verify(ctx context.Context, code string) (domain.FactorProof, error) {
	if err := s.mu.Lock(ctx); err != nil {
		return domain.FactorProof{}, err
	}
	defer s.mu.Unlock()

	var ch domain.OTPChallenge
	ok, err := s.store.Get(ctx, StorageKey, &ch)
	if err != nil {
		return domain.FactorProof{}, err
	}
	if !ok {
		return domain.FactorProof{}, domain.ErrNoChallengeFound
	}
	if err := s.consume(ctx, ch.ID); err != nil {
		return domain.FactorProof{}, err
	}

	now := s.clock.Now()
	if now.After(ch.ExpiresAt) {
		return domain.FactorProof{}, domain.ErrChallengeExpired
	}
	if len(code) != len(ch.Code) || subtle.ConstantTimeCompare([]byte(code), []byte(ch.Code)) != 1 {
		return domain.FactorProof{}, domain.ErrCodeMismatch
	}
	s.log.Info().Str("challenge", ch.ID).Msg("challenge verified")
	return s.signer.Issue(domain.FactorOTP, ch.UserID, now)
}

// consume removes the challenge only if it is still the one identified by
// id; a challenge replaced in the meantime is left for its own verify.
func (s *Service) consume(ctx context.Context, id string) error {
	var current domain.OTPChallenge
	ok, err := s.store.Get(ctx, StorageKey, &current)
	if err != nil {
		return err
	}
	if !ok || current.ID != id {
		return domain.ErrNoChallengeFound
	}
	return s.store.Remove(ctx, StorageKey)
}

// Discard drops any active challenge.
func (s *Service) Discard(ctx context.Context) error {
	if err := s.mu.Lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.store.Remove(ctx, StorageKey)
}

func (s *Service) limiter(userID string) *rate.Limiter {
	s.limMu.Lock()
	defer s.limMu.Unlock()
	l, ok := s.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Every(s.cfg.IssueInterval), s.cfg.IssueBurst)
		s.limiters[userID] = l
	}
	return l
}

// Compile-time assertion that Service implements domain.OTPService.
var _ domain.OTPService = (*Service)(nil)
