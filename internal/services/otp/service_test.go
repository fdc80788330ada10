package otp_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securechat/internal/crypto"
	"securechat/internal/domain"
	"securechat/internal/services/factor"
	"securechat/internal/services/otp"
	"securechat/internal/store"
	"securechat/internal/util/clock"
)

type captureDelivery struct {
	mu    sync.Mutex
	codes []string
	fail  error
}

func (c *captureDelivery) DeliverCode(_ context.Context, _ string, code string, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.codes = append(c.codes, code)
	return nil
}

func (c *captureDelivery) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[len(c.codes)-1]
}

type fixture struct {
	svc      *otp.Service
	store    *store.SecureStore
	signer   *factor.Signer
	clock    *clock.Fake
	delivery *captureDelivery
}

func newFixture(t *testing.T, cfg otp.Config) fixture {
	t.Helper()
	ss, err := store.NewSecureStore(store.NewMemoryBackend(), bytes.Repeat([]byte{1}, 32), store.Options{
		Iterations: crypto.MinPBKDF2Iterations,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	signer, err := factor.NewSigner()
	require.NoError(t, err)
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	d := &captureDelivery{}
	return fixture{
		svc:      otp.New(ss, d, signer, clk, cfg, zerolog.Nop(), nil),
		store:    ss,
		signer:   signer,
		clock:    clk,
		delivery: d,
	}
}

func TestIssueVerify_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, otp.Config{})

	ch, err := f.svc.Issue(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, ch.Code, 6)
	assert.True(t, f.clock.Now().Add(5*time.Minute).Equal(ch.ExpiresAt))
	assert.Equal(t, ch.Code, f.delivery.last())

	proof, err := f.svc.Verify(ctx, ch.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.FactorOTP, proof.Method)
	assert.Equal(t, "alice", proof.Subject)
	assert.True(t, f.signer.Verify(proof))

	_, err = f.svc.Verify(ctx, ch.Code)
	assert.ErrorIs(t, err, domain.ErrNoChallengeFound, "challenge is single use")
}

func TestVerify_NoChallenge(t *testing.T) {
	f := newFixture(t, otp.Config{})
	_, err := f.svc.Verify(context.Background(), "123456")
	assert.ErrorIs(t, err, domain.ErrNoChallengeFound)
}

func TestVerify_MismatchConsumes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, otp.Config{})

	ch, err := f.svc.Issue(ctx, "alice")
	require.NoError(t, err)
	wrong := "000000"
	if ch.Code == wrong {
		wrong = "111111"
	}
	_, err = f.svc.Verify(ctx, wrong)
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)

	_, err = f.svc.Verify(ctx, ch.Code)
	assert.ErrorIs(t, err, domain.ErrNoChallengeFound)

	_, err = f.svc.Issue(ctx, "alice")
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, "12")
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)
}

func TestVerify_Expiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, otp.Config{})

	ch, err := f.svc.Issue(ctx, "alice")
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)
	_, err = f.svc.Verify(ctx, ch.Code)
	require.NoError(t, err, "a code is still valid at its expiry instant")

	ch, err = f.svc.Issue(ctx, "alice")
	require.NoError(t, err)
	f.clock.Advance(5*time.Minute + time.Second)
	_, err = f.svc.Verify(ctx, ch.Code)
	assert.ErrorIs(t, err, domain.ErrChallengeExpired)

	var left domain.OTPChallenge
	ok, err := f.store.Get(ctx, otp.StorageKey, &left)
	require.NoError(t, err)
	assert.False(t, ok, "expired challenge is purged")
}

func TestIssue_LastIssueWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, otp.Config{})

	first, err := f.svc.Issue(ctx, "alice")
	require.NoError(t, err)
	second, err := f.svc.Issue(ctx, "alice")
	require.NoError(t, err)
	if first.Code == second.Code {
		t.Skip("codes collided")
	}

	_, err = f.svc.Verify(ctx, first.Code)
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)
}

func TestIssue_RateLimited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, otp.Config{IssueInterval: time.Minute, IssueBurst: 2})

	for i := 0; i < 2; i++ {
		_, err := f.svc.Issue(ctx, "alice")
		require.NoError(t, err)
	}
	_, err := f.svc.Issue(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	_, err = f.svc.Issue(ctx, "bob")
	assert.NoError(t, err, "limits are per user")

	f.clock.Advance(time.Minute)
	_, err = f.svc.Issue(ctx, "alice")
	assert.NoError(t, err)
}

func TestIssue_DeliveryFailureDropsChallenge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, otp.Config{})
	f.delivery.fail = errors.New("smtp down")

	_, err := f.svc.Issue(ctx, "alice")
	require.Error(t, err)

	_, err = f.svc.Verify(ctx, "123456")
	assert.ErrorIs(t, err, domain.ErrNoChallengeFound)
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, otp.Config{})

	ch, err := f.svc.Issue(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, f.svc.Discard(ctx))
	_, err = f.svc.Verify(ctx, ch.Code)
	assert.ErrorIs(t, err, domain.ErrNoChallengeFound)
}

func TestConcurrentIssueVerify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, otp.Config{IssueBurst: 100})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.Issue(ctx, "alice")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.Verify(ctx, "000000")
			if err != nil {
				assert.True(t,
					errors.Is(err, domain.ErrNoChallengeFound) || errors.Is(err, domain.ErrCodeMismatch),
					"unexpected error %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestWriterDelivery(t *testing.T) {
	var buf bytes.Buffer
	d := otp.WriterDelivery{W: &buf}
	require.NoError(t, d.DeliverCode(context.Background(), "alice", "424242", time.Now()))
	assert.Contains(t, buf.String(), "424242")
}
