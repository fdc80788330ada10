package factor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securechat/internal/domain"
	"securechat/internal/services/factor"
)

func TestSigner_IssueVerify(t *testing.T) {
	s, err := factor.NewSigner()
	require.NoError(t, err)

	now := time.Now()
	p, err := s.Issue(domain.FactorOTP, "alice", now)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.True(t, s.Verify(p))

	tampered := p
	tampered.Subject = "mallory"
	assert.False(t, s.Verify(tampered))

	tampered = p
	tampered.VerifiedAt = now.Add(time.Minute)
	assert.False(t, s.Verify(tampered))

	tampered = p
	tampered.Method = domain.FactorBiometric
	assert.False(t, s.Verify(tampered))

	assert.False(t, s.Verify(domain.FactorProof{ID: "x", Subject: "alice"}))
}

func TestSigner_KeysAreIndependent(t *testing.T) {
	a, err := factor.NewSigner()
	require.NoError(t, err)
	b, err := factor.NewSigner()
	require.NoError(t, err)

	p, err := a.Issue(domain.FactorBiometric, "alice", time.Now())
	require.NoError(t, err)
	assert.False(t, b.Verify(p))
}
