package identity_test

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securechat/internal/crypto"
	"securechat/internal/domain"
	"securechat/internal/services/identity"
)

func TestCreateIdentity(t *testing.T) {
	k := identity.New(2048, zerolog.Nop())
	id, err := k.CreateIdentity(context.Background())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id.ID.String(), crypto.IdentityPrefix))
	assert.NotEmpty(t, id.PrivateKey)

	fp, err := k.Fingerprint(id.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, id.Fingerprint, fp)

	words, err := k.FingerprintWords(id.PublicKey)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(words), 24)
}

func TestCreateIdentity_Cancelled(t *testing.T) {
	k := identity.New(4096, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := k.CreateIdentity(ctx)
	assert.ErrorIs(t, err, domain.ErrKeyGenerationFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecover_Deterministic(t *testing.T) {
	k := identity.New(2048, zerolog.Nop())
	id, err := k.CreateIdentity(context.Background())
	require.NoError(t, err)

	again, err := k.Recover(id.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, id.ID, again.ID)
	assert.Equal(t, id.Fingerprint, again.Fingerprint)
	assert.Equal(t, id.PublicKey, again.PublicKey)

	_, err = k.Recover([]byte("junk"))
	assert.Error(t, err)
}

func TestUnlockAndLock(t *testing.T) {
	k := identity.New(2048, zerolog.Nop())
	_, ok := k.Identity()
	assert.False(t, ok)
	_, err := k.PrivateKey()
	assert.ErrorIs(t, err, domain.ErrNoIdentity)

	id, err := k.CreateIdentity(context.Background())
	require.NoError(t, err)
	pub := append([]byte(nil), id.PublicKey...)

	require.NoError(t, k.Unlock(id))
	assert.Nil(t, id.PrivateKey, "unlock wipes the caller's plaintext key")

	active, ok := k.Identity()
	require.True(t, ok)
	assert.Empty(t, active.PrivateKey)
	assert.Equal(t, pub, active.PublicKey)

	priv, err := k.PrivateKey()
	require.NoError(t, err)
	der, err := crypto.MarshalPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, pub, der)

	k.Lock()
	_, ok = k.Identity()
	assert.False(t, ok)
	_, err = k.PrivateKey()
	assert.ErrorIs(t, err, domain.ErrNoIdentity)
}

func TestUnlock_RejectsMismatchedKey(t *testing.T) {
	k := identity.New(2048, zerolog.Nop())
	a, err := k.CreateIdentity(context.Background())
	require.NoError(t, err)
	b, err := k.CreateIdentity(context.Background())
	require.NoError(t, err)

	a.PublicKey = b.PublicKey
	assert.Error(t, k.Unlock(a))
	assert.ErrorIs(t, k.Unlock(&domain.Identity{}), domain.ErrNoIdentity)
}
