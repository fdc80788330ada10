package hybrid_test

import (
	"context"
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securechat/internal/crypto"
	"securechat/internal/domain"
	"securechat/internal/protocol/hybrid"
)

var (
	keysOnce sync.Once
	alice    *rsa.PrivateKey
	bob      *rsa.PrivateKey
)

func keys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keysOnce.Do(func() {
		var err error
		if alice, err = crypto.GenerateRSA(context.Background(), 2048); err != nil {
			panic(err)
		}
		if bob, err = crypto.GenerateRSA(context.Background(), 2048); err != nil {
			panic(err)
		}
	})
	return alice, bob
}

func pubDER(t *testing.T, k *rsa.PrivateKey) []byte {
	t.Helper()
	der, err := crypto.MarshalPublicKey(&k.PublicKey)
	require.NoError(t, err)
	return der
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	a, _ := keys(t)
	c := hybrid.New(0)

	env, err := c.Encrypt([]byte("hello bob"), pubDER(t, a), false)
	require.NoError(t, err)
	assert.Equal(t, hybrid.Version, env.Version)
	assert.Equal(t, hybrid.AlgorithmID, env.AlgorithmID)
	assert.Len(t, env.WrappedKey, 1)
	assert.Len(t, env.IV, crypto.NonceBytes)
	assert.False(t, env.Ephemeral)

	pt, err := c.Decrypt(env, a)
	require.NoError(t, err)
	assert.Equal(t, "hello bob", string(pt))
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	a, _ := keys(t)
	c := hybrid.New(0)

	e1, err := c.Encrypt([]byte("same"), pubDER(t, a), false)
	require.NoError(t, err)
	e2, err := c.Encrypt([]byte("same"), pubDER(t, a), false)
	require.NoError(t, err)

	assert.NotEqual(t, e1.IV, e2.IV)
	assert.NotEqual(t, e1.Content, e2.Content)
	assert.NotEqual(t, e1.WrappedKey, e2.WrappedKey)
}

func TestEncrypt_MultiChunkWrap(t *testing.T) {
	a, _ := keys(t)
	c := hybrid.New(10)

	env, err := c.Encrypt([]byte("chunked"), pubDER(t, a), true)
	require.NoError(t, err)
	assert.Len(t, env.WrappedKey, 4)
	assert.True(t, env.Ephemeral)

	pt, err := c.Decrypt(env, a)
	require.NoError(t, err)
	assert.Equal(t, "chunked", string(pt))
}

func TestDecrypt_WrongKey(t *testing.T) {
	a, b := keys(t)
	c := hybrid.New(0)

	env, err := c.Encrypt([]byte("for alice"), pubDER(t, a), false)
	require.NoError(t, err)
	_, err = c.Decrypt(env, b)
	assert.ErrorIs(t, err, domain.ErrDecryptionFailed)
}

func TestDecrypt_Tampered(t *testing.T) {
	a, _ := keys(t)
	c := hybrid.New(0)

	fresh := func() domain.MessageEnvelope {
		env, err := c.Encrypt([]byte("do not touch"), pubDER(t, a), false)
		require.NoError(t, err)
		return env
	}

	cases := map[string]func(*domain.MessageEnvelope){
		"content":   func(e *domain.MessageEnvelope) { e.Content[0] ^= 1 },
		"iv":        func(e *domain.MessageEnvelope) { e.IV[0] ^= 1 },
		"wrapped":   func(e *domain.MessageEnvelope) { e.WrappedKey[0][0] ^= 1 },
		"ephemeral": func(e *domain.MessageEnvelope) { e.Ephemeral = true },
		"timestamp": func(e *domain.MessageEnvelope) { e.Timestamp++ },
		"version":   func(e *domain.MessageEnvelope) { e.Version = 2 },
		"algorithm": func(e *domain.MessageEnvelope) { e.AlgorithmID = "none" },
		"no chunks": func(e *domain.MessageEnvelope) { e.WrappedKey = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			env := fresh()
			mutate(&env)
			_, err := c.Decrypt(env, a)
			assert.ErrorIs(t, err, domain.ErrDecryptionFailed)
		})
	}
}

func TestEncrypt_MissingInputs(t *testing.T) {
	a, _ := keys(t)
	c := hybrid.New(0)

	_, err := c.Encrypt(nil, pubDER(t, a), false)
	assert.ErrorIs(t, err, domain.ErrEncryptionFailed)
	_, err = c.Encrypt([]byte("x"), nil, false)
	assert.ErrorIs(t, err, domain.ErrEncryptionFailed)
	_, err = c.Encrypt([]byte("x"), []byte("garbage"), false)
	assert.ErrorIs(t, err, domain.ErrEncryptionFailed)
}
