package store_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/awnumar/memguard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securechat/internal/crypto"
	"securechat/internal/domain"
	"securechat/internal/metrics"
	"securechat/internal/store"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func secret() []byte { return bytes.Repeat([]byte{0x42}, 32) }

func newStore(t *testing.T, b domain.Backend, m *metrics.Metrics) *store.SecureStore {
	t.Helper()
	s, err := store.NewSecureStore(b, secret(), store.Options{
		Iterations: crypto.MinPBKDF2Iterations,
		Logger:     zerolog.Nop(),
		Metrics:    m,
	})
	require.NoError(t, err)
	return s
}

func backends(t *testing.T) map[string]domain.Backend {
	t.Helper()
	fb, err := store.NewFileBackend(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	sb, err := store.OpenSQLiteBackend(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sb.Close() })
	return map[string]domain.Backend{
		"file":   fb,
		"sqlite": sb,
		"memory": store.NewMemoryBackend(),
	}
}

func TestSecureStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t, b, nil)

			var got record
			ok, err := s.Get(ctx, "session", &got)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Put(ctx, "session", record{Name: "alice", Count: 3}))
			ok, err = s.Get(ctx, "session", &got)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, record{Name: "alice", Count: 3}, got)

			require.NoError(t, s.Put(ctx, "session", record{Name: "alice", Count: 4}))
			ok, err = s.Get(ctx, "session", &got)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 4, got.Count)

			require.NoError(t, s.Remove(ctx, "session"))
			require.NoError(t, s.Remove(ctx, "session"))
			ok, err = s.Get(ctx, "session", &got)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSecureStore_CorruptRecordIsPurged(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			m := metrics.New(prometheus.NewRegistry())
			s := newStore(t, b, m)

			require.NoError(t, b.Write(ctx, "otp_challenge", []byte("not a blob")))

			var got record
			ok, err := s.Get(ctx, "otp_challenge", &got)
			require.NoError(t, err)
			assert.False(t, ok)

			_, present, err := b.Read(ctx, "otp_challenge")
			require.NoError(t, err)
			assert.False(t, present, "corrupt record should be deleted")
			assert.InDelta(t, 1, testutil.ToFloat64(m.StoreCorrupted), 0)
		})
	}
}

func TestSecureStore_UnavailableSecretKeepsRecord(t *testing.T) {
	ctx := context.Background()
	b := store.NewMemoryBackend()
	m := metrics.New(prometheus.NewRegistry())
	s := newStore(t, b, m)
	require.NoError(t, s.Put(ctx, "identity", record{Name: "alice"}))

	store.SetUnseal(s, func() (*memguard.LockedBuffer, error) {
		return nil, errors.New("mlock: cannot allocate memory")
	})
	var got record
	ok, err := s.Get(ctx, "identity", &got)
	require.Error(t, err)
	assert.False(t, ok)
	assert.NotErrorIs(t, err, domain.ErrStorageCorrupted)

	_, present, err := b.Read(ctx, "identity")
	require.NoError(t, err)
	assert.True(t, present, "record must survive a secret failure")
	assert.InDelta(t, 0, testutil.ToFloat64(m.StoreCorrupted), 0)
}

func TestSecureStore_BlobBoundToSlot(t *testing.T) {
	ctx := context.Background()
	b := store.NewMemoryBackend()
	s := newStore(t, b, nil)

	require.NoError(t, s.Put(ctx, "session", record{Name: "alice"}))
	blob, ok, err := b.Read(ctx, "session")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, b.Write(ctx, "biometric_credential", blob))

	var got record
	ok, err = s.Get(ctx, "biometric_credential", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSecureStore_FreshSaltAndIV(t *testing.T) {
	ctx := context.Background()
	b := store.NewMemoryBackend()
	s := newStore(t, b, nil)

	require.NoError(t, s.Put(ctx, "a", record{Name: "same"}))
	require.NoError(t, s.Put(ctx, "b", record{Name: "same"}))

	var blobs [2]domain.EncryptedBlob
	for i, k := range []string{"a", "b"} {
		raw, ok, err := b.Read(ctx, k)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, json.Unmarshal(raw, &blobs[i]))
	}
	assert.NotEqual(t, blobs[0].Salt, blobs[1].Salt)
	assert.NotEqual(t, blobs[0].IV, blobs[1].IV)
	assert.Len(t, blobs[0].Salt, crypto.SaltBytes)
	assert.Len(t, blobs[0].IV, crypto.NonceBytes)
	assert.Equal(t, crypto.MinPBKDF2Iterations, blobs[0].Iterations)
}

func TestSecureStore_WrongSecret(t *testing.T) {
	ctx := context.Background()
	b := store.NewMemoryBackend()
	require.NoError(t, newStore(t, b, nil).Put(ctx, "session", record{Name: "alice"}))

	other, err := store.NewSecureStore(b, bytes.Repeat([]byte{0x7}, 32), store.Options{
		Iterations: crypto.MinPBKDF2Iterations,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	var got record
	ok, err := other.Get(ctx, "session", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSecureStore_RejectsLowIterations(t *testing.T) {
	_, err := store.NewSecureStore(store.NewMemoryBackend(), secret(), store.Options{Iterations: 1000})
	assert.Error(t, err)
}

func TestSecureStore_ConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	fb, err := store.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	s := newStore(t, fb, nil)
	require.NoError(t, s.Put(ctx, "k", record{Name: "init"}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Put(ctx, "k", record{Name: fmt.Sprintf("w%d", i), Count: i}))
		}(i)
		go func() {
			defer wg.Done()
			var got record
			ok, err := s.Get(ctx, "k", &got)
			assert.NoError(t, err)
			assert.True(t, ok, "a reader must never observe a partial write")
		}()
	}
	wg.Wait()
}

func TestSecureStore_Clear(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t, b, nil)
			for _, k := range []string{"session", "account/alice", "contact/did:local:x"} {
				require.NoError(t, s.Put(ctx, k, record{Name: k}))
			}
			keys, err := b.Keys(ctx)
			require.NoError(t, err)
			assert.Len(t, keys, 3)

			require.NoError(t, s.Clear(ctx))
			keys, err = b.Keys(ctx)
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestSecureStore_CancelledContext(t *testing.T) {
	s := newStore(t, store.NewMemoryBackend(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Put(ctx, "k", record{}), context.Canceled)
}

func TestFileBackend_FileMode(t *testing.T) {
	dir := t.TempDir()
	fb, err := store.NewFileBackend(dir)
	require.NoError(t, err)
	require.NoError(t, fb.Write(context.Background(), "session", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	info, err := entries[0].Info()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
