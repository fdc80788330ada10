package relay_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securechat/internal/crypto"
	"securechat/internal/domain"
	"securechat/internal/metrics"
	"securechat/internal/relay"
)

func newRelay(t *testing.T, opts relay.ServerOptions) *relay.Client {
	t.Helper()
	opts.Logger = zerolog.Nop()
	srv := httptest.NewServer(relay.NewServer(opts).Handler())
	t.Cleanup(srv.Close)
	return relay.NewClient(srv.URL+"/", srv.Client())
}

func keyRecord(t *testing.T) domain.PublicKeyRecord {
	t.Helper()
	priv, err := crypto.GenerateRSA(context.Background(), 2048)
	require.NoError(t, err)
	pub, err := crypto.MarshalPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	handle, err := crypto.IdentityHandle(pub)
	require.NoError(t, err)
	return domain.PublicKeyRecord{ID: domain.IdentityID(handle), PublicKey: pub}
}

func delivery(to domain.IdentityID, ts int64) domain.Delivery {
	return domain.Delivery{
		From: "did:local:sender",
		To:   to,
		Envelope: domain.MessageEnvelope{
			Version:   1,
			Content:   []byte("ciphertext"),
			Timestamp: ts,
		},
	}
}

func TestKeys_PublishAndFetch(t *testing.T) {
	ctx := context.Background()
	c := newRelay(t, relay.ServerOptions{})
	rec := keyRecord(t)

	_, err := c.FetchKey(ctx, rec.ID)
	assert.ErrorIs(t, err, relay.ErrNotFound)

	require.NoError(t, c.PublishKey(ctx, rec))
	got, err := c.FetchKey(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestKeys_RejectsMismatchedHandle(t *testing.T) {
	ctx := context.Background()
	c := newRelay(t, relay.ServerOptions{})
	rec := keyRecord(t)
	rec.ID = "did:local:someoneelse"

	err := c.PublishKey(ctx, rec)
	var se *relay.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Contains(t, se.Body, "does not match")

	rec.PublicKey = []byte("garbage")
	assert.Error(t, c.PublishKey(ctx, rec))
}

func TestDeliveries_FetchAndAck(t *testing.T) {
	ctx := context.Background()
	c := newRelay(t, relay.ServerOptions{})
	to := domain.IdentityID("did:local:bob")

	empty, err := c.FetchDeliveries(ctx, to, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, c.SendDelivery(ctx, delivery(to, i)))
	}

	got, err := c.FetchDeliveries(ctx, to, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].Envelope.Timestamp)
	assert.Equal(t, int64(2), got[1].Envelope.Timestamp)

	all, err := c.FetchDeliveries(ctx, to, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3, "fetch does not consume")

	require.NoError(t, c.AckDeliveries(ctx, to, 2))
	rest, err := c.FetchDeliveries(ctx, to, 0)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, int64(3), rest[0].Envelope.Timestamp)

	require.NoError(t, c.AckDeliveries(ctx, to, 5))
	rest, err = c.FetchDeliveries(ctx, to, 0)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestDeliveries_QueueCap(t *testing.T) {
	ctx := context.Background()
	c := newRelay(t, relay.ServerOptions{MaxQueue: 2})
	to := domain.IdentityID("did:local:bob")

	require.NoError(t, c.SendDelivery(ctx, delivery(to, 1)))
	require.NoError(t, c.SendDelivery(ctx, delivery(to, 2)))

	var se *relay.StatusError
	require.ErrorAs(t, c.SendDelivery(ctx, delivery(to, 3)), &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
}

func TestServer_BadRequests(t *testing.T) {
	srv := httptest.NewServer(relay.NewServer(relay.ServerOptions{Logger: zerolog.Nop()}).Handler())
	defer srv.Close()

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"invalid json", http.MethodPost, "/keys", "{", http.StatusBadRequest},
		{"recipient mismatch", http.MethodPost, "/msg/did:local:bob", `{"to":"did:local:carol"}`, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/msg/did:local:bob?limit=x", "", http.StatusBadRequest},
		{"negative ack", http.MethodPost, "/msg/did:local:bob/ack", `{"count":-1}`, http.StatusBadRequest},
		{"wrong method", http.MethodDelete, "/keys", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, srv.URL+tc.path, strings.NewReader(tc.body))
			require.NoError(t, err)
			resp, err := srv.Client().Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestServer_CountsRequests(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := newRelay(t, relay.ServerOptions{Metrics: m})

	_, err := c.FetchKey(context.Background(), "did:local:nobody")
	require.ErrorIs(t, err, relay.ErrNotFound)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RelayRequests.WithLabelValues("GET /keys/{id}", "404")), 0)
}
