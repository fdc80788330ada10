package metrics_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securechat/internal/metrics"
)

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.CorruptedRecord()
	m.CorruptedRecord()
	m.VerifiedOTP(nil)
	m.VerifiedOTP(errors.New("mismatch"))
	m.Message("sent", true)

	assert.InDelta(t, 2, testutil.ToFloat64(m.StoreCorrupted), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.OTPVerifications.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.OTPVerifications.WithLabelValues("error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Messages.WithLabelValues("sent", "ephemeral")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.CorruptedRecord()
		m.IssuedOTP()
		m.Login("password", nil)
		m.RelayRequest("/keys", "200")
	})
}
