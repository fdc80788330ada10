package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "securechat"

// Metrics groups the counters components report into.
type Metrics struct {
	StoreCorrupted   prometheus.Counter
	OTPIssued        prometheus.Counter
	OTPVerifications *prometheus.CounterVec // result
	BiometricChecks  *prometheus.CounterVec // op, result
	Logins           *prometheus.CounterVec // mode, result
	Elevations       *prometheus.CounterVec // method, result
	Messages         *prometheus.CounterVec // direction, kind
	RelayRequests    *prometheus.CounterVec // route, code
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StoreCorrupted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "corrupted_records_total",
			Help: "Encrypted records that failed to open and were purged.",
		}),
		OTPIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "otp", Name: "issued_total",
			Help: "One-time code challenges issued.",
		}),
		OTPVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "otp", Name: "verifications_total",
			Help: "One-time code verification attempts by result.",
		}, []string{"result"}),
		BiometricChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "biometric", Name: "operations_total",
			Help: "Biometric registrations and assertions by result.",
		}, []string{"op", "result"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "logins_total",
			Help: "Login attempts by mode and result.",
		}, []string{"mode", "result"}),
		Elevations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "elevations_total",
			Help: "High security elevation attempts by factor and result.",
		}, []string{"method", "result"}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "message", Name: "envelopes_total",
			Help: "Envelopes sent and received.",
		}, []string{"direction", "kind"}),
		RelayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "relay", Name: "requests_total",
			Help: "Relay HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.StoreCorrupted, m.OTPIssued, m.OTPVerifications, m.BiometricChecks,
			m.Logins, m.Elevations, m.Messages, m.RelayRequests,
		)
	}
	return m
}

func (m *Metrics) CorruptedRecord() {
	if m != nil {
		m.StoreCorrupted.Inc()
	}
}

func (m *Metrics) IssuedOTP() {
	if m != nil {
		m.OTPIssued.Inc()
	}
}

func (m *Metrics) VerifiedOTP(err error) {
	if m != nil {
		m.OTPVerifications.WithLabelValues(result(err)).Inc()
	}
}

func (m *Metrics) Biometric(op string, err error) {
	if m != nil {
		m.BiometricChecks.WithLabelValues(op, result(err)).Inc()
	}
}

func (m *Metrics) Login(mode string, err error) {
	if m != nil {
		m.Logins.WithLabelValues(mode, result(err)).Inc()
	}
}

func (m *Metrics) Elevation(method string, err error) {
	if m != nil {
		m.Elevations.WithLabelValues(method, result(err)).Inc()
	}
}

// Message counts one envelope; direction is "sent" or "received".
func (m *Metrics) Message(direction string, ephemeral bool) {
	if m == nil {
		return
	}
	kind := "standard"
	if ephemeral {
		kind = "ephemeral"
	}
	m.Messages.WithLabelValues(direction, kind).Inc()
}

func (m *Metrics) RelayRequest(route, code string) {
	if m != nil {
		m.RelayRequests.WithLabelValues(route, code).Inc()
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
