package app

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"securechat/internal/crypto"
	"securechat/internal/domain"
	"securechat/internal/metrics"
	"securechat/internal/platform/softauthn"
	"securechat/internal/protocol/hybrid"
	"securechat/internal/relay"
	"securechat/internal/services/biometric"
	"securechat/internal/services/factor"
	"securechat/internal/services/identity"
	"securechat/internal/services/message"
	"securechat/internal/services/otp"
	"securechat/internal/services/session"
	"securechat/internal/store"
	"securechat/internal/util/clock"
)

// Options carry process-level collaborators that do not belong in Config.
type Options struct {
	// Out receives one-time codes when OTP delivery is "console".
	Out io.Writer
	// Presence confirms authenticator operations; nil confirms automatically.
	Presence softauthn.PresenceFunc
	HTTP     *http.Client
}

// App bundles the stores, services and clients used by the CLI.
type App struct {
	Config   Config
	Log      zerolog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Store     *store.SecureStore
	Accounts  *store.AccountSecureStore
	Keyring   *identity.Keyring
	Signer    *factor.Signer
	OTP       *otp.Service
	Biometric *biometric.Gate
	Session   *session.Controller
	Messages  *message.Service
	Relay     *relay.Client

	closers []io.Closer
}

// New constructs the dependency graph from cfg.
func New(cfg Config, log zerolog.Logger, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Log: log, Registry: prometheus.NewRegistry()}
	a.Metrics = metrics.New(a.Registry)

	backend, err := a.openBackend()
	if err != nil {
		return nil, err
	}
	secret, err := storageSecret(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store, err = store.NewSecureStore(backend, secret, store.Options{
		Iterations: cfg.Storage.Iterations,
		Logger:     log,
		Metrics:    a.Metrics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	// Challenges never outlive the process.
	otpSecret, err := crypto.RandomBytes(32)
	if err != nil {
		a.Close()
		return nil, err
	}
	otpStore, err := store.NewSecureStore(store.NewMemoryBackend(), otpSecret, store.Options{
		Iterations: crypto.MinPBKDF2Iterations,
		Logger:     log,
		Metrics:    a.Metrics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Signer, err = factor.NewSigner()
	if err != nil {
		a.Close()
		return nil, err
	}
	clk := clock.DefaultTimeProvider{}
	a.Accounts = store.NewAccountStore(a.Store)
	a.Keyring = identity.New(cfg.Identity.Bits, log)

	var delivery domain.CodeDelivery = otp.LogDelivery{Log: log}
	if cfg.OTP.Delivery == "console" {
		out := opts.Out
		if out == nil {
			out = os.Stderr
		}
		delivery = otp.WriterDelivery{W: out}
	}
	a.OTP = otp.New(otpStore, delivery, a.Signer, clk, otp.Config{
		Digits:        cfg.OTP.Digits,
		TTL:           cfg.OTP.TTL,
		IssueInterval: cfg.OTP.IssueInterval,
		IssueBurst:    cfg.OTP.IssueBurst,
	}, log, a.Metrics)

	bioCfg := biometric.Config{RPID: cfg.Biometric.RPID, RPName: "securechat"}
	auth := softauthn.New(a.Store, softauthn.Options{
		Origin:   "securechat://" + cfg.Biometric.RPID,
		Presence: opts.Presence,
		Disabled: !cfg.Biometric.Enabled,
		Logger:   log,
	})
	a.Biometric = biometric.New(auth, a.Store, a.Signer, clk, bioCfg, log, a.Metrics)

	a.Session = session.New(session.Deps{
		Keyring:   a.Keyring,
		Store:     a.Store,
		Accounts:  a.Accounts,
		OTP:       a.OTP,
		Biometric: a.Biometric,
		Signer:    a.Signer,
		Clock:     clk,
		Logger:    log,
		Metrics:   a.Metrics,
	}, session.Config{
		AuthTimeout:             cfg.Session.AuthTimeout,
		HighSecurityTTL:         cfg.Session.HighSecurityTTL,
		ProofMaxAge:             cfg.Session.ProofMaxAge,
		PurgeCredentialOnLogout: cfg.Session.PurgeCredentialOnLogout,
	})

	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	a.Relay = relay.NewClient(cfg.RelayURL, hc)
	a.Messages = message.New(message.Deps{
		Keyring: a.Keyring,
		Session: a.Session,
		Cipher:  hybrid.New(0),
		Store:   a.Store,
		Relay:   a.Relay,
		Clock:   clk,
		Logger:  log,
		Metrics: a.Metrics,
	})
	return a, nil
}

// Restore resumes the persisted session, if any.
func (a *App) Restore(ctx context.Context) (domain.SessionRecord, bool, error) {
	return a.Session.Restore(ctx)
}

// Close releases the storage backend and locks the keyring.
func (a *App) Close() error {
	if a.Keyring != nil {
		a.Keyring.Lock()
	}
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openBackend() (domain.Backend, error) {
	switch a.Config.Storage.Backend {
	case BackendSQLite:
		b, err := store.OpenSQLiteBackend(filepath.Join(a.Config.Home, "securechat.db"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, b)
		return b, nil
	case BackendMemory:
		return store.NewMemoryBackend(), nil
	default:
		return store.NewFileBackend(filepath.Join(a.Config.Home, "store"))
	}
}

func storageSecret(cfg Config) ([]byte, error) {
	if cfg.Storage.Secret == "" {
		return store.LoadOrCreateSecret(filepath.Join(cfg.Home, "storage.key"))
	}
	secret, err := hex.DecodeString(cfg.Storage.Secret)
	if err != nil || len(secret) < 32 {
		return nil, errors.New("storage secret must be at least 32 hex-encoded bytes")
	}
	return secret, nil
}
