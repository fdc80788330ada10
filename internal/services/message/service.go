package message

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"securechat/internal/crypto"
	"securechat/internal/domain"
	"securechat/internal/metrics"
	"securechat/internal/util/clock"
	"securechat/internal/util/lock"
)

// SecureStore slots owned by the service.
const (
	HistoryKey    = "history"
	contactPrefix = "contact/"
)

// DefaultHistoryLimit caps the retained history; the oldest entries go first.
const DefaultHistoryLimit = 1000

const securityNotice = "High security mode activated"

// Session is the part of the session controller the service reads.
type Session interface {
	Current() (domain.SessionRecord, bool)
	CanSendEphemeral() bool
}

// payload is the plaintext sealed into every envelope.
type payload struct {
	Kind string `json:"kind"`
	Body []byte `json:"body"`
}

// Deps are the service's collaborators.
type Deps struct {
	Keyring domain.IdentityKeyring
	Session Session
	Cipher  domain.HybridCipher
	Store   domain.SecureStore
	Relay   domain.RelayClient
	Clock   clock.TimeProvider
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	// HistoryLimit of 0 uses DefaultHistoryLimit.
	HistoryLimit int
}

// Service implements domain.MessageService.
type Service struct {
	keyring      domain.IdentityKeyring
	session      Session
	cipher       domain.HybridCipher
	store        domain.SecureStore
	relay        domain.RelayClient
	clock        clock.TimeProvider
	log          zerolog.Logger
	metrics      *metrics.Metrics
	historyLimit int

	pins    *lock.Keyed
	history *lock.Mutex
	recv    *lock.Mutex
}

func New(d Deps) *Service {
	clk := d.Clock
	if clk == nil {
		clk = clock.DefaultTimeProvider{}
	}
	limit := d.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Service{
		keyring:      d.Keyring,
		session:      d.Session,
		cipher:       d.Cipher,
		store:        d.Store,
		relay:        d.Relay,
		clock:        clk,
		log:          d.Logger.With().Str("component", "message").Logger(),
		metrics:      d.Metrics,
		historyLimit: limit,
		pins:         lock.NewKeyed(),
		history:      lock.NewMutex(),
		recv:         lock.NewMutex(),
	}
}

// PublishIdentity publishes the active identity's public key to the relay.
func (s *Service) PublishIdentity(ctx context.Context) error {
	if _, ok := s.session.Current(); !ok {
		return domain.ErrNotLoggedIn
	}
	id, ok := s.keyring.Identity()
	if !ok {
		return domain.ErrNoIdentity
	}
	if err := s.relay.PublishKey(ctx, domain.PublicKeyRecord{ID: id.ID, PublicKey: id.PublicKey}); err != nil {
		return fmt.Errorf("publish identity: %w", err)
	}
	s.log.Info().Str("identity", id.ID.String()).Msg("identity published")
	return nil
}

// Send encrypts plaintext for the peer and posts it to the relay.
func (s *Service) Send(ctx context.Context, to domain.IdentityID, plaintext []byte, ephemeral bool) error {
	return s.send(ctx, to, payload{Kind: domain.KindText, Body: plaintext}, ephemeral)
}

// NotifyHighSecurity tells peer that this side switched to High.
func (s *Service) NotifyHighSecurity(ctx context.Context, peer domain.IdentityID) error {
	if !s.session.CanSendEphemeral() {
		return domain.ErrHighSecurityRequired
	}
	return s.send(ctx, peer, payload{Kind: domain.KindSecurityNotice, Body: []byte(securityNotice)}, false)
}

func (s *Service) send(ctx context.Context, to domain.IdentityID, p payload, ephemeral bool) error {
	rec, ok := s.session.Current()
	if !ok {
		return domain.ErrNotLoggedIn
	}
	if ephemeral && !s.session.CanSendEphemeral() {
		return domain.ErrHighSecurityRequired
	}
	if len(p.Body) == 0 {
		return fmt.Errorf("%w: empty message", domain.ErrEncryptionFailed)
	}
	pub, err := s.peerKey(ctx, to)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	defer crypto.Wipe(raw)
	env, err := s.cipher.Encrypt(raw, pub, ephemeral)
	if err != nil {
		return err
	}
	if err := s.relay.SendDelivery(ctx, domain.Delivery{From: rec.IdentityID, To: to, Envelope: env}); err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}
	s.metrics.Message("sent", ephemeral)
	s.log.Debug().Str("to", to.String()).Str("kind", p.Kind).Bool("ephemeral", ephemeral).Msg("message sent")
	return nil
}

// peerKey fetches the peer's key and checks it against the pin, pinning it on
// first use.
func (s *Service) peerKey(ctx context.Context, id domain.IdentityID) ([]byte, error) {
	rec, err := s.relay.FetchKey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch key for %s: %w", id, err)
	}
	handle, err := crypto.IdentityHandle(rec.PublicKey)
	if err != nil || domain.IdentityID(handle) != id {
		return nil, fmt.Errorf("%w: relay returned a key for another identity", domain.ErrFingerprintMismatch)
	}
	fp, err := s.keyring.Fingerprint(rec.PublicKey)
	if err != nil {
		return nil, err
	}

	unlock, err := s.pins.Lock(ctx, id.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	var pin domain.ContactPin
	found, err := s.store.Get(ctx, contactPrefix+id.String(), &pin)
	if err != nil {
		return nil, err
	}
	if found {
		if pin.Fingerprint != fp {
			s.log.Warn().Str("peer", id.String()).Msg("peer fingerprint changed")
			return nil, domain.ErrFingerprintMismatch
		}
		return rec.PublicKey, nil
	}
	pin = domain.ContactPin{IdentityID: id, Fingerprint: fp, PinnedAt: s.clock.Now().UnixMilli()}
	if err := s.store.Put(ctx, contactPrefix+id.String(), pin); err != nil {
		return nil, err
	}
	s.log.Info().Str("peer", id.String()).Str("fingerprint", fp.String()).Msg("pinned peer key")
	return rec.PublicKey, nil
}

// Pin returns the pinned fingerprint of a peer.
func (s *Service) Pin(ctx context.Context, id domain.IdentityID) (domain.ContactPin, bool, error) {
	var pin domain.ContactPin
	found, err := s.store.Get(ctx, contactPrefix+id.String(), &pin)
	return pin, found, err
}

// Forget drops the pin for a peer so its next key is trusted afresh.
func (s *Service) Forget(ctx context.Context, id domain.IdentityID) error {
	return s.store.Remove(ctx, contactPrefix+id.String())
}

// Receive fetches up to limit deliveries, decrypts them in order and acks
// what was processed. Deliveries that fail to decrypt are dropped with a
// warning. Non-ephemeral text received while Standard is appended to history.
func (s *Service) Receive(ctx context.Context, limit int) ([]domain.DecryptedMessage, error) {
	rec, ok := s.session.Current()
	if !ok {
		return nil, domain.ErrNotLoggedIn
	}
	priv, err := s.keyring.PrivateKey()
	if err != nil {
		return nil, err
	}

	if err := s.recv.Lock(ctx); err != nil {
		return nil, err
	}
	defer s.recv.Unlock()

	ds, err := s.relay.FetchDeliveries(ctx, rec.IdentityID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch deliveries: %w", err)
	}

	out := make([]domain.DecryptedMessage, 0, len(ds))
	var keep []domain.DecryptedMessage
	for _, d := range ds {
		raw, err := s.cipher.Decrypt(d.Envelope, priv)
		if err != nil {
			s.log.Warn().Err(err).Str("from", d.From.String()).Msg("dropping undecryptable delivery")
			continue
		}
		var p payload
		err = json.Unmarshal(raw, &p)
		crypto.Wipe(raw)
		if err != nil || p.Kind == "" {
			s.log.Warn().Str("from", d.From.String()).Msg("dropping malformed delivery")
			continue
		}
		msg := domain.DecryptedMessage{
			From:      d.From,
			Kind:      p.Kind,
			Plaintext: p.Body,
			Timestamp: d.Envelope.Timestamp,
			Ephemeral: d.Envelope.Ephemeral,
		}
		out = append(out, msg)
		s.metrics.Message("received", msg.Ephemeral)
		if msg.Kind == domain.KindText && !msg.Ephemeral && !s.session.CanSendEphemeral() {
			keep = append(keep, msg)
		}
	}

	if len(keep) > 0 {
		if err := s.appendHistory(ctx, keep); err != nil {
			return out, fmt.Errorf("save history: %w", err)
		}
	}
	if len(ds) > 0 {
		if err := s.relay.AckDeliveries(ctx, rec.IdentityID, len(ds)); err != nil {
			return out, fmt.Errorf("ack %d deliveries: %w", len(ds), err)
		}
	}
	return out, nil
}

// History returns the retained messages, oldest first.
func (s *Service) History(ctx context.Context) ([]domain.DecryptedMessage, error) {
	if _, ok := s.session.Current(); !ok {
		return nil, domain.ErrNotLoggedIn
	}
	var h []domain.DecryptedMessage
	if _, err := s.store.Get(ctx, HistoryKey, &h); err != nil {
		return nil, err
	}
	return h, nil
}

// ClearHistory removes all retained messages.
func (s *Service) ClearHistory(ctx context.Context) error {
	if err := s.history.Lock(ctx); err != nil {
		return err
	}
	defer s.history.Unlock()
	return s.store.Remove(ctx, HistoryKey)
}

func (s *Service) appendHistory(ctx context.Context, msgs []domain.DecryptedMessage) error {
	if err := s.history.Lock(ctx); err != nil {
		return err
	}
	defer s.history.Unlock()

	var h []domain.DecryptedMessage
	if _, err := s.store.Get(ctx, HistoryKey, &h); err != nil {
		return err
	}
	h = append(h, msgs...)
	if over := len(h) - s.historyLimit; over > 0 {
		h = h[over:]
	}
	return s.store.Put(ctx, HistoryKey, h)
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)
