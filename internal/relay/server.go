package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"securechat/internal/crypto"
	"securechat/internal/domain"
	"securechat/internal/metrics"
)

const maxBodyBytes = 4 << 20

// ServerOptions tune a Server. Zero values pick defaults.
type ServerOptions struct {
	// MaxQueue caps the deliveries held per recipient.
	MaxQueue int
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

// Server is an in-memory relay. State is lost on exit.
type Server struct {
	maxQueue int
	log      zerolog.Logger
	metrics  *metrics.Metrics

	mu     sync.RWMutex
	keys   map[domain.IdentityID]domain.PublicKeyRecord
	queues map[domain.IdentityID][]domain.Delivery
}

func NewServer(opts ServerOptions) *Server {
	if opts.MaxQueue <= 0 {
		opts.MaxQueue = 1000
	}
	return &Server{
		maxQueue: opts.MaxQueue,
		log:      opts.Logger.With().Str("component", "relay").Logger(),
		metrics:  opts.Metrics,
		keys:     make(map[domain.IdentityID]domain.PublicKeyRecord),
		queues:   make(map[domain.IdentityID][]domain.Delivery),
	}
}

// Handler returns the relay routes wrapped in the access log.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /keys", s.handlePublishKey)
	mux.HandleFunc("GET /keys/{id}", s.handleFetchKey)
	mux.HandleFunc("POST /msg/{id}", s.handleSend)
	mux.HandleFunc("GET /msg/{id}", s.handleFetch)
	mux.HandleFunc("POST /msg/{id}/ack", s.handleAck)
	return s.accessLog(mux)
}

func (s *Server) handlePublishKey(w http.ResponseWriter, r *http.Request) {
	var rec domain.PublicKeyRecord
	if !decode(w, r, &rec) {
		return
	}
	handle, err := crypto.IdentityHandle(rec.PublicKey)
	if err != nil {
		http.Error(w, "invalid public key", http.StatusBadRequest)
		return
	}
	if domain.IdentityID(handle) != rec.ID {
		http.Error(w, "public key does not match identity", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.keys[rec.ID] = rec
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFetchKey(w http.ResponseWriter, r *http.Request) {
	id := domain.IdentityID(r.PathValue("id"))
	s.mu.RLock()
	rec, ok := s.keys[id]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, rec)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	to := domain.IdentityID(r.PathValue("id"))
	var d domain.Delivery
	if !decode(w, r, &d) {
		return
	}
	if d.To != to {
		http.Error(w, "recipient does not match path", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	if len(s.queues[to]) >= s.maxQueue {
		s.mu.Unlock()
		http.Error(w, "recipient queue full", http.StatusTooManyRequests)
		return
	}
	s.queues[to] = append(s.queues[to], d)
	s.mu.Unlock()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	id := domain.IdentityID(r.PathValue("id"))
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	s.mu.RLock()
	q := s.queues[id]
	if limit == 0 || limit > len(q) {
		limit = len(q)
	}
	out := append(make([]domain.Delivery, 0, limit), q[:limit]...)
	s.mu.RUnlock()
	writeJSON(w, out)
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	id := domain.IdentityID(r.PathValue("id"))
	var req ackRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Count < 0 {
		http.Error(w, "invalid count", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	q := s.queues[id]
	if req.Count >= len(q) {
		delete(s.queues, id)
	} else {
		s.queues[id] = append([]domain.Delivery(nil), q[req.Count:]...)
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	code  int
	bytes int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.code == 0 {
			rec.code = http.StatusOK
		}
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RelayRequest(route, strconv.Itoa(rec.code))
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", rec.code).
			Int("bytes", rec.bytes).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}
