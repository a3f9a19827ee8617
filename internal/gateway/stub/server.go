// Package stub is a stand-in registration gateway. Operators use it to
// rehearse a walk (including token expiry) without touching the real
// service; the gateway tests run against it too.
package stub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Logger records server activity. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// Server serves /auth/login, /session/is-registered and /health.
type Server struct {
	settings Settings
	logger   Logger
	clock    func() time.Time

	mu         sync.RWMutex
	tokens     map[string]time.Time
	registered map[string]struct{}
	sessions   map[string]struct{}
	checks     int

	server    *http.Server
	listener  net.Listener
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control token expiry.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a stub gateway.
func NewServer(settings Settings, opts ...Option) *Server {
	settings.normalize()
	s := &Server{
		settings:   settings,
		logger:     nopLogger{},
		clock:      time.Now,
		tokens:     map[string]time.Time{},
		registered: map[string]struct{}{},
		sessions:   map[string]struct{}{},
	}
	for _, number := range settings.Registered {
		if n := digitsOnly(number); n != "" {
			s.registered[n] = struct{}{}
		}
	}
	for _, name := range settings.Sessions {
		if name = strings.TrimSpace(name); name != "" {
			s.sessions[name] = struct{}{}
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the gateway routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Post("/auth/login", s.handleLogin)
	r.Get("/session/is-registered/{session}/{phone}", s.handleIsRegistered)
	return r
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("stub: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("stub: listen %s: %w", addr, err)
	}
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.listener = listener
	s.server = server
	s.startTime = s.clock()
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("stub: serve error: %v", err)
		}
	}()
	s.logger.Printf("stub: listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// BaseURL returns the HTTP base URL of the running server.
func (s *Server) BaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return "http://" + s.settings.Address()
	}
	return "http://" + s.listener.Addr().String()
}

// ExpireTokens revokes every issued token, as a gateway restart would.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = map[string]time.Time{}
}

// SetRegistered adds or removes a number from the registered set.
func (s *Server) SetRegistered(number string, registered bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := digitsOnly(number)
	if registered {
		s.registered[n] = struct{}{}
	} else {
		delete(s.registered, n)
	}
}

// Checks returns how many authorized is-registered calls were answered.
func (s *Server) Checks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checks
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	started := s.startTime
	s.mu.RUnlock()
	var uptime int64
	if !started.IsZero() {
		uptime = int64(s.clock().Sub(started).Seconds())
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "uptime_seconds": uptime})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid JSON"})
		return
	}
	want, ok := s.settings.Users[payload.Username]
	if !ok || want != payload.Password {
		s.logger.Printf("stub: rejected login for %q", payload.Username)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid username or password."})
		return
	}
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = s.clock().Add(s.settings.TokenTTL)
	s.mu.Unlock()
	s.logger.Printf("stub: issued token for %q", payload.Username)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token})
}

func (s *Server) handleIsRegistered(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Session expired or token is invalid."})
		return
	}
	session := chi.URLParam(r, "session")
	phone := digitsOnly(chi.URLParam(r, "phone"))
	country := digitsOnly(r.URL.Query().Get("countryCode"))

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) > 0 {
		if _, ok := s.sessions[session]; !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": fmt.Sprintf("session %s not found", session)})
			return
		}
	}
	s.checks++
	_, registered := s.registered[phone]
	if !registered && country != "" {
		_, registered = s.registered[country+strings.TrimPrefix(phone, "0")]
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isRegistered": registered})
}

func (s *Server) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	expires, ok := s.tokens[token]
	if !ok {
		return false
	}
	if !s.clock().Before(expires) {
		delete(s.tokens, token)
		return false
	}
	return true
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
