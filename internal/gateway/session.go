package gateway

import (
	"strings"
	"sync"
)

// Session holds the credential shared by the guard and everything that asks
// whether the operator is logged in.
type Session struct {
	mu    sync.RWMutex
	token string
	name  string
}

// NewSession returns an unauthenticated session bound to a gateway session name.
func NewSession(name string) *Session {
	return &Session{name: strings.TrimSpace(name)}
}

// IsAuthenticated reports whether a token is held.
func (s *Session) IsAuthenticated() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Token returns the held token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Name returns the gateway session name used in oracle requests.
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *Session) establish(token, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	if name = strings.TrimSpace(name); name != "" {
		s.name = name
	}
}

// clearIf drops the token only if it is still the one a rejected request
// carried, so a login that raced the rejection survives.
func (s *Session) clearIf(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == token {
		s.token = ""
	}
}

// Clear drops the token. The session name is kept for the next login form.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}
