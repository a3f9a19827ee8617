package stub

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultHost is the loopback interface used when no host override is provided.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the default TCP port for the stub gateway.
	DefaultPort = 8787
	// DefaultTokenTTL is how long an issued token stays valid.
	DefaultTokenTTL = 15 * time.Minute
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds handler writes.
	DefaultWriteTimeout = 15 * time.Second
)

// Settings captures runtime configuration for the stub gateway.
type Settings struct {
	Host         string
	Port         int
	TokenTTL     time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Users maps usernames to passwords accepted by /auth/login.
	Users map[string]string
	// Sessions lists the gateway session names the oracle accepts. Empty
	// accepts any name.
	Sessions []string
	// Registered lists phone numbers reported as registered, either in
	// local form or prefixed with the country code.
	Registered []string
}

// DefaultSettings returns settings with one admin user and no registered numbers.
func DefaultSettings() Settings {
	s := Settings{Port: DefaultPort, Users: map[string]string{"admin": "admin123"}}
	s.applyEnvOverrides()
	s.normalize()
	return s
}

func (s *Settings) applyEnvOverrides() {
	if host := strings.TrimSpace(os.Getenv("CALLSHEET_STUB_HOST")); host != "" {
		s.Host = host
	}
	if port := strings.TrimSpace(os.Getenv("CALLSHEET_STUB_PORT")); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && isValidPort(parsed) {
			s.Port = parsed
		}
	}
	if ttl := strings.TrimSpace(os.Getenv("CALLSHEET_STUB_TOKEN_TTL")); ttl != "" {
		if parsed, err := time.ParseDuration(ttl); err == nil && parsed > 0 {
			s.TokenTTL = parsed
		}
	}
}

func (s *Settings) normalize() {
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Port != 0 && !isValidPort(s.Port) {
		s.Port = DefaultPort
	}
	if s.TokenTTL <= 0 {
		s.TokenTTL = DefaultTokenTTL
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.Users == nil {
		s.Users = map[string]string{}
	}
}

// Address returns the TCP bind address in host:port form. Port 0 asks the
// kernel for a free port.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func isValidPort(port int) bool {
	return port > 0 && port <= 65535
}
