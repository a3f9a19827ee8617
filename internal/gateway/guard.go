// Package gateway talks to the phone registration gateway: it owns the
// login token lifecycle and wraps every authenticated request.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every gateway request.
const DefaultTimeout = 10 * time.Second

const maxErrorBody = 4 << 10

// Logger records client activity. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// Settings configures the gateway client.
type Settings struct {
	BaseURL string
	Timeout time.Duration
}

// Guard owns the session token: it logs in, attaches the token to outgoing
// requests and drops it as soon as the gateway rejects it.
type Guard struct {
	settings Settings
	session  *Session
	client   *http.Client
	logger   Logger
}

// Option customizes guard construction.
type Option func(*Guard)

// WithHTTPClient overrides the default client. The client's timeout is left
// as provided.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Guard) {
		if c != nil {
			g.client = c
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGuard prepares a guard for the session.
func NewGuard(settings Settings, session *Session, opts ...Option) *Guard {
	settings.BaseURL = strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}
	if session == nil {
		session = NewSession("")
	}
	g := &Guard{
		settings: settings,
		session:  session,
		client:   &http.Client{Timeout: settings.Timeout},
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Session returns the session the guard manages.
func (g *Guard) Session() *Session { return g.session }

// BaseURL returns the gateway root without a trailing slash.
func (g *Guard) BaseURL() string { return g.settings.BaseURL }

// IsAuthenticated reports whether a token is held.
func (g *Guard) IsAuthenticated() bool { return g.session.IsAuthenticated() }

// Invalidate drops the held token.
func (g *Guard) Invalidate() {
	g.session.Clear()
	g.logger.Printf("gateway: session invalidated")
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Login exchanges credentials for a token. On any failure the currently held
// token, if any, is left alone and a *LoginError carries the message to show.
// On success the token and session name are stored together.
func (g *Guard) Login(ctx context.Context, username, password, sessionName string) (string, error) {
	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return "", &LoginError{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.settings.BaseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", &LoginError{Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		remote := &RemoteError{Op: "login", Err: err}
		g.logger.Printf("gateway: login transport failure: %v", err)
		return "", &LoginError{Message: remote.Error(), Err: remote}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		remote := &RemoteError{Op: "login", Status: resp.StatusCode, Err: err}
		return "", &LoginError{Message: remote.Error(), Err: remote}
	}
	var parsed loginResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && strings.TrimSpace(parsed.Message) != "" {
			g.logger.Printf("gateway: login rejected (HTTP %d): %s", resp.StatusCode, parsed.Message)
			return "", &LoginError{Message: parsed.Message}
		}
		remote := &RemoteError{Op: "login", Status: resp.StatusCode, Err: errors.New(statusText(resp.StatusCode, raw))}
		g.logger.Printf("gateway: login failed: %v", remote)
		return "", &LoginError{Message: remote.Error(), Err: remote}
	}
	if decodeErr != nil {
		remote := &RemoteError{Op: "login", Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", decodeErr)}
		return "", &LoginError{Message: remote.Error(), Err: remote}
	}
	if !parsed.Success || parsed.Token == "" {
		msg := strings.TrimSpace(parsed.Message)
		if msg == "" {
			msg = "Login failed: Unknown error."
		}
		g.logger.Printf("gateway: login refused: %s", msg)
		return "", &LoginError{Message: msg}
	}
	g.session.establish(parsed.Token, sessionName)
	g.logger.Printf("gateway: logged in as %s (session %s)", username, g.session.Name())
	return parsed.Token, nil
}

// Do attaches the held token to req and executes it. It never retries.
//
// No token: ErrNotAuthenticated, without a remote call. HTTP 401/403: the
// session is invalidated and *AuthError returned. Any other failure or
// non-2xx status: *RemoteError. On success the caller owns resp.Body.
func (g *Guard) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	token := g.session.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	req = req.Clone(ctx)
	req.Header.Set("Authorization", "Bearer "+token)
	op := req.Method + " " + req.URL.Path

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Printf("gateway: %s: %v", op, err)
		return nil, &RemoteError{Op: op, Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		msg := readMessage(resp)
		g.session.clearIf(token)
		g.logger.Printf("gateway: %s rejected token (HTTP %d)", op, resp.StatusCode)
		return nil, &AuthError{Status: resp.StatusCode, Message: msg}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg := readMessage(resp)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		g.logger.Printf("gateway: %s: HTTP %d", op, resp.StatusCode)
		return nil, &RemoteError{Op: op, Status: resp.StatusCode, Err: errors.New(msg)}
	}
	return resp, nil
}

// readMessage drains and closes the body, returning the server's message
// field when present.
func readMessage(resp *http.Response) string {
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		return payload.Error
	}
	return ""
}

func statusText(code int, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" || len(text) > 200 {
		return http.StatusText(code)
	}
	return text
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
