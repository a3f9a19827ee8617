package gateway

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned by authenticated calls when no token is held.
var ErrNotAuthenticated = errors.New("gateway: not logged in")

// ErrInvalidPhone marks a phone number that cannot be checked at all.
var ErrInvalidPhone = errors.New("gateway: invalid phone number")

// AuthError reports a token the gateway rejected. The session has already
// been invalidated by the time a caller sees it.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "session expired or token is invalid"
	}
	return fmt.Sprintf("gateway: %s (HTTP %d)", msg, e.Status)
}

// RemoteError covers every other failure talking to the gateway: transport
// errors, timeouts, unexpected status codes and undecodable bodies.
type RemoteError struct {
	Op     string
	Status int
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("gateway: %s: HTTP %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("gateway: %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// LoginError carries the message shown to the operator when login fails.
type LoginError struct {
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "login failed: unknown error"
}

func (e *LoginError) Unwrap() error { return e.Err }

// IsAuth reports whether err means the operator has to log in again.
func IsAuth(err error) bool {
	if errors.Is(err, ErrNotAuthenticated) {
		return true
	}
	var authErr *AuthError
	return errors.As(err, &authErr)
}
