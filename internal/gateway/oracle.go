package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxOracleBody = 64 << 10

// Oracle answers whether a phone number is registered with the messaging
// service. Every call goes through the guard.
type Oracle struct {
	guard       *Guard
	countryCode string
}

// NewOracle returns an oracle that checks numbers for countryCode.
func NewOracle(guard *Guard, countryCode string) *Oracle {
	return &Oracle{guard: guard, countryCode: strings.TrimSpace(countryCode)}
}

type registrationResponse struct {
	IsRegistered bool `json:"isRegistered"`
}

// IsRegistered checks one phone number. A number that cannot be checked at
// all yields ErrInvalidPhone without a remote call.
func (o *Oracle) IsRegistered(ctx context.Context, phone string) (bool, error) {
	if !o.guard.IsAuthenticated() {
		return false, ErrNotAuthenticated
	}
	number, err := NormalizePhone(phone)
	if err != nil {
		return false, err
	}
	endpoint := fmt.Sprintf("%s/session/is-registered/%s/%s",
		o.guard.BaseURL(),
		url.PathEscape(o.guard.Session().Name()),
		url.PathEscape(number),
	)
	if o.countryCode != "" {
		endpoint += "?" + url.Values{"countryCode": {o.countryCode}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, &RemoteError{Op: "is-registered", Err: err}
	}
	resp, err := o.guard.Do(ctx, req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	var parsed registrationResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOracleBody)).Decode(&parsed); err != nil {
		return false, &RemoteError{Op: "is-registered", Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return parsed.IsRegistered, nil
}

// NormalizePhone strips formatting characters and a leading plus sign from
// a plain number. A value without any digit cannot be checked and yields
// ErrInvalidPhone. Anything else with digits, such as "0812 ext 5" or a
// sheet's "6.28E+11", is passed through trimmed for the gateway to judge.
func NormalizePhone(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	var b strings.Builder
	plain := true
	for _, r := range strings.TrimPrefix(value, "+") {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			plain = false
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	if !plain {
		return value, nil
	}
	return b.String(), nil
}
