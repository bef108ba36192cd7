// Package auth extracts bearer-style credentials from request headers and
// compares them against expected secrets.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// Schemes accepted in the Authorization header.
const (
	// BoardScheme carries a board's own token when submitting scores.
	BoardScheme = "Bearer"
	// MasterScheme carries the master token when creating boards.
	MasterScheme = "Master"
)

var (
	ErrMissingCredential   = errors.New("missing Authorization header")
	ErrMalformedCredential = errors.New("malformed Authorization header")
	ErrForbidden           = errors.New("invalid token")
)

// Credential is the result of looking for a credential in a request. Extraction
// failures are kept until Token is called so that callers decide when a missing
// or garbled credential matters.
type Credential struct {
	token string
	err   error
}

// FromHeader locates a single "<scheme> <token>" Authorization header.
func FromHeader(h http.Header, scheme string) Credential {
	values := h.Values("Authorization")
	switch len(values) {
	case 0:
		return Credential{err: ErrMissingCredential}
	case 1:
	default:
		return Credential{err: ErrMalformedCredential}
	}
	got, token, ok := strings.Cut(strings.TrimSpace(values[0]), " ")
	if !ok || !strings.EqualFold(got, scheme) {
		return Credential{err: ErrMalformedCredential}
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return Credential{err: ErrMalformedCredential}
	}
	return Credential{token: token}
}

// WithToken wraps a token obtained outside of HTTP headers.
func WithToken(token string) Credential { return Credential{token: token} }

// Token returns the extracted token or the extraction failure.
func (c Credential) Token() (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.token, nil
}

// Check extracts the token and compares it to expected in constant time.
// A well-formed but different token yields ErrForbidden.
func (c Credential) Check(expected string) error {
	token, err := c.Token()
	if err != nil {
		return err
	}
	if !Matches(token, expected) {
		return ErrForbidden
	}
	return nil
}

// Matches compares two secrets in constant time. An empty expected secret never matches.
func Matches(token, expected string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}
