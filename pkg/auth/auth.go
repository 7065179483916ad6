// Package auth validates client credentials for incoming requests.
//
// Three modes are supported, selected by configuration: off (no
// authentication), api-key (static keys via X-API-Key or a Bearer token),
// and jwt (signed tokens validated against a shared secret or a remote
// JWKS). The JWT validator is only constructed when the mode is jwt, so
// the other modes carry no key-fetching machinery.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kadirpekel/mamba/pkg/config"
)

// Credential failures. Missing maps to AUTH_REQUIRED, invalid to
// AUTH_INVALID on the wire.
var (
	ErrMissingCredentials = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid authentication credentials")
)

// Authenticator validates the credentials on a request and returns the
// authenticated subject (key name or token subject; empty when the mode
// carries no identity).
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// noopAuthenticator accepts every request. Used when auth mode is off.
type noopAuthenticator struct{}

func (noopAuthenticator) Authenticate(*http.Request) (string, error) { return "", nil }

// Noop returns an authenticator that accepts every request.
func Noop() Authenticator {
	return noopAuthenticator{}
}

// FromConfig builds the authenticator for the configured mode. The config
// is assumed validated, so an unknown mode is a programming error.
func FromConfig(cfg *config.AuthConfig) (Authenticator, error) {
	switch cfg.Mode {
	case config.AuthModeOff:
		return Noop(), nil
	case config.AuthModeAPIKey:
		return NewAPIKeyAuthenticator(cfg.APIKeys), nil
	case config.AuthModeJWT:
		return NewJWTAuthenticator(&cfg.JWT)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// bearerToken extracts a Bearer token from the Authorization header.
// Returns "" when the header is absent or not in Bearer form.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return ""
	}
	return token
}
