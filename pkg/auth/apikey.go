package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/kadirpekel/mamba/pkg/config"
)

// APIKeyAuthenticator validates requests against a static set of named
// keys. The key is read from the X-API-Key header, falling back to a
// Bearer token. Comparison is constant-time.
type APIKeyAuthenticator struct {
	keys []config.APIKeyConfig
}

// NewAPIKeyAuthenticator creates an authenticator for the configured keys.
func NewAPIKeyAuthenticator(keys []config.APIKeyConfig) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{keys: keys}
}

// Authenticate checks the request's API key and returns the matching key's
// name.
func (a *APIKeyAuthenticator) Authenticate(r *http.Request) (string, error) {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		key = bearerToken(r)
	}
	if key == "" {
		return "", ErrMissingCredentials
	}

	for _, candidate := range a.keys {
		if subtle.ConstantTimeCompare([]byte(candidate.Key), []byte(key)) == 1 {
			return candidate.Name, nil
		}
	}
	return "", ErrInvalidCredentials
}
