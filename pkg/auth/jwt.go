package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/kadirpekel/mamba/pkg/config"
)

// JWTAuthenticator validates Bearer tokens. Keys come from either a remote
// JWKS (cached and auto-refreshed to handle rotation) or a static HS256
// shared secret; when both are configured, the key set wins.
type JWTAuthenticator struct {
	cfg     *config.JWTConfig
	jwksURL string
	cache   *jwk.Cache
	secret  []byte
}

// NewJWTAuthenticator creates the validator. When a JWKS URL is configured,
// the initial fetch happens here so misconfiguration fails at startup, not
// on the first request.
func NewJWTAuthenticator(cfg *config.JWTConfig) (*JWTAuthenticator, error) {
	a := &JWTAuthenticator{cfg: cfg}

	if cfg.JWKSURL != "" {
		ctx := context.Background()
		cache := jwk.NewCache(ctx)
		if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(cfg.RefreshInterval)); err != nil {
			return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
		}
		if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
			return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", cfg.JWKSURL, err)
		}
		a.jwksURL = cfg.JWKSURL
		a.cache = cache
		return a, nil
	}

	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt auth requires a secret or a jwks_url")
	}
	a.secret = []byte(cfg.Secret)
	return a, nil
}

// Authenticate validates the request's Bearer token and returns the token
// subject. Signature, expiry, and the configured issuer and audience are
// all checked.
func (a *JWTAuthenticator) Authenticate(r *http.Request) (string, error) {
	tokenString := bearerToken(r)
	if tokenString == "" {
		return "", ErrMissingCredentials
	}

	options := []jwt.ParseOption{jwt.WithValidate(true)}

	if a.cache != nil {
		keyset, err := a.cache.Get(r.Context(), a.jwksURL)
		if err != nil {
			return "", fmt.Errorf("failed to get JWKS: %w", err)
		}
		options = append(options, jwt.WithKeySet(keyset))
	} else {
		options = append(options, jwt.WithKey(jwa.HS256, a.secret))
	}

	if a.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		options = append(options, jwt.WithAudience(a.cfg.Audience))
	}

	token, err := jwt.Parse([]byte(tokenString), options...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	return token.Subject(), nil
}
