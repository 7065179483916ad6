package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Health endpoints are always reachable without credentials so liveness
// and readiness probes keep working when auth is misconfigured.
var excludedPaths = map[string]bool{
	"/health":       true,
	"/health/live":  true,
	"/health/ready": true,
}

// Middleware enforces authentication on every route except the health
// endpoints. Failures are answered with a 401 JSON body carrying an error
// code: AUTH_REQUIRED when no credentials were sent, AUTH_INVALID when
// they did not validate.
func Middleware(authenticator Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if excludedPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			subject, err := authenticator.Authenticate(r)
			if err != nil {
				code := "AUTH_INVALID"
				detail := "Invalid authentication credentials"
				if errors.Is(err, ErrMissingCredentials) {
					code = "AUTH_REQUIRED"
					detail = "Authentication required"
				}
				logger.Warn("authentication failed",
					"path", r.URL.Path,
					"error", err)
				writeAuthError(w, detail, code)
				return
			}

			if subject != "" {
				logger.Debug("request authenticated", "subject", subject)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, detail, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"detail": detail,
		"code":   code,
	})
}
