package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kadirpekel/mamba/pkg/chat"
	"github.com/kadirpekel/mamba/pkg/httpclient"
)

// Error codes carried in HTTP error bodies.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeValidationError    = "VALIDATION_ERROR"
	CodeAuthRequired       = "AUTH_REQUIRED"
	CodeAuthInvalid        = "AUTH_INVALID"
	CodeRateLimited        = "RATE_LIMITED"
	CodeProviderError      = "PROVIDER_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeTimeout            = "TIMEOUT"
)

// ErrorResponse is the body of every pre-stream HTTP error. Once an SSE
// stream is open, failures travel in-band instead.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError answers the request with a structured JSON error body. The
// user-visible detail stays concise; anything sensitive belongs in logs.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Detail:    chat.TruncateError(detail),
		Code:      code,
		RequestID: RequestIDFrom(r.Context()),
	})
}

// classifyUpstream maps an upstream connection-phase failure to an HTTP
// status, error code, and user-facing message. Transient failures that
// exhausted their retry budget become 503; upstream 4xx become 502 (the
// proxy received a valid but failing answer).
func classifyUpstream(err error) (int, string, string) {
	// Rate limiting is reported as such even when it exhausted the retry
	// budget first.
	if httpclient.StatusCode(err) == http.StatusTooManyRequests {
		return http.StatusServiceUnavailable, CodeRateLimited,
			"The service is experiencing high demand. Please try again in a moment."
	}

	var retryErr *httpclient.RetryableError
	if errors.As(err, &retryErr) {
		return http.StatusServiceUnavailable, CodeServiceUnavailable,
			"The service is temporarily unavailable. Please try again later."
	}

	if httpclient.StatusCode(err) != 0 {
		return http.StatusBadGateway, CodeProviderError,
			"The AI provider returned an error. Please try again."
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, CodeTimeout,
			"The request timed out. Please try again."
	}

	return http.StatusServiceUnavailable, CodeServiceUnavailable,
		"The service is temporarily unavailable. Please try again later."
}

// logError records the full failure keyed by request id.
func logError(logger *slog.Logger, r *http.Request, msg string, err error) {
	logger.Error(msg,
		"error", err,
		"request_id", RequestIDFrom(r.Context()),
		"path", r.URL.Path)
}
