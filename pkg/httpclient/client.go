// Package httpclient provides a retrying HTTP client for upstream calls.
//
// Retries apply only while establishing a request: once a response body is
// being streamed, failures surface to the caller untouched. Transient
// failures (HTTP 429, 5xx, connection resets, DNS errors, I/O timeouts)
// back off exponentially with jitter; everything else returns immediately.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"time"
)

// maxErrorBodyBytes caps how much of a failed response body is kept for
// diagnostics.
const maxErrorBodyBytes = 4096

// RateLimitInfo carries server-provided retry hints and quota counters.
type RateLimitInfo struct {
	RetryAfter        time.Duration
	RequestsRemaining int
	TokensRemaining   int
}

// RateLimitHeaderParser extracts retry hints from response headers.
type RateLimitHeaderParser func(http.Header) RateLimitInfo

// RetryableFunc decides whether a status code is worth retrying.
type RetryableFunc func(statusCode int) bool

// Client wraps http.Client with retry behavior.
type Client struct {
	client       *http.Client
	maxAttempts  int
	baseDelay    time.Duration
	headerParser RateLimitHeaderParser
	retryable    RetryableFunc
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithMaxAttempts sets the total attempt budget (first try included).
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

// WithBaseDelay sets the first backoff delay.
func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = delay
	}
}

// WithHeaderParser sets the rate-limit header parser.
func WithHeaderParser(parser RateLimitHeaderParser) Option {
	return func(c *Client) {
		c.headerParser = parser
	}
}

// WithRetryableFunc sets the status-code classifier.
func WithRetryableFunc(fn RetryableFunc) Option {
	return func(c *Client) {
		c.retryable = fn
	}
}

// WithLogger sets the logger used for retry messages.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a retrying client. Defaults: 3 attempts, 1s base delay,
// Retry-After header honored, 429 and 5xx retryable.
func New(opts ...Option) *Client {
	client := &Client{
		client:       &http.Client{},
		maxAttempts:  3,
		baseDelay:    time.Second,
		headerParser: ParseRetryAfter,
		retryable:    RetryableStatus,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// RetryableStatus reports whether a status code indicates a transient
// upstream failure.
func RetryableStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// Do executes the request, retrying transient failures. Request bodies are
// replayed through GetBody, which http.NewRequest populates for common body
// types. Cancellation of the request context stops retrying immediately.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to recreate request body for retry: %w", err)
			}
			req.Body = body
		}

		resp, retryInfo, err := c.attemptRequest(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isTransient(err) {
			return resp, err
		}

		if attempt == c.maxAttempts-1 {
			break
		}

		delay := c.backoff(attempt, retryInfo)
		logAttrs := []any{
			"attempt", attempt + 1,
			"max_attempts", c.maxAttempts,
			"delay", delay,
			"error", err,
		}
		if retryInfo.RequestsRemaining > 0 {
			logAttrs = append(logAttrs, "requests_remaining", retryInfo.RequestsRemaining)
		}
		if retryInfo.TokensRemaining > 0 {
			logAttrs = append(logAttrs, "tokens_remaining", retryInfo.TokensRemaining)
		}
		c.logger.Debug("retrying upstream request", logAttrs...)

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(delay):
		}
	}

	return nil, &RetryableError{
		Message: fmt.Sprintf("max attempts (%d) exceeded", c.maxAttempts),
		Err:     lastErr,
	}
}

// attemptRequest runs one attempt. Non-2xx responses have their bodies
// drained (up to a cap) and closed, and are returned as errors carrying the
// status code and body prefix.
func (c *Client) attemptRequest(req *http.Request) (*http.Response, RateLimitInfo, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, RateLimitInfo{}, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, RateLimitInfo{}, nil
	}

	var retryInfo RateLimitInfo
	if c.headerParser != nil {
		retryInfo = c.headerParser(resp.Header)
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	resp.Body.Close()

	statusErr := &StatusError{
		StatusCode: resp.StatusCode,
		Retryable:  c.retryable(resp.StatusCode),
		Body:       body,
	}

	return nil, retryInfo, statusErr
}

// backoff computes the delay before the next attempt: base * 2^attempt
// with +-20% jitter, or the server's Retry-After when that is larger.
func (c *Client) backoff(attempt int, retryInfo RateLimitInfo) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt)) * float64(c.baseDelay))
	delay = time.Duration(float64(delay) * (0.8 + 0.4*rand.Float64()))

	if retryInfo.RetryAfter > delay {
		return retryInfo.RetryAfter
	}
	return delay
}

// isTransient reports whether an attempt error is worth retrying.
// Context cancellation never is; neither are non-retryable status codes.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable
	}
	// Transport-level failures: connection reset, DNS, I/O timeout.
	return true
}
