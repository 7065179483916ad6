package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx upstream response. Body holds a bounded prefix
// of the response body for diagnostics; the response itself is closed.
type StatusError struct {
	StatusCode int
	Retryable  bool
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// RetryableError signals that the attempt budget was exhausted on a
// transient failure.
type RetryableError struct {
	Message string
	Err     error
}

func (e *RetryableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// StatusCode extracts the HTTP status from an upstream error chain.
// Returns 0 when the error carries no status (transport failure).
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
