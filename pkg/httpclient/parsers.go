package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

// ParseRetryAfter reads the Retry-After header, accepting both the
// delta-seconds and HTTP-date forms.
func ParseRetryAfter(h http.Header) RateLimitInfo {
	info := RateLimitInfo{}

	v := h.Get("Retry-After")
	if v == "" {
		return info
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		info.RetryAfter = time.Duration(secs) * time.Second
		return info
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			info.RetryAfter = d
		}
	}
	return info
}

// ParseOpenAIHeaders extracts rate limit info from OpenAI API headers.
// Retry-After drives the backoff; the remaining-quota counters only inform
// retry logging.
func ParseOpenAIHeaders(h http.Header) RateLimitInfo {
	info := ParseRetryAfter(h)

	if remaining := h.Get("x-ratelimit-remaining-requests"); remaining != "" {
		if n, err := strconv.Atoi(remaining); err == nil {
			info.RequestsRemaining = n
		}
	}
	if remaining := h.Get("x-ratelimit-remaining-tokens"); remaining != "" {
		if n, err := strconv.Atoi(remaining); err == nil {
			info.TokensRemaining = n
		}
	}

	return info
}
