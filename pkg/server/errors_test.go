package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/kadirpekel/mamba/pkg/httpclient"
)

func TestClassifyUpstream(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "retry budget exhausted",
			err:        &httpclient.RetryableError{Message: "max attempts (3) exceeded"},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   CodeServiceUnavailable,
		},
		{
			name:       "upstream rate limit",
			err:        fmt.Errorf("request failed: %w", &httpclient.StatusError{StatusCode: 429}),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   CodeRateLimited,
		},
		{
			name:       "upstream auth failure",
			err:        fmt.Errorf("request failed: %w", &httpclient.StatusError{StatusCode: 401}),
			wantStatus: http.StatusBadGateway,
			wantCode:   CodeProviderError,
		},
		{
			name:       "deadline exceeded",
			err:        fmt.Errorf("call: %w", context.DeadlineExceeded),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   CodeTimeout,
		},
		{
			name:       "plain transport failure",
			err:        errors.New("connection refused"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   CodeServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, detail := classifyUpstream(tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if detail == "" {
				t.Error("detail is empty")
			}
		})
	}
}
