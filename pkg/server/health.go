package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/mamba/pkg/config"
)

// Component health statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// latencyDegradedMS marks the upstream probe latency above which the
// component reports degraded instead of healthy.
const latencyDegradedMS = 2000

// ComponentHealth is one dependency's probe result.
type ComponentHealth struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
}

// HealthResponse is the body of GET /health and /health/ready.
type HealthResponse struct {
	Status    string                     `json:"status"`
	Version   string                     `json:"version"`
	Timestamp time.Time                  `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// healthChecker probes dependencies and caches the result for the
// configured interval, so probe traffic stays bounded regardless of how
// often Kubernetes asks.
type healthChecker struct {
	cfg     *config.HealthConfig
	openai  *config.OpenAIConfig
	client  *http.Client
	version string

	mu        sync.Mutex
	cached    *HealthResponse
	checkedAt time.Time
}

func newHealthChecker(cfg *config.HealthConfig, openai *config.OpenAIConfig, version string) *healthChecker {
	return &healthChecker{
		cfg:     cfg,
		openai:  openai,
		client:  &http.Client{Timeout: cfg.Timeout()},
		version: version,
	}
}

// Check returns the current health summary, probing dependencies when the
// cached result has expired.
func (h *healthChecker) Check(ctx context.Context) *HealthResponse {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cached != nil && time.Since(h.checkedAt) < h.cfg.CheckInterval() {
		return h.cached
	}

	checks := h.runChecks(ctx)

	h.cached = &HealthResponse{
		Status:    overallStatus(checks),
		Version:   h.version,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	}
	h.checkedAt = time.Now()

	return h.cached
}

// runChecks probes every dependency concurrently. Each check writes its
// own slot, so no further synchronization is needed.
func (h *healthChecker) runChecks(ctx context.Context) map[string]ComponentHealth {
	checks := make(map[string]ComponentHealth)

	var openaiResult ComponentHealth
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		openaiResult = h.checkOpenAI(ctx)
		return nil
	})
	_ = g.Wait()

	checks["openai"] = openaiResult
	return checks
}

// checkOpenAI probes upstream connectivity through the lightweight models
// listing. High latency degrades; a 401 means the configured key is bad.
func (h *healthChecker) checkOpenAI(ctx context.Context) ComponentHealth {
	if !config.BoolValue(h.cfg.OpenAICheckEnabled, true) {
		return ComponentHealth{Status: StatusHealthy, Message: "Check disabled"}
	}
	if h.openai.APIKey == "" {
		return ComponentHealth{Status: StatusUnhealthy, Error: "OpenAI API key not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.openai.BaseURL+"/models", nil)
	if err != nil {
		return ComponentHealth{Status: StatusUnhealthy, Error: "Failed to build probe request"}
	}
	req.Header.Set("Authorization", "Bearer "+h.openai.APIKey)

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ComponentHealth{Status: StatusUnhealthy, Error: "Connection timeout"}
		}
		return ComponentHealth{Status: StatusUnhealthy, Error: "Connection failed"}
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	switch {
	case resp.StatusCode == http.StatusOK:
		if latency > latencyDegradedMS {
			return ComponentHealth{
				Status:    StatusDegraded,
				LatencyMS: latency,
				Message:   "High latency detected",
			}
		}
		return ComponentHealth{Status: StatusHealthy, LatencyMS: latency}
	case resp.StatusCode == http.StatusUnauthorized:
		return ComponentHealth{Status: StatusUnhealthy, Error: "Invalid API key"}
	default:
		return ComponentHealth{
			Status: StatusUnhealthy,
			Error:  fmt.Sprintf("Unexpected status code: %d", resp.StatusCode),
		}
	}
}

// overallStatus folds component results: any unhealthy wins, then any
// degraded, else healthy.
func overallStatus(checks map[string]ComponentHealth) string {
	status := StatusHealthy
	for _, check := range checks {
		switch check.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// handleHealth reports the full health summary: 200 when healthy or
// degraded, 503 when unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	result := s.health.Check(r.Context())

	status := http.StatusOK
	if result.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, result)
}

// handleLive answers the liveness probe. No dependencies are touched: a
// running process is alive.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
