// Package config defines the Mamba server configuration and its loading
// pipeline.
//
// Configuration is assembled from several sources, highest precedence first:
//
//  1. Environment variables with the MAMBA_ prefix ("__" separates nesting,
//     e.g. MAMBA_SERVER__PORT=9000)
//  2. ~/mamba.env (loaded into the environment, never overriding it)
//  3. config.local.yaml in the config directory
//  4. config.yaml in the config directory
//  5. Code defaults
//
// The loaded Config is immutable: it is read once at startup and passed by
// value into the composition root. Changing configuration requires a restart.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Auth modes.
const (
	AuthModeOff    = "off"
	AuthModeAPIKey = "api-key"
	AuthModeJWT    = "jwt"
)

// Config is the root configuration for the Mamba server.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Auth    AuthConfig    `yaml:"auth,omitempty"`
	OpenAI  OpenAIConfig  `yaml:"openai,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Title   TitleConfig   `yaml:"title,omitempty"`
	Health  HealthConfig  `yaml:"health,omitempty"`
	Models  []ModelConfig `yaml:"models,omitempty"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Host to bind to.
	Host string `yaml:"host,omitempty"`

	// Port to listen on.
	Port int `yaml:"port,omitempty"`

	// TimeoutSeconds is the wall-clock limit for a streaming response.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`

	// CORS configures cross-origin access.
	CORS CORSConfig `yaml:"cors,omitempty"`
}

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	AllowedMethods []string `yaml:"allowed_methods,omitempty"`
	AllowedHeaders []string `yaml:"allowed_headers,omitempty"`
}

// APIKeyConfig is a single named API key.
type APIKeyConfig struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

// JWTConfig configures JWT validation for the jwt auth mode.
//
// Either Secret (HS256 shared secret) or JWKSURL (remote key set) must be
// set. When both are present the key set wins.
type JWTConfig struct {
	Secret   string `yaml:"secret,omitempty"`
	JWKSURL  string `yaml:"jwks_url,omitempty"`
	Issuer   string `yaml:"issuer,omitempty"`
	Audience string `yaml:"audience,omitempty"`

	// RefreshInterval is how often the JWKS is refreshed.
	RefreshInterval time.Duration `yaml:"refresh_interval,omitempty"`
}

// AuthConfig configures client authentication.
//
// Authentication is off by default. Health endpoints never require
// authentication regardless of mode.
type AuthConfig struct {
	// Mode is one of "off", "api-key", "jwt".
	Mode string `yaml:"mode,omitempty"`

	// APIKeys are the accepted keys for the api-key mode.
	APIKeys []APIKeyConfig `yaml:"api_keys,omitempty"`

	// JWT configures the jwt mode.
	JWT JWTConfig `yaml:"jwt,omitempty"`
}

// OpenAIConfig configures the upstream completion API.
type OpenAIConfig struct {
	// APIKey authenticates against the upstream. Supports ${VAR} expansion;
	// falls back to the OPENAI_API_KEY environment variable.
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL is the upstream API root.
	BaseURL string `yaml:"base_url,omitempty"`

	// TimeoutSeconds bounds the connection phase of an upstream call.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`

	// MaxRetries is the attempt budget for transient upstream failures.
	MaxRetries int `yaml:"max_retries,omitempty"`

	// DefaultModel is used when a request does not carry one.
	DefaultModel string `yaml:"default_model,omitempty"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// Format is "json" or "text".
	Format string `yaml:"format,omitempty"`
}

// TitleConfig configures the title generation endpoint.
type TitleConfig struct {
	// MaxLength is the maximum title length in characters (10-200).
	MaxLength int `yaml:"max_length,omitempty"`

	// TimeoutMS bounds title generation in milliseconds (1000-30000).
	TimeoutMS int `yaml:"timeout_ms,omitempty"`

	// Model used for title generation.
	Model string `yaml:"model,omitempty"`
}

// HealthConfig configures dependency health checks.
type HealthConfig struct {
	// OpenAICheckEnabled toggles the upstream connectivity probe.
	OpenAICheckEnabled *bool `yaml:"openai_check_enabled,omitempty"`

	// CheckIntervalSeconds is how long probe results are cached.
	CheckIntervalSeconds int `yaml:"check_interval_seconds,omitempty"`

	// TimeoutSeconds bounds a single probe.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
}

// ModelConfig describes one entry of the model catalog served by /models.
type ModelConfig struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Provider      string `yaml:"provider"`
	OpenAIModel   string `yaml:"openai_model,omitempty"`
	Description   string `yaml:"description,omitempty"`
	ContextWindow int    `yaml:"context_window,omitempty"`
	SupportsTools *bool  `yaml:"supports_tools,omitempty"`
}

// SetDefaults applies default values to the full tree.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Auth.SetDefaults()
	c.OpenAI.SetDefaults()
	c.Logging.SetDefaults()
	c.Title.SetDefaults()
	c.Health.SetDefaults()

	if len(c.Models) == 0 {
		c.Models = DefaultModels()
	}
	for i := range c.Models {
		if c.Models[i].SupportsTools == nil {
			c.Models[i].SupportsTools = BoolPtr(true)
		}
		if c.Models[i].OpenAIModel == "" {
			// "openai/gpt-4o" -> "gpt-4o"
			if idx := strings.Index(c.Models[i].ID, "/"); idx >= 0 {
				c.Models[i].OpenAIModel = c.Models[i].ID[idx+1:]
			} else {
				c.Models[i].OpenAIModel = c.Models[i].ID
			}
		}
	}
}

// SetDefaults applies server defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 300
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Content-Type", "Authorization", "X-API-Key", "X-Request-ID"}
	}
}

// SetDefaults applies auth defaults and normalizes legacy mode names.
func (c *AuthConfig) SetDefaults() {
	switch strings.ToLower(c.Mode) {
	case "", "none":
		c.Mode = AuthModeOff
	case "api_key", "apikey":
		c.Mode = AuthModeAPIKey
	default:
		c.Mode = strings.ToLower(c.Mode)
	}
	if c.JWT.RefreshInterval == 0 {
		c.JWT.RefreshInterval = 15 * time.Minute
	}
}

// SetDefaults applies upstream defaults.
func (c *OpenAIConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 60
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.DefaultModel == "" {
		c.DefaultModel = "gpt-4o"
	}
}

// SetDefaults applies logging defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
}

// SetDefaults applies title defaults.
func (c *TitleConfig) SetDefaults() {
	if c.MaxLength == 0 {
		c.MaxLength = 50
	}
	if c.TimeoutMS == 0 {
		c.TimeoutMS = 10000
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
}

// SetDefaults applies health check defaults.
func (c *HealthConfig) SetDefaults() {
	if c.OpenAICheckEnabled == nil {
		c.OpenAICheckEnabled = BoolPtr(true)
	}
	if c.CheckIntervalSeconds == 0 {
		c.CheckIntervalSeconds = 30
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 5
	}
}

// DefaultModels returns the built-in model catalog.
func DefaultModels() []ModelConfig {
	return []ModelConfig{
		{
			ID:            "openai/gpt-4o",
			Name:          "GPT-4o",
			Provider:      "openai",
			OpenAIModel:   "gpt-4o",
			Description:   "Most capable GPT-4 model",
			ContextWindow: 128000,
			SupportsTools: BoolPtr(true),
		},
		{
			ID:            "openai/gpt-4o-mini",
			Name:          "GPT-4o Mini",
			Provider:      "openai",
			OpenAIModel:   "gpt-4o-mini",
			Description:   "Fast and cost-effective",
			ContextWindow: 128000,
			SupportsTools: BoolPtr(true),
		},
	}
}

// Validate checks the full configuration tree.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.OpenAI.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Title.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Port)
	}
	if c.TimeoutSeconds < 1 {
		return fmt.Errorf("server timeout_seconds must be positive, got %d", c.TimeoutSeconds)
	}
	return nil
}

// Validate checks the auth configuration.
func (c *AuthConfig) Validate() error {
	switch c.Mode {
	case AuthModeOff:
		return nil
	case AuthModeAPIKey:
		if len(c.APIKeys) == 0 {
			return fmt.Errorf("at least one API key is required when auth mode is %q", AuthModeAPIKey)
		}
		for _, k := range c.APIKeys {
			if k.Key == "" {
				return fmt.Errorf("api key entry %q has an empty key", k.Name)
			}
		}
		return nil
	case AuthModeJWT:
		if c.JWT.Secret == "" && c.JWT.JWKSURL == "" {
			return fmt.Errorf("jwt secret or jwks_url is required when auth mode is %q", AuthModeJWT)
		}
		return nil
	default:
		return fmt.Errorf("invalid auth mode %q (valid: off, api-key, jwt)", c.Mode)
	}
}

// Validate checks the upstream configuration.
func (c *OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable or openai.api_key config is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("openai.base_url cannot be empty")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("openai.max_retries must be at least 1, got %d", c.MaxRetries)
	}
	return nil
}

// Validate checks the logging configuration.
func (c *LoggingConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", c.Level)
	}
	switch strings.ToLower(c.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q (valid: json, text)", c.Format)
	}
	return nil
}

// Validate checks the title configuration.
func (c *TitleConfig) Validate() error {
	if c.MaxLength < 10 || c.MaxLength > 200 {
		return fmt.Errorf("title max_length must be between 10 and 200, got %d", c.MaxLength)
	}
	if c.TimeoutMS < 1000 || c.TimeoutMS > 30000 {
		return fmt.Errorf("title timeout_ms must be between 1000 and 30000, got %d", c.TimeoutMS)
	}
	return nil
}

// StreamTimeout returns the wall-clock limit for one streaming response.
func (c *ServerConfig) StreamTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Address returns the host:port listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Timeout returns the upstream connection-phase timeout.
func (c *OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the title generation deadline.
func (c *TitleConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Timeout returns the per-probe health check deadline.
func (c *HealthConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CheckInterval returns how long health probe results are cached.
func (c *HealthConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

// BoolPtr returns a pointer to the given bool.
func BoolPtr(b bool) *bool {
	return &b
}

// BoolValue dereferences an optional bool, falling back to def when nil.
func BoolValue(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
