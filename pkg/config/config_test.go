package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigDir(t *testing.T, base, local string) string {
	t.Helper()
	dir := t.TempDir()
	if base != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(base), 0644))
	}
	if local != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.yaml"), []byte(local), 0644))
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 300*time.Second, cfg.Server.StreamTimeout())
	assert.Equal(t, AuthModeOff, cfg.Auth.Mode)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Health.CheckInterval())
	assert.Equal(t, 5*time.Second, cfg.Health.Timeout())
	assert.NotEmpty(t, cfg.Models, "default model catalog should be populated")
	assert.Equal(t, 50, cfg.Title.MaxLength)
}

func TestLoadYAMLOverlay(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	dir := writeConfigDir(t, `
server:
  port: 9100
  timeout_seconds: 60
logging:
  level: debug
`, `
server:
  port: 9200
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	// The local file overrides the base file key-by-key; untouched keys
	// survive the merge.
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Server.TimeoutSeconds)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MAMBA_SERVER__PORT", "9300")
	t.Setenv("MAMBA_LOGGING__FORMAT", "text")
	t.Setenv("MAMBA_HEALTH__OPENAI_CHECK_ENABLED", "false")

	dir := writeConfigDir(t, `
server:
  port: 9100
`, "")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9300, cfg.Server.Port, "env override beats the config file")
	assert.Equal(t, "text", cfg.Logging.Format)
	require.NotNil(t, cfg.Health.OpenAICheckEnabled)
	assert.False(t, *cfg.Health.OpenAICheckEnabled)
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "unused")
	t.Setenv("TEST_MAMBA_KEY", "sk-expanded")
	t.Setenv("TEST_MAMBA_PORT", "")

	dir := writeConfigDir(t, `
openai:
  api_key: ${TEST_MAMBA_KEY}
server:
  port: ${TEST_MAMBA_PORT:-9400}
`, "")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "sk-expanded", cfg.OpenAI.APIKey)
	assert.Equal(t, 9400, cfg.Server.Port, "empty variable falls back to the default")
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "port out of range",
			yaml: "server:\n  port: 70000\n",
		},
		{
			name: "bad auth mode",
			yaml: "auth:\n  mode: basic\n",
		},
		{
			name: "api-key mode without keys",
			yaml: "auth:\n  mode: api-key\n",
		},
		{
			name: "jwt mode without secret or jwks",
			yaml: "auth:\n  mode: jwt\n",
		},
		{
			name: "title max length too small",
			yaml: "title:\n  max_length: 5\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeConfigDir(t, tt.yaml, "")
			_, err := Load(dir)
			assert.Error(t, err)
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_MAMBA_VALUE", "hello")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"braced", "${TEST_MAMBA_VALUE}", "hello"},
		{"simple", "$TEST_MAMBA_VALUE", "hello"},
		{"default used", "${TEST_MAMBA_UNSET:-fallback}", "fallback"},
		{"default skipped", "${TEST_MAMBA_VALUE:-fallback}", "hello"},
		{"unset braced expands empty", "${TEST_MAMBA_UNSET}", ""},
		{"no reference passes through", "plain", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnvVars(tt.input))
		})
	}
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, false, parseValue("FALSE"))
	assert.Equal(t, 42, parseValue("42"))
	assert.Equal(t, 1.5, parseValue("1.5"))
	assert.Equal(t, "plain", parseValue("plain"))

	parsed := parseValue(`[{"key":"k1","name":"ci"}]`)
	list, ok := parsed.([]any)
	require.True(t, ok, "JSON literal should decode")
	assert.Len(t, list, 1)
}

func TestDeepMerge(t *testing.T) {
	base := map[string]any{
		"server": map[string]any{"port": 8000, "host": "0.0.0.0"},
		"title":  map[string]any{"max_length": 60},
	}
	override := map[string]any{
		"server": map[string]any{"port": 9000},
		"models": []any{"a"},
	}

	merged := deepMerge(base, override)

	server := merged["server"].(map[string]any)
	assert.Equal(t, 9000, server["port"])
	assert.Equal(t, "0.0.0.0", server["host"])
	assert.Equal(t, map[string]any{"max_length": 60}, merged["title"])
	assert.Equal(t, []any{"a"}, merged["models"])
}

func TestExtractAndHelpers(t *testing.T) {
	assert.True(t, BoolValue(BoolPtr(true), false))
	assert.False(t, BoolValue(BoolPtr(false), true))
	assert.True(t, BoolValue(nil, true))
}
