package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// envPrefix marks environment variables that override config values.
// Nesting is expressed with a double underscore: MAMBA_SERVER__PORT=9000
// sets server.port.
const envPrefix = "MAMBA_"

// envFileName is the per-user env file loaded from the home directory.
const envFileName = "mamba.env"

var envVarPatterns = struct {
	withDefault *regexp.Regexp
	braced      *regexp.Regexp
	simple      *regexp.Regexp
}{
	withDefault: regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`),
	braced:      regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`),
	simple:      regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`),
}

// loadEnvFiles loads ~/mamba.env and ./.env into the process environment.
// godotenv.Load never overrides variables that are already set, which keeps
// real environment variables above file values in precedence.
func loadEnvFiles() {
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, envFileName))
	}
	_ = godotenv.Load(".env")
}

// expandEnvVars substitutes ${VAR:-default}, ${VAR} and $VAR patterns.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	s = envVarPatterns.withDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.withDefault.FindStringSubmatch(match)
		if len(parts) == 3 {
			if val := os.Getenv(parts[1]); val != "" {
				return val
			}
			return parts[2]
		}
		return match
	})

	s = envVarPatterns.braced.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.braced.FindStringSubmatch(match)
		if len(parts) == 2 {
			return os.Getenv(parts[1])
		}
		return match
	})

	s = envVarPatterns.simple.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.simple.FindStringSubmatch(match)
		if len(parts) == 2 {
			return os.Getenv(parts[1])
		}
		return match
	})

	return s
}

// parseValue converts a string to its most specific type.
func parseValue(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}

	if intVal, err := strconv.Atoi(value); err == nil {
		return intVal
	}
	if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
		return floatVal
	}

	// JSON literals allow complex values in env vars, e.g.
	// MAMBA_AUTH__API_KEYS='[{"key":"k1","name":"ci"}]'
	if strings.HasPrefix(value, "[") || strings.HasPrefix(value, "{") {
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			return parsed
		}
	}

	return value
}

// expandEnvVarsInMap walks a config map and expands env references in
// every string value. Expanded values are re-typed with parseValue so that
// "${PORT:-8000}" decodes as an integer.
func expandEnvVarsInMap(input map[string]any) map[string]any {
	result := make(map[string]any, len(input))
	for k, v := range input {
		result[k] = expandValue(v)
	}
	return result
}

func expandValue(v any) any {
	switch val := v.(type) {
	case string:
		expanded := expandEnvVars(val)
		if expanded != val {
			return parseValue(expanded)
		}
		return expanded
	case map[string]any:
		return expandEnvVarsInMap(val)
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = expandValue(item)
		}
		return result
	default:
		return v
	}
}

// applyEnvOverrides writes prefixed environment variables into the config
// map. MAMBA_OPENAI__API_KEY sets openai.api_key; segments are lowercased
// and nested maps are created as needed.
func applyEnvOverrides(m map[string]any, prefix string) {
	for _, entry := range os.Environ() {
		eq := strings.Index(entry, "=")
		if eq < 0 {
			continue
		}
		name, value := entry[:eq], entry[eq+1:]
		if !strings.HasPrefix(name, prefix) {
			continue
		}

		path := strings.Split(strings.TrimPrefix(name, prefix), "__")
		for i := range path {
			path[i] = strings.ToLower(path[i])
		}
		if len(path) == 0 || path[0] == "" {
			continue
		}

		setNested(m, path, parseValue(value))
	}
}

func setNested(m map[string]any, path []string, value any) {
	for i := 0; i < len(path)-1; i++ {
		next, ok := m[path[i]].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[path[i]] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}
