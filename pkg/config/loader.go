package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config file names looked up inside the config directory. The local file
// overlays the base file.
const (
	configFileName      = "config.yaml"
	localConfigFileName = "config.local.yaml"
)

// Load assembles the configuration from all sources.
//
// configDir may be empty, in which case only environment variables and env
// files contribute. Missing YAML files are not an error.
func Load(configDir string) (*Config, error) {
	// Env files feed the environment before anything reads it. Real
	// environment variables always win: godotenv never overrides.
	loadEnvFiles()

	merged := map[string]any{}

	if configDir != "" {
		base, err := readYAMLFile(filepath.Join(configDir, configFileName))
		if err != nil {
			return nil, err
		}
		local, err := readYAMLFile(filepath.Join(configDir, localConfigFileName))
		if err != nil {
			return nil, err
		}
		merged = deepMerge(base, local)
	}

	// MAMBA_-prefixed environment variables override file values.
	applyEnvOverrides(merged, envPrefix)

	// Expand ${VAR} references inside values.
	expanded := expandEnvVarsInMap(merged)

	cfg := &Config{}
	if err := decodeConfig(expanded, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Direct fallbacks recognized for upstream credentials.
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("OPENAI_API_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// readYAMLFile parses one YAML file into a generic map. A missing file
// yields an empty map.
func readYAMLFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var result map[string]any
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if result == nil {
		result = map[string]any{}
	}
	return result, nil
}

// deepMerge merges override into base recursively. Map values merge by key;
// everything else is replaced by the override.
func deepMerge(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if existing, ok := result[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMerge(existing, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// decodeConfig decodes a generic map into the Config struct.
func decodeConfig(input map[string]any, output *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}

	return nil
}
