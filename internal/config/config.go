package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"pulseboard/internal/generate"
)

// Config models pulseboard.yml.
type Config struct {
	Generation struct {
		Model          string `yaml:"model"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		APIKeyEnv      string `yaml:"api_key_env"`
	} `yaml:"generation"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
}

// Load reads and validates config from the workspace, falling back to the
// defaults when the file does not exist.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Generation.Model == "" {
		return fmt.Errorf("config.generation.model is required")
	}
	if c.Generation.TimeoutSeconds <= 0 {
		return fmt.Errorf("config.generation.timeout_seconds must be positive")
	}
	if c.Generation.APIKeyEnv == "" {
		return fmt.Errorf("config.generation.api_key_env is required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "pulseboard.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	cfg.Generation.Model = generate.DefaultModel
	cfg.Generation.TimeoutSeconds = int(generate.DefaultTimeout.Seconds())
	cfg.Generation.APIKeyEnv = "GEMINI_API_KEY"
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Server.BasePath = "/v0"
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Omitted
// sections keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return fmt.Sprintf(defaultTemplate, generate.DefaultModel, int(generate.DefaultTimeout.Seconds()))
}

const defaultTemplate = `generation:
  model: %s
  timeout_seconds: %d
  api_key_env: GEMINI_API_KEY

server:
  addr: 127.0.0.1:8080
  base_path: /v0
`
