package gateway

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds gateway service settings, loadable from a YAML file with
// environment fallbacks handled by the caller.
type Config struct {
	Port       string           `yaml:"port"`
	NATSURL    string           `yaml:"nats_url"`
	Connection ConnectionConfig `yaml:"connection"`
}

// DefaultConfig returns the gateway defaults.
func DefaultConfig() Config {
	return Config{
		Port:       "8081",
		NATSURL:    "nats://localhost:4222",
		Connection: DefaultConnectionConfig(),
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
