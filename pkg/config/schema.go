package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DumpYAML renders a configuration as a YAML document. Used by the
// -dump-config flag of the server binary to print a fully-defaulted
// config that can be edited and fed back in.
func DumpYAML(cfg *Config) (string, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(out), nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}
