// Package config loads and validates the DFS server configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DFS_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete naming server configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains the endpoint and shutdown settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Replication tunes the background replication controller
	Replication ReplicationConfig `mapstructure:"replication" yaml:"replication"`

	// Metrics controls Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// ServerConfig contains the naming server endpoint settings.
type ServerConfig struct {
	// ServicePort is the well-known port of the client-facing Service
	// interface
	ServicePort int `mapstructure:"service_port" yaml:"service_port" validate:"required,min=1,max=65535"`

	// RegistrationPort is the well-known port of the storage-server-facing
	// Registration interface
	RegistrationPort int `mapstructure:"registration_port" yaml:"registration_port" validate:"required,min=1,max=65535"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`
}

// ReplicationConfig tunes the background replication controller.
type ReplicationConfig struct {
	// Workers is the size of the replication worker pool
	Workers int `mapstructure:"workers" yaml:"workers" validate:"required,min=1,max=64"`

	// QueueDepth bounds the pending replication task queue
	QueueDepth int `mapstructure:"queue_depth" yaml:"queue_depth" validate:"required,min=1"`
}

// MetricsConfig controls Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled turns the global metrics registry on
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// ListenAddr is where the /metrics endpoint is served when enabled
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// Load reads the configuration from the given file (optional), the
// environment, and the defaults, then validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file
// settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the DFS_ prefix and underscores
	// Example: DFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper knows about, so bind every key
	// explicitly; otherwise an env var is ignored unless the file sets it.
	for _, key := range []string{
		"logging.level",
		"server.service_port", "server.registration_port", "server.shutdown_timeout",
		"replication.workers", "replication.queue_depth",
		"metrics.enabled", "metrics.listen_addr",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing
// file is acceptable - defaults apply.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the default configuration directory,
// $XDG_CONFIG_HOME/dfs or ~/.config/dfs.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg + "/dfs"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home + "/.config/dfs"
}
