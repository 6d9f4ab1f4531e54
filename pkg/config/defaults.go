package config

import (
	"strings"
	"time"

	"github.com/harshini-shah/dfs/internal/protocol/dfsrpc"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields.
//
// Zero values (0, "", false) are replaced with defaults; explicit values
// are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyReplicationDefaults(&cfg.Replication)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":9090"
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)
}

// applyServerDefaults sets endpoint defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ServicePort == 0 {
		cfg.ServicePort = dfsrpc.ServicePort
	}
	if cfg.RegistrationPort == 0 {
		cfg.RegistrationPort = dfsrpc.RegistrationPort
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyReplicationDefaults sets replication pool defaults.
func applyReplicationDefaults(cfg *ReplicationConfig) {
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = 64
	}
}
