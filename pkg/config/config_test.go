package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

server:
  service_port: 7000
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Explicit values are preserved
	if cfg.Server.ServicePort != 7000 {
		t.Errorf("Expected service_port 7000, got %d", cfg.Server.ServicePort)
	}

	// Defaults were applied
	if cfg.Server.RegistrationPort != 6001 {
		t.Errorf("Expected default registration_port 6001, got %d", cfg.Server.RegistrationPort)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Replication.Workers != 4 {
		t.Errorf("Expected default replication workers 4, got %d", cfg.Replication.Workers)
	}
	if cfg.Replication.QueueDepth != 64 {
		t.Errorf("Expected default queue_depth 64, got %d", cfg.Replication.QueueDepth)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Server.ServicePort != 6000 {
		t.Errorf("Expected default service_port 6000, got %d", cfg.Server.ServicePort)
	}
}

func TestLoad_LogLevelNormalized(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "debug"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
}

func TestLoad_InvalidLevel(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "LOUD"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
}

func TestValidate_PortClash(t *testing.T) {
	cfg := Default()
	cfg.Server.RegistrationPort = cfg.Server.ServicePort

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error when both endpoints share a port")
	}
}

func TestDumpYAML_RoundTrips(t *testing.T) {
	out, err := DumpYAML(Default())
	if err != nil {
		t.Fatalf("Failed to dump config: %v", err)
	}

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(out), 0644); err != nil {
		t.Fatalf("Failed to write dumped config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Dumped config does not load back: %v", err)
	}
	if cfg.Server.ServicePort != Default().Server.ServicePort {
		t.Errorf("Round-tripped service_port changed: %d", cfg.Server.ServicePort)
	}
}
