package config

import (
	"testing"
	"time"

	"github.com/marmos91/idbuilder/pkg/storage"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_NormalizesLogLevel(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized log level 'DEBUG', got %q", cfg.Logging.Level)
	}
}

func TestApplyDefaults_Server(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("Expected default read timeout 10s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 10*time.Second {
		t.Errorf("Expected default write timeout 10s, got %v", cfg.Server.WriteTimeout)
	}
	if cfg.Server.IdleTimeout != 60*time.Second {
		t.Errorf("Expected default idle timeout 60s, got %v", cfg.Server.IdleTimeout)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("Expected default request timeout 30s, got %v", cfg.Server.RequestTimeout)
	}
}

func TestApplyDefaults_Storage(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Storage.Type != storage.BackendFile {
		t.Errorf("Expected default storage type 'file', got %q", cfg.Storage.Type)
	}
	if cfg.Storage.File.Dir == "" {
		t.Error("Expected default file backend dir to be set")
	}
}

func TestApplyDefaults_Sequence(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Sequence.BatchSize != 1000 {
		t.Errorf("Expected default batch size 1000, got %d", cfg.Sequence.BatchSize)
	}
	if cfg.Sequence.PrefetchThreshold != 0.2 {
		t.Errorf("Expected default prefetch threshold 0.2, got %v", cfg.Sequence.PrefetchThreshold)
	}
	if cfg.Sequence.PrefetchTimeout != 5*time.Second {
		t.Errorf("Expected default prefetch timeout 5s, got %v", cfg.Sequence.PrefetchTimeout)
	}
}

func TestApplyDefaults_Lease(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Lease.TTL != 60*time.Second {
		t.Errorf("Expected default lease TTL 60s, got %v", cfg.Lease.TTL)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging:         LoggingConfig{Level: "ERROR", Format: "json"},
		ShutdownTimeout: 5 * time.Second,
		Server:          ServerConfig{Port: 9000},
		Sequence:        SequenceConfig{BatchSize: 50},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected explicit log level 'ERROR', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected explicit log format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected explicit shutdown timeout 5s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Expected explicit port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Sequence.BatchSize != 50 {
		t.Errorf("Expected explicit batch size 50, got %d", cfg.Sequence.BatchSize)
	}
}
