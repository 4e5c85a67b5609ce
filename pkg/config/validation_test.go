package config

import (
	"strings"
	"testing"

	"github.com/marmos91/idbuilder/pkg/storage"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	err := Validate(cfg)
	if err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for out-of-range port")
	}
}

func TestValidate_MissingStorageDetails(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.Type = storage.BackendMySQL

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for mysql backend without host")
	}
	if !strings.Contains(err.Error(), "mysql") {
		t.Errorf("Expected mysql in error, got: %v", err)
	}
}

func TestValidate_UnknownStorageType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.Type = "cassandra"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for unknown storage type")
	}
}

func TestValidate_AuthEnabledRequiresAdminToken(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Auth.Enabled = true

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error when auth is enabled without admin token")
	}

	cfg.Auth.AdminToken = "secret"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected config with admin token to pass, got: %v", err)
	}
}
