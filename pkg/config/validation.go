package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for invalid or inconsistent values.
//
// Struct-level constraints come from `validate` tags; cross-field rules
// that tags cannot express are checked explicitly afterwards.
func Validate(cfg *Config) error {
	v := validator.New()

	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage configuration: %w", err)
	}

	if cfg.Auth.Enabled && cfg.Auth.AdminToken == "" {
		return fmt.Errorf("auth is enabled but no admin_token is set " +
			"(set auth.admin_token or IDBUILDER_AUTH_ADMIN_TOKEN)")
	}

	return nil
}
