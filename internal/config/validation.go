package config

import (
	"fmt"

	"github.com/LeJamon/goPresale/internal/core/eligibility"
	"github.com/LeJamon/goPresale/internal/core/types"
)

// ValidateConfig performs comprehensive validation on the complete configuration
func ValidateConfig(config *Config) error {
	// Validate server configuration
	if err := config.Server.Validate(); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}
	if err := config.GRPC.Validate(); err != nil {
		return fmt.Errorf("grpc validation failed: %w", err)
	}

	// Validate storage
	if err := config.Database.Validate(); err != nil {
		return fmt.Errorf("database validation failed: %w", err)
	}
	if err := validateEligibility(&config.Eligibility); err != nil {
		return fmt.Errorf("eligibility validation failed: %w", err)
	}

	// Validate sale settings
	if config.Authority != "" {
		if _, err := types.ParseAddress(config.Authority); err != nil {
			return fmt.Errorf("authority validation failed: %w", err)
		}
	}
	if err := config.Sale.Validate(); err != nil {
		return fmt.Errorf("sale validation failed: %w", err)
	}
	if _, err := config.AssetTable(); err != nil {
		return fmt.Errorf("assets validation failed: %w", err)
	}
	if err := config.Oracle.Validate(); err != nil {
		return fmt.Errorf("oracle validation failed: %w", err)
	}
	if _, err := config.RateLimit.Limiter(); err != nil {
		return fmt.Errorf("rate_limit validation failed: %w", err)
	}

	// Validate coordination and diagnostics
	if err := validateLock(&config.Lock); err != nil {
		return fmt.Errorf("lock validation failed: %w", err)
	}
	if err := config.Log.Validate(); err != nil {
		return fmt.Errorf("log validation failed: %w", err)
	}
	if err := config.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics validation failed: %w", err)
	}

	// Cross-validation checks
	if err := validateCrossReferences(config); err != nil {
		return fmt.Errorf("cross-validation failed: %w", err)
	}

	return nil
}

func validateEligibility(e *eligibility.Config) error {
	switch e.Backend {
	case eligibility.BackendPebble, eligibility.BackendLevelDB:
		if e.Path == "" {
			return fmt.Errorf("path is required for the %s backend", e.Backend)
		}
	case eligibility.BackendMemory:
	default:
		return fmt.Errorf("invalid backend: %s (valid options: pebble, leveldb, memory)", e.Backend)
	}
	return nil
}

// validateCrossReferences checks settings that depend on each other
func validateCrossReferences(config *Config) error {
	if config.GRPC.Enabled && config.GRPC.Bind == config.Server.Bind && config.GRPC.Port == config.Server.Port {
		return fmt.Errorf("grpc and server listeners must use different ports")
	}

	if config.Authority != "" && config.Authority == config.Sale.Token {
		return fmt.Errorf("authority and sale token must differ")
	}

	// an in-memory store does not survive restarts or other processes
	if config.Database.Path == ":memory:" && config.Lock.Backend == "redis" {
		return fmt.Errorf("a redis lock is pointless with an in-memory database")
	}

	if config.Database.Driver == "sqlite" && config.Eligibility.Backend != eligibility.BackendMemory &&
		config.Database.Path == config.Eligibility.Path {
		return fmt.Errorf("database.path and eligibility.path must differ")
	}

	return nil
}
