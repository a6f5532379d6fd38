package config

import (
	"path/filepath"

	"github.com/LeJamon/goPresale/internal/core/eligibility"
	"github.com/LeJamon/goPresale/internal/lock"
	"github.com/LeJamon/goPresale/internal/log"
)

// Config represents the complete presaled configuration
type Config struct {
	// 1. RPC and websocket server, gRPC health listener
	Server ServerConfig `toml:"server" mapstructure:"server"`
	GRPC   GRPCConfig   `toml:"grpc" mapstructure:"grpc"`

	// 2. Storage
	Database    DatabaseConfig     `toml:"database" mapstructure:"database"`
	Eligibility eligibility.Config `toml:"eligibility" mapstructure:"eligibility"`

	// 3. Sale
	Authority string          `toml:"authority" mapstructure:"authority"`
	Sale      SaleConfig      `toml:"sale" mapstructure:"sale"`
	Assets    []AssetConfig   `toml:"assets" mapstructure:"assets"`
	Oracle    OracleConfig    `toml:"oracle" mapstructure:"oracle"`
	RateLimit RateLimitConfig `toml:"rate_limit" mapstructure:"rate_limit"`

	// 4. Coordination between engine processes
	Lock lock.Config `toml:"lock" mapstructure:"lock"`

	// 5. Diagnostics
	Log     log.Config    `toml:"log" mapstructure:"log"`
	Metrics MetricsConfig `toml:"metrics" mapstructure:"metrics"`

	configPath string `toml:"-" mapstructure:"-"`
}

// ConfigPaths holds the paths to configuration files
type ConfigPaths struct {
	Main string // Path to main config file (presaled.toml)
}

// DefaultConfigPaths returns the default configuration file paths
func DefaultConfigPaths() ConfigPaths {
	return ConfigPaths{Main: "presaled.toml"}
}

// ConfigPathsFromDir returns configuration paths for a specific directory
func ConfigPathsFromDir(configDir string) ConfigPaths {
	return ConfigPaths{Main: filepath.Join(configDir, "presaled.toml")}
}

// GetConfigPath returns the path to the main configuration file
func (c *Config) GetConfigPath() string {
	return c.configPath
}
