package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from multiple sources in priority order:
// 1. Default values
// 2. Configuration file (presaled.toml)
// 3. Environment variables (PRESALED_ prefix)
func LoadConfig(paths ConfigPaths) (*Config, error) {
	v := viper.New()

	// 1. Set defaults first
	setDefaults(v)

	// 2. Load main configuration file
	if err := loadMainConfig(v, paths.Main); err != nil {
		return nil, fmt.Errorf("failed to load main config: %w", err)
	}

	// 3. Set up environment variable support
	v.SetEnvPrefix("PRESALED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Driver defaults depend on the driver, which the file or env may set
	ApplyDriverDefaults(v, v.Get("database.driver"))

	// 4. Unmarshal main config into struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.configPath = paths.Main

	// 5. Validate the complete configuration
	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// loadMainConfig loads the main configuration file
func loadMainConfig(v *viper.Viper, configPath string) error {
	if configPath == "" {
		return fmt.Errorf("config path cannot be empty")
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	return nil
}

// LoadConfigFromDir loads presaled.toml from a directory
func LoadConfigFromDir(configDir string) (*Config, error) {
	return LoadConfig(ConfigPathsFromDir(configDir))
}

// LoadDefaultConfig loads configuration from default locations
func LoadDefaultConfig() (*Config, error) {
	return LoadConfig(DefaultConfigPaths())
}

// ReloadConfig reloads configuration from the same paths
func ReloadConfig(existingConfig *Config) (*Config, error) {
	return LoadConfig(ConfigPaths{Main: existingConfig.GetConfigPath()})
}

// SaveExampleConfig saves an example configuration file
func SaveExampleConfig(configPath string) error {
	v := viper.New()
	for key, value := range generateExampleConfig() {
		v.Set(key, value)
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write example config: %w", err)
	}

	return nil
}

// generateExampleConfig generates example configuration values
func generateExampleConfig() map[string]interface{} {
	return map[string]interface{}{
		"server.bind":                "127.0.0.1",
		"server.port":                5005,
		"server.admin":               []string{"127.0.0.1", "::1"},
		"server.requests_per_second": 20,
		"server.burst":               40,

		"grpc.enabled": true,
		"grpc.bind":    "127.0.0.1",
		"grpc.port":    50051,

		"database.driver": "sqlite",
		"database.path":   "/var/lib/presaled/presale.db",

		"eligibility.backend": "pebble",
		"eligibility.path":    "/var/lib/presaled/kyc",

		"authority":               "0x00000000000000000000000000000000000000a1",
		"sale.token":              "0x00000000000000000000000000000000000000e7",
		"sale.referral_bonus_bps": 500,

		"assets": []map[string]interface{}{
			{"symbol": "ETH", "kind": "native", "decimals": 18},
			{"symbol": "USDT", "kind": "stable", "decimals": 6, "address": "0xdAC17F958D2ee523a2206206994597C13D831ec7"},
		},

		"oracle.default": "static:3000",
		"oracle.max_age": "1h",

		"rate_limit.min_time_between_tx": "30s",
		"rate_limit.max_tx_per_period":   10,
		"rate_limit.period":              "24h",
		"rate_limit.max_daily_spend_usd": "500",

		"lock.backend": "local",

		"log.level":  "info",
		"log.format": "console",
		"log.file":   "/var/log/presaled/presaled.log",

		"metrics.enabled": true,
		"metrics.path":    "/metrics",
	}
}
