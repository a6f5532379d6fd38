package config

import (
	"fmt"
	"strings"

	"github.com/LeJamon/goPresale/internal/lock"
)

// MetricsConfig represents the [metrics] section
// Prometheus metrics are served on the RPC listener under Path
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Path    string `toml:"path" mapstructure:"path"`
}

// Validate performs validation on the metrics configuration
func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	if !strings.HasPrefix(m.Path, "/") {
		return fmt.Errorf("metrics path must start with /, got %q", m.Path)
	}
	return nil
}

// validateLock checks the [lock] section
func validateLock(l *lock.Config) error {
	switch l.Backend {
	case lock.BackendLocal, "":
		return nil
	case lock.BackendRedis:
		if !isValidAddressPort(l.RedisAddr) {
			return fmt.Errorf("invalid redis_addr format: %s (expected format: host:port)", l.RedisAddr)
		}
		if l.TTL < 0 || l.Retry < 0 {
			return fmt.Errorf("lock ttl and retry must be non-negative")
		}
		return nil
	default:
		return fmt.Errorf("unknown lock backend: %s (valid options: local, redis)", l.Backend)
	}
}

// isValidAddressPort validates an address:port string
func isValidAddressPort(addr string) bool {
	if addr == "" {
		return false
	}

	// last colon, in case of IPv6
	lastColon := strings.LastIndex(addr, ":")
	if lastColon <= 0 {
		return false
	}

	portStr := addr[lastColon+1:]
	if portStr == "" {
		return false
	}
	for _, r := range portStr {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
