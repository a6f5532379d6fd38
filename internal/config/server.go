package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// ServerConfig represents the [server] section
type ServerConfig struct {
	Bind              string        `toml:"bind" mapstructure:"bind"`
	Port              int           `toml:"port" mapstructure:"port"`
	Admin             []string      `toml:"admin" mapstructure:"admin"` // IPs or CIDR ranges
	Timeout           time.Duration `toml:"timeout" mapstructure:"timeout"`
	RequestsPerSecond float64       `toml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `toml:"burst" mapstructure:"burst"`
	MaxBodyBytes      int64         `toml:"max_body_bytes" mapstructure:"max_body_bytes"`
	WebSocket         bool          `toml:"websocket" mapstructure:"websocket"`
}

// Address returns the host:port the server listens on
func (s *ServerConfig) Address() string {
	return net.JoinHostPort(s.Bind, strconv.Itoa(s.Port))
}

// Validate performs validation on the server configuration
func (s *ServerConfig) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.Bind != "" && net.ParseIP(s.Bind) == nil && s.Bind != "localhost" {
		return fmt.Errorf("invalid bind address: %s", s.Bind)
	}
	for _, entry := range s.Admin {
		if err := validateAdminEntry(entry); err != nil {
			return err
		}
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %s", s.Timeout)
	}
	if s.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must be non-negative, got %v", s.RequestsPerSecond)
	}
	if s.Burst < 0 {
		return fmt.Errorf("burst must be non-negative, got %d", s.Burst)
	}
	if s.MaxBodyBytes < 0 {
		return fmt.Errorf("max_body_bytes must be non-negative, got %d", s.MaxBodyBytes)
	}
	return nil
}

func validateAdminEntry(entry string) error {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		if _, _, err := net.ParseCIDR(entry); err != nil {
			return fmt.Errorf("invalid admin range %s: %w", entry, err)
		}
		return nil
	}
	if net.ParseIP(entry) == nil {
		return fmt.Errorf("invalid admin IP: %s", entry)
	}
	return nil
}
