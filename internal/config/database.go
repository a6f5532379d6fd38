package config

import (
	"fmt"
	"time"

	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// DatabaseConfig represents the [database] section. The settlement store
// is either an embedded SQLite file or a PostgreSQL server.
type DatabaseConfig struct {
	Driver   string `toml:"driver" mapstructure:"driver"`
	Path     string `toml:"path" mapstructure:"path"` // sqlite file, or ":memory:"
	Host     string `toml:"host" mapstructure:"host"`
	Port     int    `toml:"port" mapstructure:"port"`
	Name     string `toml:"name" mapstructure:"name"`
	User     string `toml:"user" mapstructure:"user"`
	Password string `toml:"password" mapstructure:"password"`
	SSLMode  string `toml:"ssl_mode" mapstructure:"ssl_mode"`

	MaxOpenConns    int           `toml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `toml:"busy_timeout" mapstructure:"busy_timeout"`
}

// Validate performs validation on the database configuration
func (d *DatabaseConfig) Validate() error {
	switch d.Driver {
	case relationaldb.DriverSQLite, "sqlite3":
		if d.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case relationaldb.DriverPostgres, "postgresql":
		if d.Host == "" {
			return fmt.Errorf("database host is required for postgres")
		}
		if d.Port <= 0 || d.Port > 65535 {
			return fmt.Errorf("database port must be between 1 and 65535, got %d", d.Port)
		}
		if d.Name == "" {
			return fmt.Errorf("database name is required for postgres")
		}
	default:
		return fmt.Errorf("invalid database driver: %s (valid options: sqlite, postgres)", d.Driver)
	}
	if d.MaxOpenConns < 0 || d.MaxIdleConns < 0 {
		return fmt.Errorf("connection pool sizes must be non-negative")
	}
	return nil
}

// Relational converts the section into the store configuration.
func (d *DatabaseConfig) Relational() *relationaldb.Config {
	var cfg *relationaldb.Config
	switch d.Driver {
	case relationaldb.DriverSQLite, "sqlite3":
		cfg = relationaldb.SQLiteConfig(d.Path)
		if d.BusyTimeout > 0 {
			cfg.BusyTimeout = d.BusyTimeout
		}
		return cfg
	default:
		cfg = relationaldb.PostgresConfig()
	}
	cfg.Host = d.Host
	cfg.Port = d.Port
	cfg.Database = d.Name
	cfg.Username = d.User
	cfg.Password = d.Password
	if d.SSLMode != "" {
		cfg.SSLMode = d.SSLMode
	}
	if d.MaxOpenConns > 0 {
		cfg.MaxOpenConns = d.MaxOpenConns
	}
	if d.MaxIdleConns > 0 {
		cfg.MaxIdleConns = d.MaxIdleConns
	}
	if d.ConnMaxLifetime > 0 {
		cfg.ConnMaxLifetime = d.ConnMaxLifetime
	}
	return cfg
}
