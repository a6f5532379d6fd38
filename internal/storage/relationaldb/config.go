package relationaldb

import (
	"fmt"
	"net/url"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// MemoryDatabase selects a private in-memory SQLite database.
	MemoryDatabase = ":memory:"
)

// Config contains database configuration settings
type Config struct {
	// Database connection settings
	Driver           string `json:"driver" mapstructure:"driver"`
	ConnectionString string `json:"connection_string" mapstructure:"connection_string"`
	Host             string `json:"host" mapstructure:"host"`
	Port             int    `json:"port" mapstructure:"port"`
	Database         string `json:"database" mapstructure:"database"`
	Username         string `json:"username" mapstructure:"username"`
	Password         string `json:"password" mapstructure:"password"`
	SSLMode          string `json:"ssl_mode" mapstructure:"ssl_mode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`

	// Transaction settings
	DefaultTimeout time.Duration `json:"default_timeout" mapstructure:"default_timeout"`

	// SQLite settings
	BusyTimeout       time.Duration `json:"busy_timeout" mapstructure:"busy_timeout"`
	EnableWALMode     bool          `json:"enable_wal_mode" mapstructure:"enable_wal_mode"`
	EnableForeignKeys bool          `json:"enable_foreign_keys" mapstructure:"enable_foreign_keys"`
}

// NewConfig creates a new Config with sensible defaults
func NewConfig() *Config {
	return &Config{
		Driver:            DriverPostgres,
		Host:              "localhost",
		Port:              5432,
		Database:          "presale",
		Username:          "presale",
		SSLMode:           "prefer",
		MaxOpenConns:      25,
		MaxIdleConns:      5,
		ConnMaxLifetime:   time.Hour,
		ConnMaxIdleTime:   time.Minute * 15,
		DefaultTimeout:    time.Second * 30,
		BusyTimeout:       time.Second * 5,
		EnableWALMode:     true,
		EnableForeignKeys: true,
	}
}

// PostgresConfig creates a PostgreSQL-specific configuration
func PostgresConfig() *Config {
	return NewConfig()
}

// SQLiteConfig creates a SQLite-specific configuration. SQLite serializes
// writers, so the pool is pinned to a single connection.
func SQLiteConfig(dbPath string) *Config {
	config := NewConfig()
	config.Driver = DriverSQLite
	config.Database = dbPath
	config.MaxOpenConns = 1
	config.MaxIdleConns = 1
	if dbPath == MemoryDatabase {
		// the database lives and dies with its only connection
		config.ConnMaxLifetime = 0
		config.ConnMaxIdleTime = 0
		config.EnableWALMode = false
	}
	return config
}

// IsMemory reports whether the config points at an in-memory SQLite database.
func (c *Config) IsMemory() bool {
	return c.Driver == DriverSQLite && c.Database == MemoryDatabase
}

// Validate checks the configuration for common errors
func (c *Config) Validate() error {
	switch c.Driver {
	case "postgres", "postgresql":
		c.Driver = DriverPostgres
	case "sqlite3", "sqlite":
		c.Driver = DriverSQLite
	default:
		return fmt.Errorf("%w: %s", ErrInvalidDriver, c.Driver)
	}

	if c.Driver == DriverPostgres && c.ConnectionString == "" {
		if c.Host == "" {
			return ErrMissingHost
		}
		if c.Port <= 0 || c.Port > 65535 {
			return ErrInvalidPort
		}
		if c.Database == "" {
			return ErrMissingDatabase
		}
		if c.Username == "" {
			return ErrMissingUsername
		}
		switch c.SSLMode {
		case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
		default:
			return fmt.Errorf("invalid SSL mode: %s", c.SSLMode)
		}
	} else if c.Driver == DriverSQLite {
		if c.Database == "" {
			return ErrMissingDatabase
		}
		if c.BusyTimeout < 0 {
			return ErrInvalidBusyTimeout
		}
	}

	// Validate connection pool settings
	if c.MaxOpenConns < 0 {
		return ErrInvalidMaxOpenConns
	}
	if c.MaxIdleConns < 0 {
		return ErrInvalidMaxIdleConns
	}
	if c.MaxIdleConns > c.MaxOpenConns && c.MaxOpenConns > 0 {
		return ErrMaxIdleExceedsMaxOpen
	}

	// Validate timeouts
	if c.DefaultTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.ConnMaxLifetime < 0 {
		return ErrInvalidConnMaxLifetime
	}
	if c.ConnMaxIdleTime < 0 {
		return ErrInvalidConnMaxIdleTime
	}

	return nil
}

// BuildConnectionString builds a connection string from the config
func (c *Config) BuildConnectionString() (string, error) {
	if c.ConnectionString != "" {
		return c.ConnectionString, nil
	}

	switch c.Driver {
	case DriverPostgres:
		return c.buildPostgresConnectionString(), nil
	case DriverSQLite:
		return c.buildSQLiteConnectionString(), nil
	default:
		return "", fmt.Errorf("unsupported driver for connection string building: %s", c.Driver)
	}
}

func (c *Config) buildPostgresConnectionString() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	params.Set("connect_timeout", "30")
	params.Set("application_name", "presaled")

	u := url.URL{
		Scheme:   "postgres",
		Host:     c.Host,
		Path:     "/" + c.Database,
		RawQuery: params.Encode(),
	}
	if c.Port != 0 && c.Port != 5432 {
		u.Host = fmt.Sprintf("%s:%d", c.Host, c.Port)
	}
	if c.Username != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		} else {
			u.User = url.User(c.Username)
		}
	}
	return u.String()
}

// buildSQLiteConnectionString builds a modernc.org/sqlite DSN with pragmas.
func (c *Config) buildSQLiteConnectionString() string {
	dsn := "file:" + c.Database
	if c.IsMemory() {
		dsn = "file::memory:"
	}

	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	if c.EnableWALMode && !c.IsMemory() {
		params.Add("_pragma", "journal_mode(WAL)")
	}
	if c.EnableForeignKeys {
		params.Add("_pragma", "foreign_keys(1)")
	}
	params.Add("_pragma", "synchronous(NORMAL)")

	return dsn + "?" + params.Encode()
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// WithConnectionString returns a new config with the specified connection string
func (c *Config) WithConnectionString(connStr string) *Config {
	clone := c.Clone()
	clone.ConnectionString = connStr
	return clone
}

// WithCredentials returns a new config with the specified credentials
func (c *Config) WithCredentials(username, password string) *Config {
	clone := c.Clone()
	clone.Username = username
	clone.Password = password
	return clone
}

// WithPoolSettings returns a new config with the specified connection pool settings
func (c *Config) WithPoolSettings(maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) *Config {
	clone := c.Clone()
	clone.MaxOpenConns = maxOpen
	clone.MaxIdleConns = maxIdle
	clone.ConnMaxLifetime = maxLifetime
	clone.ConnMaxIdleTime = maxIdleTime
	return clone
}

// WithTimeout returns a new config with the specified default timeout
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	clone := c.Clone()
	clone.DefaultTimeout = timeout
	return clone
}

// String returns a string representation of the config (with password redacted)
func (c *Config) String() string {
	clone := c.Clone()
	if clone.Password != "" {
		clone.Password = "***"
	}

	connStr, _ := clone.BuildConnectionString()
	return fmt.Sprintf("Config{Driver: %s, Host: %s, Port: %d, Database: %s, Connection: %s}",
		clone.Driver, clone.Host, clone.Port, clone.Database, connStr)
}
