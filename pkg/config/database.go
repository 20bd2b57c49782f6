// pkg/config/database.go
package config

import (
	"fmt"
	"time"
)

// Supported database/sql driver names
const (
	DriverPgx    = "pgx"      // github.com/jackc/pgx/v4/stdlib
	DriverPq     = "postgres" // github.com/lib/pq
	DriverSQLite = "sqlite"   // modernc.org/sqlite
)

// DatabaseConfig holds connection parameters for the target store
type DatabaseConfig struct {
	Driver string

	// PostgreSQL
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// SQLite
	Path string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Statement timeout
	StatementTimeout time.Duration
}

// LoadDatabaseConfig loads database configuration from environment variables
func LoadDatabaseConfig() (*DatabaseConfig, error) {
	cfg := &DatabaseConfig{
		Driver: getEnv("DB_DRIVER", DriverPgx),

		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvAsInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "user"),
		Password: getEnv("DB_PASSWORD", "password"),
		Database: getEnv("DB_NAME", "country_db"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),

		Path: getEnv("DB_PATH", "countries.db"),

		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 5),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime:  time.Duration(getEnvAsInt("DB_CONN_MAX_LIFETIME_SECONDS", 1800)) * time.Second,
		StatementTimeout: time.Duration(getEnvAsInt("DB_STATEMENT_TIMEOUT_SECONDS", 60)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the driver name and the parameters that driver needs
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case DriverPgx, DriverPq:
		if c.Host == "" || c.Database == "" {
			return fmt.Errorf("DB_HOST and DB_NAME are required for driver %q", c.Driver)
		}
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("invalid DB_PORT %d", c.Port)
		}
	case DriverSQLite:
		if c.Path == "" {
			return fmt.Errorf("DB_PATH is required for driver %q", c.Driver)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (expected %s, %s or %s)",
			c.Driver, DriverPgx, DriverPq, DriverSQLite)
	}
	return nil
}

// IsPostgres reports whether the configured driver talks to PostgreSQL
func (c *DatabaseConfig) IsPostgres() bool {
	return c.Driver == DriverPgx || c.Driver == DriverPq
}

// ConnectionString returns the DSN for the configured driver
func (c *DatabaseConfig) ConnectionString() string {
	if c.Driver == DriverSQLite {
		return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", c.Path)
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}

// Redacted returns the DSN with the password masked, for logging
func (c *DatabaseConfig) Redacted() string {
	if c.Driver == DriverSQLite {
		return c.ConnectionString()
	}
	masked := *c
	masked.Password = "****"
	return masked.ConnectionString()
}
