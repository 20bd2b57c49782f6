// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAPIURL restricts the REST Countries response to the fields the ETL consumes
const DefaultAPIURL = "https://restcountries.com/v3.1/all?fields=cca2,name,capital,region,subregion,population,area,currencies,languages"

// ErrMissingAPIURL is returned when the fetch URL resolves to an empty value
var ErrMissingAPIURL = errors.New("API_URL must not be empty")

// Config represents the application configuration
type Config struct {
	// Source endpoint
	APIURL      string
	HTTPTimeout time.Duration

	// Target database
	Database *DatabaseConfig

	// Run settings
	VerifyAfterLoad bool

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from the environment, reading a .env file first when one exists
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only
func FromEnv() (*Config, error) {
	cfg := &Config{
		APIURL:          getEnv("API_URL", DefaultAPIURL),
		HTTPTimeout:     time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		VerifyAfterLoad: getEnvAsBool("VERIFY_AFTER_LOAD", true),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
	}

	dbConfig, err := LoadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database configuration: %w", err)
	}
	cfg.Database = dbConfig

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return ErrMissingAPIURL
	}

	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid API_URL %q: %w", c.APIURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid API_URL %q: scheme must be http or https", c.APIURL)
	}

	if c.HTTPTimeout <= 0 {
		return errors.New("HTTP timeout must be positive")
	}

	if c.Database == nil {
		return errors.New("database configuration is required")
	}

	return c.Database.Validate()
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
