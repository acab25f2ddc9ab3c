// Package config provides environment-based configuration for the organization API.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all configuration for the organization API.
type Config struct {
	// Store selects the storage backend: postgres or memory.
	Store string `yaml:"store"`

	Database DatabaseConfig `yaml:"database"`

	// Authentication
	JWTSecret string        `yaml:"jwt_secret"`
	JWTExpiry time.Duration `yaml:"jwt_expiry"`
	JWTIssuer string        `yaml:"jwt_issuer"`

	// Server configuration
	APIHost string `yaml:"api_host"`
	APIPort int    `yaml:"api_port"`

	// RequestTimeout bounds a single API request.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// InvitationTTL is how long a new invitation stays acceptable.
	InvitationTTL time.Duration `yaml:"invitation_ttl"`

	Log LogConfig `yaml:"log"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	DSN            string `yaml:"dsn"`
	MaxOpenConns   int    `yaml:"max_open_conns"`
	MaxIdleConns   int    `yaml:"max_idle_conns"`
	ConnectRetries int    `yaml:"connect_retries"`
	AutoMigrate    bool   `yaml:"auto_migrate"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from environment variables, overlays the YAML
// file named by CONFIG_FILE when set, and validates the result.
func Load() (*Config, error) {
	cfg := LoadWithDefaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with defaults for development.
// It does not validate required fields, useful for testing.
func LoadWithDefaults() *Config {
	return &Config{
		Store: getEnv("STORE", StorePostgres),
		Database: DatabaseConfig{
			DSN:            getEnv("DATABASE_URL", "postgres://localhost:5432/expense_orgs?sslmode=disable"),
			MaxOpenConns:   getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnectRetries: getIntEnv("DB_CONNECT_RETRIES", 5),
			AutoMigrate:    getBoolEnv("DB_AUTO_MIGRATE", true),
		},
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTExpiry:       getDurationEnv("JWT_EXPIRY", 24*time.Hour),
		JWTIssuer:       getEnv("JWT_ISSUER", ""),
		APIHost:         getEnv("API_HOST", "0.0.0.0"),
		APIPort:         getIntEnv("API_PORT", 8080),
		RequestTimeout:  getDurationEnv("REQUEST_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		InvitationTTL:   getDurationEnv("INVITATION_TTL", 7*24*time.Hour),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// overlayFile decodes the YAML file at path over the current values. Keys
// missing from the file keep their environment or default value.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	switch c.Store {
	case StorePostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE %q (want %s or %s)", c.Store, StorePostgres, StoreMemory)
	}
	if c.InvitationTTL <= 0 {
		return fmt.Errorf("INVITATION_TTL must be positive")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT %d out of range", c.APIPort)
	}
	return nil
}

// Addr returns the listen address of the API server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
