package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, 7*24*time.Hour, cfg.InvitationTTL)
	assert.Equal(t, 5, cfg.Database.ConnectRetries)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("STORE", "memory")
	t.Setenv("INVITATION_TTL", "48h")
	t.Setenv("DB_CONNECT_RETRIES", "9")
	t.Setenv("API_PORT", "9000")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 48*time.Hour, cfg.InvitationTTL)
	assert.Equal(t, 9, cfg.Database.ConnectRetries)
	assert.Equal(t, 9000, cfg.APIPort)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadOverlaysConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
store: memory
jwt_secret: ` + testSecret + `
invitation_ttl: 72h
api_port: 7070
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("JWT_SECRET", "")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, testSecret, cfg.JWTSecret)
	assert.Equal(t, 72*time.Hour, cfg.InvitationTTL)
	assert.Equal(t, 7070, cfg.APIPort)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "keys absent from the file keep their env value")
}

func TestLoadRejectsBadConfigFile(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.ErrorContains(t, err, "reading config file")

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_port: [not a number"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	_, err = Load()
	assert.ErrorContains(t, err, "parsing config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := LoadWithDefaults()
		cfg.JWTSecret = testSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET is required"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "at least 32 characters"},
		{"unknown store", func(c *Config) { c.Store = "redis" }, "unknown STORE"},
		{"postgres without dsn", func(c *Config) { c.Database.DSN = "" }, "DATABASE_URL is required"},
		{"memory without dsn", func(c *Config) { c.Store = StoreMemory; c.Database.DSN = "" }, ""},
		{"zero ttl", func(c *Config) { c.InvitationTTL = 0 }, "INVITATION_TTL"},
		{"bad port", func(c *Config) { c.APIPort = 70000 }, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
