package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DevelopmentDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_DSN", "postgres://u:p@db:5432/status")
	t.Setenv("APP_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Equal(t, "postgres://u:p@db:5432/status", cfg.Database.DSN)
	assert.Equal(t, 10*time.Second, cfg.Checker.MinInterval)
	assert.Equal(t, time.Second, cfg.Checker.RetryDelay)
	assert.Equal(t, 5*time.Second, cfg.Checker.SettingsCacheTTL)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:8080"}, cfg.CORSOrigins)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := []byte(`
port: 9000
environment: development
checker:
  retry_delay: 3s
  min_interval: 20s
log:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, doc, 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PORT", "9100")
	t.Setenv("CHECK_MIN_INTERVAL", "15")
	t.Setenv("APP_URL", "https://status.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 3*time.Second, cfg.Checker.RetryDelay)
	assert.Equal(t, 15*time.Second, cfg.Checker.MinInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"https://status.example.com"}, cfg.CORSOrigins)
}

func TestValidate_RejectsInsecureSecret(t *testing.T) {
	cfg := Defaults()
	cfg.JWTSecret = "changeme"
	cfg.Database.DSN = "postgres://x"
	cfg.CORSOrigins = []string{"http://localhost"}

	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, cfg.Validate())
}

func TestBuildPostgresDSN(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("POSTGRES_USER", "app")
	t.Setenv("POSTGRES_PASSWORD", "p@ss")
	t.Setenv("POSTGRES_DB", "statuspage")
	t.Setenv("POSTGRES_SSLMODE", "require")

	assert.Equal(t, "postgresql://app:p%40ss@db:6543/statuspage?sslmode=require", buildPostgresDSN())
}
