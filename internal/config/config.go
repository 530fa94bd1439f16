package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fuomag9/kabomba-status/internal/logger"
)

// Config holds application configuration
type Config struct {
	Port            int             `yaml:"port"`
	Database        DatabaseConfig  `yaml:"database"`
	JWTSecret       string          `yaml:"jwt_secret"`
	Environment     string          `yaml:"environment"`
	CORSOrigins     []string        `yaml:"cors_origins"`
	AllowPrivateIPs bool            `yaml:"allow_private_ips"`
	Log             LogConfig       `yaml:"log"`
	Checker         CheckerConfig   `yaml:"checker"`
	Live            LiveConfig      `yaml:"live"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type           string `yaml:"type"` // postgres
	DSN            string `yaml:"dsn"`
	MaxOpenConns   int    `yaml:"max_open_conns"`
	MaxIdleConns   int    `yaml:"max_idle_conns"`
	MigrationsPath string `yaml:"migrations_path"`
}

// LogConfig controls the process logger
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// CheckerConfig tunes the service health-check scheduler
type CheckerConfig struct {
	MinInterval      time.Duration `yaml:"min_interval"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	DefaultTimeout   time.Duration `yaml:"default_timeout"`
	SettingsCacheTTL time.Duration `yaml:"settings_cache_ttl"`
}

// LiveConfig configures the live broadcast transports
type LiveConfig struct {
	KeepAlive time.Duration `yaml:"keepalive"`
}

// RateLimitConfig configures the API rate limiter
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"rps"`
	Burst             int     `yaml:"burst"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		Port:        8080,
		Environment: "production",
		Database: DatabaseConfig{
			Type:           "postgres",
			MaxOpenConns:   25,
			MaxIdleConns:   5,
			MigrationsPath: "./migrations",
		},
		Log: LogConfig{Level: "info"},
		Checker: CheckerConfig{
			MinInterval:      10 * time.Second,
			RetryDelay:       time.Second,
			DefaultTimeout:   30 * time.Second,
			SettingsCacheTTL: 5 * time.Second,
		},
		Live:      LiveConfig{KeepAlive: 30 * time.Second},
		RateLimit: RateLimitConfig{RequestsPerSecond: 20, Burst: 40},
	}
}

// Load loads configuration from an optional YAML file (CONFIG_FILE) and
// environment variables. Environment variables take precedence.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if cfg.JWTSecret == "" {
		if cfg.Environment == "production" {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in production")
		}
		logger.Log().Warn("JWT_SECRET not set, generating a random secret for development")
		cfg.JWTSecret = generateRandomSecret()
	}

	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = loadCORSOrigins()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnvInt("PORT", cfg.Port)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.AllowPrivateIPs = getEnvBool("ALLOW_PRIVATE_IPS", cfg.AllowPrivateIPs)

	cfg.Database.Type = getEnv("DATABASE_TYPE", cfg.Database.Type)
	cfg.Database.DSN = getEnv("DATABASE_DSN", cfg.Database.DSN)
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = buildPostgresDSN()
	}
	cfg.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.MigrationsPath = getEnv("MIGRATIONS_PATH", cfg.Database.MigrationsPath)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)

	cfg.Checker.MinInterval = getEnvDuration("CHECK_MIN_INTERVAL", cfg.Checker.MinInterval)
	cfg.Checker.RetryDelay = getEnvDuration("CHECK_RETRY_DELAY", cfg.Checker.RetryDelay)
	cfg.Checker.DefaultTimeout = getEnvDuration("CHECK_DEFAULT_TIMEOUT", cfg.Checker.DefaultTimeout)
	cfg.Checker.SettingsCacheTTL = getEnvDuration("SETTINGS_CACHE_TTL", cfg.Checker.SettingsCacheTTL)

	cfg.Live.KeepAlive = getEnvDuration("SSE_KEEPALIVE", cfg.Live.KeepAlive)

	cfg.RateLimit.RequestsPerSecond = getEnvFloat("API_RATE_LIMIT", cfg.RateLimit.RequestsPerSecond)
	cfg.RateLimit.Burst = getEnvInt("API_RATE_BURST", cfg.RateLimit.Burst)

	if appURL := getAppURL(); appURL != "" {
		cfg.CORSOrigins = []string{appURL}
	}
}

func buildPostgresDSN() string {
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "status")
	password := getEnv("POSTGRES_PASSWORD", "secret")
	dbName := getEnv("POSTGRES_DB", "status")
	sslMode := getEnv("POSTGRES_SSLMODE", "disable")

	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(user, password),
		Host:   fmt.Sprintf("%s:%s", host, port),
		Path:   dbName,
	}

	query := u.Query()
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()

	return u.String()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}

		insecureSecrets := []string{
			"change-this-secret-in-production",
			"change-me-in-production",
			"secret",
			"password",
			"changeme",
		}
		for _, insecure := range insecureSecrets {
			if c.JWTSecret == insecure {
				return fmt.Errorf("JWT_SECRET is set to an insecure default value")
			}
		}
	}

	if c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	if c.Checker.MinInterval <= 0 {
		return fmt.Errorf("CHECK_MIN_INTERVAL must be positive")
	}
	if c.Checker.RetryDelay < 0 {
		return fmt.Errorf("CHECK_RETRY_DELAY must not be negative")
	}
	if c.Checker.DefaultTimeout <= 0 {
		return fmt.Errorf("CHECK_DEFAULT_TIMEOUT must be positive")
	}

	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("at least one CORS origin must be configured")
	}

	return nil
}

func loadCORSOrigins() []string {
	logger.Log().Warn("APP_URL not set, using default localhost origins")
	return []string{"http://localhost:3000", "http://localhost:8080"}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("15s") or plain seconds ("15").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func generateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		panic(fmt.Sprintf("failed to generate random secret: %v", err))
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

func getAppURL() string {
	return strings.TrimRight(os.Getenv("APP_URL"), "/")
}
