package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration
type Config struct {
	Port        int
	Environment string
	LogDir      string
	Database    DatabaseConfig
	CORSOrigins []string

	// Engine settings
	WorkerCapacity          int
	MinCheckIntervalSeconds int
	MaxBodySnippetBytes     int
	ResultRetentionDays     int
	AllowPrivateIPs         bool

	// Per-type default timeouts (seconds)
	DefaultHTTPTimeout int
	DefaultPingTimeout int
	DefaultPortTimeout int

	// External collaborators
	RunnerURL string
	NotifyURL string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	env := getEnv("ENVIRONMENT", "production")

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Environment: env,
		LogDir:      getEnv("LOG_DIR", "./logs"),
		Database: DatabaseConfig{
			DSN:          getEnv("DATABASE_DSN", buildPostgresDSN()),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		CORSOrigins: loadCORSOrigins(env),

		WorkerCapacity:          getEnvInt("WORKER_CAPACITY", 16),
		MinCheckIntervalSeconds: getEnvInt("MIN_CHECK_INTERVAL_SECONDS", 60),
		MaxBodySnippetBytes:     getEnvInt("MAX_BODY_SNIPPET_BYTES", 1000),
		ResultRetentionDays:     getEnvInt("RESULT_RETENTION_DAYS", 90),
		AllowPrivateIPs:         getEnvBool("ALLOW_PRIVATE_IPS", false),

		DefaultHTTPTimeout: getEnvInt("DEFAULT_HTTP_TIMEOUT_SECONDS", 30),
		DefaultPingTimeout: getEnvInt("DEFAULT_PING_TIMEOUT_SECONDS", 5),
		DefaultPortTimeout: getEnvInt("DEFAULT_PORT_TIMEOUT_SECONDS", 10),

		RunnerURL: getEnv("RUNNER_URL", ""),
		NotifyURL: getEnv("NOTIFY_URL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func buildPostgresDSN() string {
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "probewatch")
	password := getEnv("POSTGRES_PASSWORD", "secret")
	dbName := getEnv("POSTGRES_DB", "probewatch")
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
	if c.WorkerCapacity < 1 {
		return fmt.Errorf("WORKER_CAPACITY must be at least 1")
	}

	if c.MinCheckIntervalSeconds < 1 {
		return fmt.Errorf("MIN_CHECK_INTERVAL_SECONDS must be positive")
	}

	if c.MaxBodySnippetBytes < 1 {
		return fmt.Errorf("MAX_BODY_SNIPPET_BYTES must be positive")
	}

	if c.DefaultHTTPTimeout < 1 || c.DefaultPingTimeout < 1 || c.DefaultPortTimeout < 1 {
		return fmt.Errorf("default timeouts must be positive")
	}

	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("at least one CORS origin must be configured")
	}

	if c.RunnerURL != "" {
		if _, err := url.ParseRequestURI(c.RunnerURL); err != nil {
			return fmt.Errorf("RUNNER_URL is not a valid URL: %w", err)
		}
	}

	if c.NotifyURL != "" {
		if _, err := url.ParseRequestURI(c.NotifyURL); err != nil {
			return fmt.Errorf("NOTIFY_URL is not a valid URL: %w", err)
		}
	}

	return nil
}

func loadCORSOrigins(env string) []string {
	if appURL := getAppURL(); appURL != "" {
		return []string{appURL}
	}

	if env == "development" {
		return []string{"http://localhost:3000", "http://localhost:8080"}
	}

	// In production the dashboard origin should be set explicitly via APP_URL.
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

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getAppURL() string {
	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		return ""
	}
	return strings.TrimRight(appURL, "/")
}
