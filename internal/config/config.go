// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Catalog drivers.
const (
	CatalogSQLite = "sqlite"
	CatalogMemory = "memory"
)

// Config holds all application configuration.
type Config struct {
	Port          string
	FrontendURL   string
	DBPath        string
	CatalogDriver string // "sqlite" or "memory"
	LogLevel      slog.Level
	Session       SessionConfig
	Run           RunConfig
	Demo          DemoConfig
	Upload        UploadConfig
}

// SessionConfig controls page-view session lifetime.
type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	// OpenLimit caps how many sessions one browser may open per OpenWindow.
	OpenLimit  int
	OpenWindow time.Duration
}

// RunConfig bounds the source text a run session accepts.
type RunConfig struct {
	MaxInputBytes int64
}

// DemoConfig holds the simulated job timings.
type DemoConfig struct {
	RunDelay         time.Duration
	UploadDelay      time.Duration
	UploadResetDelay time.Duration
}

// UploadConfig controls local validation of dropped or selected files.
type UploadConfig struct {
	MaxBytes          int64
	AllowedExtensions []string
	EnforcePolicy     bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		FrontendURL:   getEnv("FRONTEND_URL", ""),
		DBPath:        getEnv("DB_PATH", "./data/agenti.db"),
		CatalogDriver: strings.ToLower(getEnv("CATALOG_DRIVER", CatalogSQLite)),
		LogLevel:      getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		Session: SessionConfig{
			TTL:           getEnvDuration("SESSION_TTL", 30*time.Minute),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
			OpenLimit:     int(getEnvInt64("SESSION_OPEN_LIMIT", 60)),
			OpenWindow:    getEnvDuration("SESSION_OPEN_WINDOW", time.Minute),
		},
		Run: RunConfig{
			MaxInputBytes: getEnvInt64("RUN_MAX_INPUT_BYTES", 1<<20),
		},
		Demo: DemoConfig{
			RunDelay:         getEnvDuration("RUN_DELAY", 2800*time.Millisecond),
			UploadDelay:      getEnvDuration("UPLOAD_DELAY", 2000*time.Millisecond),
			UploadResetDelay: getEnvDuration("UPLOAD_RESET_DELAY", 3000*time.Millisecond),
		},
		Upload: UploadConfig{
			MaxBytes:          getEnvInt64("UPLOAD_MAX_BYTES", 10<<20),
			AllowedExtensions: getEnvList("UPLOAD_ALLOWED_EXTENSIONS", []string{".py", ".js", ".ts", ".zip"}),
			EnforcePolicy:     getEnvBool("UPLOAD_ENFORCE_POLICY", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.CatalogDriver {
	case CatalogSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case CatalogMemory:
	default:
		return fmt.Errorf("CATALOG_DRIVER must be %q or %q, got %q", CatalogSQLite, CatalogMemory, c.CatalogDriver)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	if c.Session.OpenLimit <= 0 || c.Session.OpenWindow <= 0 {
		return fmt.Errorf("SESSION_OPEN_LIMIT and SESSION_OPEN_WINDOW must be > 0")
	}
	if c.Run.MaxInputBytes <= 0 {
		return fmt.Errorf("RUN_MAX_INPUT_BYTES must be > 0")
	}
	if c.Demo.RunDelay < 0 || c.Demo.UploadDelay < 0 || c.Demo.UploadResetDelay < 0 {
		return fmt.Errorf("demo delays cannot be negative")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be > 0")
	}
	if c.Upload.EnforcePolicy && len(c.Upload.AllowedExtensions) == 0 {
		return fmt.Errorf("UPLOAD_ALLOWED_EXTENSIONS cannot be empty when the upload policy is enforced")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt64(key string, fallback int64) int64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go duration strings ("2.8s") or plain milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// getEnvList parses a comma-separated list, normalizing extensions to ".ext".
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		out = append(out, part)
	}
	return out
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
