// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultRateLimitWindow is the rate limiter window used when none is
// configured.
const DefaultRateLimitWindow = time.Minute

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	// ChatAPIURL is the base URL of the remote assistant service.
	ChatAPIURL string
	// ChatAPITimeout bounds a single backend query. Zero disables the bound
	// and restores the original no-timeout behavior.
	ChatAPITimeout time.Duration

	// HistoryLimit caps the persisted snapshot at the trailing N turns.
	HistoryLimit int
	// SnapshotTTL controls how long untouched snapshots are kept.
	SnapshotTTL time.Duration

	MaxQueryLength     int
	MaxRequestBodySize int64

	RateLimit RateLimitConfig
}

// RateLimitConfig controls per-user send throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		DBPath:             getEnv("DB_PATH", "./data/docschat.db"),
		ChatAPIURL:         getEnv("CHAT_API_URL", "http://localhost:8000"),
		ChatAPITimeout:     getEnvDuration("CHAT_API_TIMEOUT", 30*time.Second),
		HistoryLimit:       getEnvInt("HISTORY_LIMIT", 50),
		SnapshotTTL:        getEnvDuration("SNAPSHOT_TTL", 30*24*time.Hour),
		MaxQueryLength:     getEnvInt("MAX_QUERY_LENGTH", 500),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", DefaultRateLimitWindow),
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
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.ChatAPIURL == "" {
		return fmt.Errorf("CHAT_API_URL cannot be empty")
	}
	if c.ChatAPITimeout < 0 {
		return fmt.Errorf("CHAT_API_TIMEOUT cannot be negative")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be > 0")
	}
	if c.MaxQueryLength <= 0 {
		return fmt.Errorf("MAX_QUERY_LENGTH must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
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

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
