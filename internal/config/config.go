// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port string

	// DBPath is the SQLite file backing the activity log.
	DBPath string

	// ActivityRetention is how long activity entries are kept before the
	// sweeper deletes them.
	ActivityRetention time.Duration

	// RetentionSweepInterval is how often expired entries are purged.
	RetentionSweepInterval time.Duration

	// HistoryLimit is the number of activity entries replayed to a
	// joining client.
	HistoryLimit int

	// TypingTTL is how long a typing mark survives without a refresh
	// before the server clears it on the client's behalf.
	TypingTTL time.Duration

	// TypingSweepInterval is how often stale typing marks are evicted.
	TypingSweepInterval time.Duration

	// RecorderQueueSize bounds the async activity writer queue.
	RecorderQueueSize int

	LogJSON bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		DBPath:                 getEnv("DB_PATH", "./data/codehuddle.db"),
		ActivityRetention:      getEnvDuration("ACTIVITY_RETENTION", 24*time.Hour),
		RetentionSweepInterval: getEnvDuration("RETENTION_SWEEP_INTERVAL", time.Hour),
		HistoryLimit:           getEnvInt("HISTORY_LIMIT", 50),
		TypingTTL:              getEnvDuration("TYPING_TTL", 5*time.Second),
		TypingSweepInterval:    getEnvDuration("TYPING_SWEEP_INTERVAL", 2*time.Second),
		RecorderQueueSize:      getEnvInt("RECORDER_QUEUE_SIZE", 1024),
		LogJSON:                getEnvBool("LOG_JSON", false),
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
	if c.ActivityRetention <= 0 {
		return fmt.Errorf("ACTIVITY_RETENTION must be > 0")
	}
	if c.RetentionSweepInterval <= 0 {
		return fmt.Errorf("RETENTION_SWEEP_INTERVAL must be > 0")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be > 0")
	}
	if c.TypingTTL <= 0 {
		return fmt.Errorf("TYPING_TTL must be > 0")
	}
	if c.TypingSweepInterval <= 0 {
		return fmt.Errorf("TYPING_SWEEP_INTERVAL must be > 0")
	}
	if c.RecorderQueueSize <= 0 {
		return fmt.Errorf("RECORDER_QUEUE_SIZE must be > 0")
	}
	return nil
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
