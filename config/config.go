// Package config provides configuration for the batch agent driver.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the driver configuration.
type Config struct {
	// Run service connection
	ServiceURL    string
	ServiceAPIKey string
	AgentID       string

	// Persistence
	DatabaseURL string
	OutputDir   string

	// Turn policy
	MaxWallClock time.Duration
	MaxRetries   int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	PollInterval time.Duration
	SettleDelay  time.Duration
}

// Load loads configuration from the environment. A local .env file is applied
// first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceURL:    getEnv("RUN_SERVICE_URL", "http://localhost:8080"),
		ServiceAPIKey: getEnv("RUN_SERVICE_API_KEY", ""),
		AgentID:       getEnv("AGENT_ID", ""),
		DatabaseURL:   getEnv("DATABASE_URL", "file:agentbatch.db?cache=shared&mode=rwc"),
		OutputDir:     getEnv("OUTPUT_DIR", "./test_data"),
		MaxWallClock:  time.Duration(getEnvInt("MAX_WALL_CLOCK_MS", 300000)) * time.Millisecond,
		MaxRetries:    getEnvInt("MAX_RETRIES", 10),
		BaseBackoff:   time.Duration(getEnvInt("BASE_BACKOFF_MS", 1000)) * time.Millisecond,
		MaxBackoff:    time.Duration(getEnvInt("MAX_BACKOFF_MS", 32000)) * time.Millisecond,
		PollInterval:  time.Duration(getEnvInt("POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		SettleDelay:   time.Duration(getEnvInt("SETTLE_DELAY_MS", 2000)) * time.Millisecond,
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
