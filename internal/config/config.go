package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabasePath     string
	Port             int
	LogLevel         string
	DevMode          bool
	WebhookURL       string // optional notification webhook
	PollIntervalSecs int    // engine poll interval
	CanaryWindowMins int    // rollout monitoring window at 10% traffic
	RampWindowMins   int    // rollout monitoring window at 50% traffic
	BackupBucket     string // optional S3 bucket for database backups
	BackupPrefix     string
	AWSRegion        string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnvAsInt("PORT", 8010),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		DatabasePath:     getEnv("DATABASE_PATH", "./data/optimizer.db"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		WebhookURL:       getEnv("NOTIFY_WEBHOOK_URL", ""),
		PollIntervalSecs: getEnvAsInt("ENGINE_POLL_INTERVAL_SECS", 60),
		CanaryWindowMins: getEnvAsInt("ROLLOUT_CANARY_WINDOW_MINS", 60),
		RampWindowMins:   getEnvAsInt("ROLLOUT_RAMP_WINDOW_MINS", 120),
		BackupBucket:     getEnv("BACKUP_S3_BUCKET", ""),
		BackupPrefix:     getEnv("BACKUP_S3_PREFIX", "optimizer-backups"),
		AWSRegion:        getEnv("AWS_REGION", "eu-central-1"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.PollIntervalSecs < 1 {
		return fmt.Errorf("ENGINE_POLL_INTERVAL_SECS must be positive")
	}
	if c.CanaryWindowMins < 1 || c.RampWindowMins < 1 {
		return fmt.Errorf("rollout monitoring windows must be positive")
	}
	return nil
}

// BackupEnabled reports whether S3 database backups are configured
func (c *Config) BackupEnabled() bool {
	return c.BackupBucket != ""
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
