package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       StorageConfig
	Processing    ProcessingConfig
	Retention     RetentionConfig
	Admin         AdminConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	BaseURL            string
	RateLimitPerSecond int
	RateLimitBurst     int
	MaxUploadBytes     int64
}

type StorageConfig struct {
	UploadPath string
	ResultPath string
}

// ProcessingConfig tunes the statement classification engine.
// The fuzzy thresholds are percentages on a 0-100 similarity scale:
// at or above AutoMatch the statement is filed as DNM without asking,
// between AskMatch and AutoMatch the operator is prompted.
type ProcessingConfig struct {
	FuzzyAutoThreshold int
	FuzzyAskThreshold  int
	SessionTTL         time.Duration
}

type RetentionConfig struct {
	MaxFileAge    time.Duration
	SweepSchedule string
}

type AdminConfig struct {
	// Token is compared in constant time; TokenHash, when set, takes
	// precedence and is verified with bcrypt.
	Token     string
	TokenHash string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 10),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 20),
			MaxUploadBytes:     int64(getEnvAsInt("SERVER_MAX_UPLOAD_MB", 50)) * 1024 * 1024,
		},
		Storage: StorageConfig{
			UploadPath: getEnv("STORAGE_UPLOAD_PATH", "./uploads"),
			ResultPath: getEnv("STORAGE_RESULT_PATH", "./results"),
		},
		Processing: ProcessingConfig{
			FuzzyAutoThreshold: getEnvAsInt("FUZZY_AUTO_THRESHOLD", 90),
			FuzzyAskThreshold:  getEnvAsInt("FUZZY_ASK_THRESHOLD", 60),
			SessionTTL:         getEnvAsDuration("SESSION_TTL", 2*time.Hour),
		},
		Retention: RetentionConfig{
			MaxFileAge:    getEnvAsDuration("RETENTION_MAX_FILE_AGE", 24*time.Hour),
			SweepSchedule: getEnv("RETENTION_SWEEP_SCHEDULE", "@hourly"),
		},
		Admin: AdminConfig{
			Token:     getEnv("ADMIN_TOKEN", ""),
			TokenHash: getEnv("ADMIN_TOKEN_HASH", ""),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	if cfg.Processing.FuzzyAskThreshold >= cfg.Processing.FuzzyAutoThreshold {
		return nil, fmt.Errorf(
			"FUZZY_ASK_THRESHOLD (%d) must be below FUZZY_AUTO_THRESHOLD (%d)",
			cfg.Processing.FuzzyAskThreshold, cfg.Processing.FuzzyAutoThreshold,
		)
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
