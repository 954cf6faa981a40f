package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	MongoURI     string
	DatabaseName string
	RedisURL     string // optional; empty disables cross-instance session locks

	MetricsPort string

	// Content generation collaborator
	ContentServiceURL     string
	ContentRatePerSecond  float64
	ContentCacheTTL       time.Duration
	ContentRequestTimeout time.Duration

	// Pedagogy tuning file (YAML); empty uses built-in defaults
	TuningPath string

	// Filter-risk decay job
	DecayJobEnabled bool
	DecayJobHourUTC int
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		MongoURI:     getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DatabaseName: getEnv("MONGODB_DATABASE", "linguaflow"),
		RedisURL:     getEnv("REDIS_URL", ""),

		MetricsPort: getEnv("METRICS_PORT", "9091"),

		ContentServiceURL:     getEnv("CONTENT_SERVICE_URL", ""),
		ContentRatePerSecond:  getFloatEnv("CONTENT_RATE_PER_SECOND", 2.0),
		ContentCacheTTL:       getDurationEnv("CONTENT_CACHE_TTL", 10*time.Minute),
		ContentRequestTimeout: getDurationEnv("CONTENT_REQUEST_TIMEOUT", 15*time.Second),

		TuningPath: getEnv("PEDAGOGY_TUNING_PATH", ""),

		DecayJobEnabled: getBoolEnv("DECAY_JOB_ENABLED", true),
		DecayJobHourUTC: getIntEnv("DECAY_JOB_HOUR_UTC", 4),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
