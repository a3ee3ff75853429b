package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Application settings
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Analytics AnalyticsConfig
	Session   SessionConfig
}

// Server settings
type ServerConfig struct {
	Port           string
	RequestTimeout time.Duration
	AllowOrigins   []string
}

// GA4 Measurement Protocol settings
type AnalyticsConfig struct {
	MeasurementID      string
	APISecret          string
	Endpoint           string
	Debug              bool
	RequestTimeout     time.Duration
	QueueSize          int
	BatchSize          int
	FlushInterval      time.Duration
	RateLimitPerSecond int
	ReadyPollInterval  time.Duration
	ReadyMaxAttempts   int
}

type SessionConfig struct {
	Backend      string
	RedisURL     string
	TTL          time.Duration
	CookieName   string
	CookieSecure bool
}

// Logging settings
type LoggingConfig struct {
	Level string
}

const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", "30s"),
			AllowOrigins:   getListEnv("CORS_ALLOW_ORIGINS"),
		},
		Analytics: AnalyticsConfig{
			MeasurementID:      getEnv("GA_MEASUREMENT_ID", ""),
			APISecret:          getEnv("GA_API_SECRET", ""),
			Endpoint:           getEnv("GA_ENDPOINT", "https://www.google-analytics.com"),
			Debug:              getBoolEnv("GA_DEBUG", false),
			RequestTimeout:     getDurationEnv("GA_REQUEST_TIMEOUT", "10s"),
			QueueSize:          getIntEnv("GA_QUEUE_SIZE", 1000),
			BatchSize:          getIntEnv("GA_BATCH_SIZE", 25),
			FlushInterval:      getDurationEnv("GA_FLUSH_INTERVAL", "1s"),
			RateLimitPerSecond: getIntEnv("GA_RATE_LIMIT_PER_SECOND", 50),
			ReadyPollInterval:  getDurationEnv("GA_READY_POLL_INTERVAL", "200ms"),
			ReadyMaxAttempts:   getIntEnv("GA_READY_MAX_ATTEMPTS", 100),
		},
		Session: SessionConfig{
			Backend:      getEnv("SESSION_BACKEND", SessionBackendMemory),
			RedisURL:     getEnv("REDIS_URL", "localhost:6379"),
			TTL:          getDurationEnv("SESSION_TTL", "30m"),
			CookieName:   getEnv("SESSION_COOKIE_NAME", "utm_session"),
			CookieSecure: getBoolEnv("SESSION_COOKIE_SECURE", false),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.Session.Backend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return fmt.Errorf("invalid SESSION_BACKEND %q: want %q or %q", c.Session.Backend, SessionBackendMemory, SessionBackendRedis)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	// GA4 rejects requests with more than 25 events
	if c.Analytics.BatchSize < 1 || c.Analytics.BatchSize > 25 {
		return fmt.Errorf("GA_BATCH_SIZE must be between 1 and 25, got %d", c.Analytics.BatchSize)
	}
	if c.Analytics.QueueSize < 1 {
		return fmt.Errorf("GA_QUEUE_SIZE must be positive, got %d", c.Analytics.QueueSize)
	}
	if c.Analytics.ReadyPollInterval <= 0 || c.Analytics.ReadyMaxAttempts < 1 {
		return fmt.Errorf("GA_READY_POLL_INTERVAL and GA_READY_MAX_ATTEMPTS must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

// comma separated, blanks dropped
func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
