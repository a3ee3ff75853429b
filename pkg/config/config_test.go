package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Session.Backend != SessionBackendMemory {
		t.Errorf("Session.Backend = %q, want %q", cfg.Session.Backend, SessionBackendMemory)
	}
	if cfg.Session.CookieName != "utm_session" {
		t.Errorf("Session.CookieName = %q, want utm_session", cfg.Session.CookieName)
	}
	if cfg.Analytics.ReadyPollInterval != 200*time.Millisecond {
		t.Errorf("ReadyPollInterval = %v, want 200ms", cfg.Analytics.ReadyPollInterval)
	}
	if cfg.Analytics.ReadyMaxAttempts != 100 {
		t.Errorf("ReadyMaxAttempts = %d, want 100", cfg.Analytics.ReadyMaxAttempts)
	}
	if cfg.Analytics.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25", cfg.Analytics.BatchSize)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("GA_MEASUREMENT_ID", "G-TEST")
	t.Setenv("GA_DEBUG", "true")
	t.Setenv("SESSION_BACKEND", "redis")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.test, ,https://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Analytics.MeasurementID != "G-TEST" || !cfg.Analytics.Debug {
		t.Errorf("Analytics = %+v", cfg.Analytics)
	}
	if cfg.Session.Backend != SessionBackendRedis || cfg.Session.TTL != 5*time.Minute {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if len(cfg.Server.AllowOrigins) != 2 || cfg.Server.AllowOrigins[1] != "https://b.test" {
		t.Errorf("AllowOrigins = %v", cfg.Server.AllowOrigins)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unknown backend", key: "SESSION_BACKEND", value: "memcached"},
		{name: "batch too large", key: "GA_BATCH_SIZE", value: "26"},
		{name: "zero queue", key: "GA_QUEUE_SIZE", value: "0"},
		{name: "zero attempts", key: "GA_READY_MAX_ATTEMPTS", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%s: expected error", tt.key, tt.value)
			}
		})
	}
}

func TestGetEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "soon")

	if got := getIntEnv("X_INT", 7); got != 7 {
		t.Errorf("getIntEnv = %d, want 7", got)
	}
	if got := getBoolEnv("X_BOOL", true); !got {
		t.Errorf("getBoolEnv = %v, want true", got)
	}
	if got := getDurationEnv("X_DUR", "3s"); got != 3*time.Second {
		t.Errorf("getDurationEnv = %v, want 3s", got)
	}
}
