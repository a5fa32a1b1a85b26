package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"SCHEDULER_HTTP_PORT",
	"SCHEDULER_SQLITE_DSN",
	"SCHEDULER_TIMEZONE",
	"SCHEDULER_BUFFER_MINUTES",
	"SCHEDULER_SUGGEST_OTHER_TRAINERS",
	"SCHEDULER_CACHE_TTL",
	"SCHEDULER_LOG_LEVEL",
	"SCHEDULER_CORS_ORIGINS",
	"SCHEDULER_RATE_LIMIT",
	"SCHEDULER_GESTURE_IDLE_TIMEOUT",
	"SCHEDULER_MAX_GESTURES",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scheduler.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoader_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Scheduling.BufferMinutes != 15 || cfg.Scheduling.SlotMinutes != 30 {
		t.Fatalf("unexpected scheduling defaults: %+v", cfg.Scheduling)
	}
	if cfg.Scheduling.AlternativeLimit != 5 || cfg.Scheduling.AlternativeHorizonDays != 7 {
		t.Fatalf("unexpected alternative defaults: %+v", cfg.Scheduling)
	}
}

func TestLoader_FileThenEnvironment(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
http:
  port: 9000
database:
  dsn: /var/lib/studio/scheduler.db
scheduling:
  timezone: Europe/Berlin
  buffer_minutes: 10
cache:
  ttl: 45s
  max_gestures: 64
logging:
  format: json
`)
	t.Setenv("SCHEDULER_BUFFER_MINUTES", "20")
	t.Setenv("SCHEDULER_SUGGEST_OTHER_TRAINERS", "true")
	t.Setenv("SCHEDULER_CORS_ORIGINS", "https://studio.example.com, https://admin.example.com")
	t.Setenv("SCHEDULER_RATE_LIMIT", "12.5")
	t.Setenv("SCHEDULER_GESTURE_IDLE_TIMEOUT", "90s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTP.Port != 9000 || cfg.Database.DSN != "/var/lib/studio/scheduler.db" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Scheduling.BufferMinutes != 20 {
		t.Fatalf("expected environment to win, got %d", cfg.Scheduling.BufferMinutes)
	}
	if cfg.Cache.TTL != 45*time.Second {
		t.Fatalf("expected 45s cache ttl, got %v", cfg.Cache.TTL)
	}
	if cfg.Cache.MaxGestures != 64 || cfg.Cache.GestureIdleTimeout != 90*time.Second {
		t.Fatalf("unexpected gesture limits: %d/%v", cfg.Cache.MaxGestures, cfg.Cache.GestureIdleTimeout)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 || cfg.HTTP.CORSOrigins[1] != "https://admin.example.com" {
		t.Fatalf("unexpected cors origins: %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.HTTP.RateLimit != 12.5 || cfg.HTTP.RateBurst != 20 {
		t.Fatalf("unexpected rate limit: %v/%d", cfg.HTTP.RateLimit, cfg.HTTP.RateBurst)
	}
	if cfg.Scheduling.SlotMinutes != 30 {
		t.Fatalf("expected unset keys to keep defaults, got %d", cfg.Scheduling.SlotMinutes)
	}

	policy, err := cfg.Policy()
	if err != nil {
		t.Fatalf("Policy returned error: %v", err)
	}
	if policy.Location.String() != "Europe/Berlin" || !policy.SuggestOtherTrainers {
		t.Fatalf("unexpected policy: %+v", policy)
	}
}

func TestLoader_CollectsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCHEDULER_HTTP_PORT", "http")
	t.Setenv("SCHEDULER_TIMEZONE", "Mars/Olympus")
	t.Setenv("SCHEDULER_LOG_LEVEL", "loud")

	_, err := Load("")
	var invalid *InvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidError, got %v", err)
	}
	expected := "invalid configuration values: SCHEDULER_HTTP_PORT, scheduling.timezone, logging.level"
	if err.Error() != expected {
		t.Fatalf("unexpected error message: %q", err.Error())
	}
}

func TestLoader_RejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "scheduling:\n  buffer: 10\n")

	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
}

func TestLoader_MissingFile(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestLoader_EmptyFileKeepsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default level, got %q", cfg.Logging.Level)
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	// Registered for restoration, then removed so the file can provide it.
	if err := os.Unsetenv("SCHEDULER_LOG_LEVEL"); err != nil {
		t.Fatalf("unset: %v", err)
	}
	t.Setenv("SCHEDULER_HTTP_PORT", "9100")

	path := filepath.Join(t.TempDir(), ".env")
	body := "SCHEDULER_LOG_LEVEL=debug\nSCHEDULER_HTTP_PORT=7000\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile returned error: %v", err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected level from env file, got %q", cfg.Logging.Level)
	}
	if cfg.HTTP.Port != 9100 {
		t.Fatalf("expected existing variable to win, got %d", cfg.HTTP.Port)
	}

	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}
