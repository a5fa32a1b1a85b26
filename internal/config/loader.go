// Package config loads scheduler settings from an optional YAML file and
// SCHEDULER_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/example/studio-scheduler/internal/scheduler"
)

// Config captures the settings of the scheduler service.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Database      DatabaseConfig      `yaml:"database"`
	Scheduling    SchedulingConfig    `yaml:"scheduling"`
	Cache         CacheConfig         `yaml:"cache"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// HTTPConfig holds the listener settings. A zero RateLimit disables request
// throttling; an empty CORSOrigins disables CORS handling.
type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	RateLimit       float64       `yaml:"rate_limit"`
	RateBurst       int           `yaml:"rate_burst"`
}

// DatabaseConfig holds the SQLite settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulingConfig holds the conflict rule constants.
type SchedulingConfig struct {
	Timezone               string `yaml:"timezone"`
	BufferMinutes          int    `yaml:"buffer_minutes"`
	SlotMinutes            int    `yaml:"slot_minutes"`
	AlternativeLimit       int    `yaml:"alternative_limit"`
	AlternativeHorizonDays int    `yaml:"alternative_horizon_days"`
	MaxSessionMinutes      int    `yaml:"max_session_minutes"`
	SuggestOtherTrainers   bool   `yaml:"suggest_other_trainers"`
}

// CacheConfig sizes the check result and availability caches and the
// table of hosted gestures.
type CacheConfig struct {
	TTL                time.Duration `yaml:"ttl"`
	MaxEntries         int           `yaml:"max_entries"`
	AvailabilityTTL    time.Duration `yaml:"availability_ttl"`
	GestureIdleTimeout time.Duration `yaml:"gesture_idle_timeout"`
	MaxGestures        int           `yaml:"max_gestures"`
}

// NotificationsConfig sizes the event dispatcher.
type NotificationsConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// LoggingConfig selects the log handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	policy := scheduler.DefaultPolicy()
	return Config{
		HTTP:     HTTPConfig{Port: 8080, ShutdownTimeout: 10 * time.Second, RateBurst: 20},
		Database: DatabaseConfig{DSN: "scheduler.db"},
		Scheduling: SchedulingConfig{
			Timezone:               "UTC",
			BufferMinutes:          policy.BufferMinutes,
			SlotMinutes:            policy.SlotMinutes,
			AlternativeLimit:       policy.AlternativeLimit,
			AlternativeHorizonDays: policy.AlternativeHorizonDays,
			MaxSessionMinutes:      policy.MaxSessionMinutes,
		},
		Cache: CacheConfig{
			TTL:                30 * time.Second,
			MaxEntries:         256,
			AvailabilityTTL:    time.Minute,
			GestureIdleTimeout: 2 * time.Minute,
			MaxGestures:        1024,
		},
		Notifications: NotificationsConfig{Workers: 2, QueueSize: 64},
		Logging:       LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path, when path is not empty, over the
// defaults, applies environment overrides and validates the result. Every
// invalid key is reported in one error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	invalid := applyEnv(&cfg)
	invalid = append(invalid, cfg.validate()...)
	if len(invalid) > 0 {
		return Config{}, &InvalidError{Keys: invalid}
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadEnvFile exports the KEY=VALUE pairs of a dotenv file into the process
// environment so Load picks them up. Variables already set are left alone.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// InvalidError lists the configuration keys with unusable values.
type InvalidError struct {
	Keys []string
}

func (e *InvalidError) Error() string {
	return "invalid configuration values: " + strings.Join(e.Keys, ", ")
}

func applyEnv(cfg *Config) []string {
	var invalid []string
	envInt("SCHEDULER_HTTP_PORT", &cfg.HTTP.Port, &invalid)
	envDuration("SCHEDULER_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout, &invalid)
	envList("SCHEDULER_CORS_ORIGINS", &cfg.HTTP.CORSOrigins)
	envFloat("SCHEDULER_RATE_LIMIT", &cfg.HTTP.RateLimit, &invalid)
	envInt("SCHEDULER_RATE_BURST", &cfg.HTTP.RateBurst, &invalid)
	envString("SCHEDULER_SQLITE_DSN", &cfg.Database.DSN)
	envString("SCHEDULER_TIMEZONE", &cfg.Scheduling.Timezone)
	envInt("SCHEDULER_BUFFER_MINUTES", &cfg.Scheduling.BufferMinutes, &invalid)
	envInt("SCHEDULER_SLOT_MINUTES", &cfg.Scheduling.SlotMinutes, &invalid)
	envInt("SCHEDULER_ALTERNATIVE_LIMIT", &cfg.Scheduling.AlternativeLimit, &invalid)
	envInt("SCHEDULER_ALTERNATIVE_HORIZON_DAYS", &cfg.Scheduling.AlternativeHorizonDays, &invalid)
	envInt("SCHEDULER_MAX_SESSION_MINUTES", &cfg.Scheduling.MaxSessionMinutes, &invalid)
	envBool("SCHEDULER_SUGGEST_OTHER_TRAINERS", &cfg.Scheduling.SuggestOtherTrainers, &invalid)
	envDuration("SCHEDULER_CACHE_TTL", &cfg.Cache.TTL, &invalid)
	envInt("SCHEDULER_CACHE_MAX_ENTRIES", &cfg.Cache.MaxEntries, &invalid)
	envDuration("SCHEDULER_AVAILABILITY_CACHE_TTL", &cfg.Cache.AvailabilityTTL, &invalid)
	envDuration("SCHEDULER_GESTURE_IDLE_TIMEOUT", &cfg.Cache.GestureIdleTimeout, &invalid)
	envInt("SCHEDULER_MAX_GESTURES", &cfg.Cache.MaxGestures, &invalid)
	envInt("SCHEDULER_NOTIFY_WORKERS", &cfg.Notifications.Workers, &invalid)
	envInt("SCHEDULER_NOTIFY_QUEUE_SIZE", &cfg.Notifications.QueueSize, &invalid)
	envString("SCHEDULER_LOG_LEVEL", &cfg.Logging.Level)
	envString("SCHEDULER_LOG_FORMAT", &cfg.Logging.Format)
	return invalid
}

func envString(key string, dst *string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dst = value
	}
}

func envList(key string, dst *[]string) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func envFloat(key string, dst *float64, invalid *[]string) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*invalid = append(*invalid, key)
		return
	}
	*dst = f
}

func envInt(key string, dst *int, invalid *[]string) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*invalid = append(*invalid, key)
		return
	}
	*dst = n
}

func envBool(key string, dst *bool, invalid *[]string) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*invalid = append(*invalid, key)
		return
	}
	*dst = b
}

func envDuration(key string, dst *time.Duration, invalid *[]string) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*invalid = append(*invalid, key)
		return
	}
	*dst = d
}

func (c Config) validate() []string {
	var invalid []string
	check := func(ok bool, key string) {
		if !ok {
			invalid = append(invalid, key)
		}
	}

	check(c.HTTP.Port > 0 && c.HTTP.Port <= 65535, "http.port")
	check(c.HTTP.ShutdownTimeout > 0, "http.shutdown_timeout")
	check(c.HTTP.RateLimit >= 0, "http.rate_limit")
	check(c.HTTP.RateLimit == 0 || c.HTTP.RateBurst > 0, "http.rate_burst")
	check(strings.TrimSpace(c.Database.DSN) != "", "database.dsn")
	_, err := time.LoadLocation(c.Scheduling.Timezone)
	check(err == nil, "scheduling.timezone")
	check(c.Scheduling.BufferMinutes >= 0, "scheduling.buffer_minutes")
	check(c.Scheduling.SlotMinutes > 0 && c.Scheduling.SlotMinutes <= 24*60, "scheduling.slot_minutes")
	check(c.Scheduling.AlternativeLimit > 0, "scheduling.alternative_limit")
	check(c.Scheduling.AlternativeHorizonDays > 0 && c.Scheduling.AlternativeHorizonDays <= 60, "scheduling.alternative_horizon_days")
	check(c.Scheduling.MaxSessionMinutes >= 0, "scheduling.max_session_minutes")
	check(c.Cache.TTL > 0, "cache.ttl")
	check(c.Cache.MaxEntries > 0, "cache.max_entries")
	check(c.Cache.AvailabilityTTL > 0, "cache.availability_ttl")
	check(c.Cache.GestureIdleTimeout > 0, "cache.gesture_idle_timeout")
	check(c.Cache.MaxGestures > 0, "cache.max_gestures")
	check(c.Notifications.Workers > 0, "notifications.workers")
	check(c.Notifications.QueueSize > 0, "notifications.queue_size")
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		check(false, "logging.level")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		check(false, "logging.format")
	}
	return invalid
}

// Policy returns the checker policy described by the scheduling section.
func (c Config) Policy() (scheduler.Policy, error) {
	loc, err := time.LoadLocation(c.Scheduling.Timezone)
	if err != nil {
		return scheduler.Policy{}, fmt.Errorf("load timezone %q: %w", c.Scheduling.Timezone, err)
	}
	return scheduler.Policy{
		Location:               loc,
		BufferMinutes:          c.Scheduling.BufferMinutes,
		SlotMinutes:            c.Scheduling.SlotMinutes,
		AlternativeLimit:       c.Scheduling.AlternativeLimit,
		AlternativeHorizonDays: c.Scheduling.AlternativeHorizonDays,
		MaxSessionMinutes:      c.Scheduling.MaxSessionMinutes,
		SuggestOtherTrainers:   c.Scheduling.SuggestOtherTrainers,
	}, nil
}
