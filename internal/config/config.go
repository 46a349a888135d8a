package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken      string       `yaml:"discord_token"`
	ServerID          string       `yaml:"server_id"`
	DatabasePath      string       `yaml:"database_path"`
	LogLevel          string       `yaml:"log_level"`
	DefaultLogChannel string       `yaml:"default_log_channel"`
	Health            HealthConfig `yaml:"health"`
	Cache             CacheConfig  `yaml:"cache"`
	Burst             BurstConfig  `yaml:"burst"`
	Actions           ActionConfig `yaml:"actions"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type CacheConfig struct {
	Capacity int `yaml:"capacity"`
}

// BurstConfig holds the auto-trigger thresholds: a user posting in at least
// Channels distinct channels within WindowSeconds is treated as a spam burst.
type BurstConfig struct {
	Channels      int `yaml:"channels"`
	WindowSeconds int `yaml:"window_seconds"`
}

type ActionConfig struct {
	AutoPurgeCount   int `yaml:"auto_purge_count"`
	ManualPurgeCount int `yaml:"manual_purge_count"`
	TimeoutMinutes   int `yaml:"timeout_minutes"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:      "/data/repel.db",
		LogLevel:          "info",
		DefaultLogChannel: "",
		Health:            HealthConfig{Enabled: false, Addr: ":8080"},
		Cache:             CacheConfig{Capacity: 500},
		Burst:             BurstConfig{Channels: 3, WindowSeconds: 30},
		Actions: ActionConfig{
			AutoPurgeCount:   50,
			ManualPurgeCount: 100,
			TimeoutMinutes:   120,
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	normalize(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.ServerID = envString("SERVER_ID", cfg.ServerID)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultLogChannel = envString("DEFAULT_LOG_CHANNEL", cfg.DefaultLogChannel)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Cache.Capacity = envInt("CACHE_CAPACITY", cfg.Cache.Capacity)
	cfg.Burst.Channels = envInt("BURST_CHANNELS", cfg.Burst.Channels)
	cfg.Burst.WindowSeconds = envInt("BURST_WINDOW_SECONDS", cfg.Burst.WindowSeconds)
	cfg.Actions.AutoPurgeCount = envInt("AUTO_PURGE_COUNT", cfg.Actions.AutoPurgeCount)
	cfg.Actions.ManualPurgeCount = envInt("MANUAL_PURGE_COUNT", cfg.Actions.ManualPurgeCount)
	cfg.Actions.TimeoutMinutes = envInt("TIMEOUT_MINUTES", cfg.Actions.TimeoutMinutes)
}

func normalize(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.Cache.Capacity <= 0 {
		cfg.Cache.Capacity = defaults.Cache.Capacity
	}
	if cfg.Burst.Channels <= 0 {
		cfg.Burst.Channels = defaults.Burst.Channels
	}
	if cfg.Burst.WindowSeconds <= 0 {
		cfg.Burst.WindowSeconds = defaults.Burst.WindowSeconds
	}
	if cfg.Actions.AutoPurgeCount <= 0 {
		cfg.Actions.AutoPurgeCount = defaults.Actions.AutoPurgeCount
	}
	if cfg.Actions.ManualPurgeCount <= 0 {
		cfg.Actions.ManualPurgeCount = defaults.Actions.ManualPurgeCount
	}
	if cfg.Actions.TimeoutMinutes <= 0 {
		cfg.Actions.TimeoutMinutes = defaults.Actions.TimeoutMinutes
	}
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
