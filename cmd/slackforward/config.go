package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonas-merkle/slacksink/pkg/core"
)

// AppConfig is the forwarder's full configuration: the sink settings
// plus the input source. A YAML file (SLACKFORWARD_CONFIG) supplies
// the base; environment variables override individual fields.
type AppConfig struct {
	Sink core.Config `yaml:"sink"`

	// Path of a log file to tail. Empty means read stdin.
	InputFile string `yaml:"input_file"`
	// Level assigned to lines that are not structured records.
	DefaultLevel string `yaml:"default_level"`
	// How often to log forwarding counters, 0 disables.
	StatsInterval time.Duration `yaml:"stats_interval"`
	LogLevel      string        `yaml:"log_level"`
}

func loadConfig() (AppConfig, error) {
	cfg := AppConfig{
		DefaultLevel:  "INFO",
		StatsInterval: time.Minute,
		LogLevel:      "info",
	}

	if path := os.Getenv("SLACKFORWARD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.Sink.WebhookURL = getEnv("SLACK_WEBHOOK_URL", cfg.Sink.WebhookURL)
	cfg.Sink.Timeout = getEnvAsDuration("SLACK_TIMEOUT", cfg.Sink.Timeout)
	cfg.Sink.BatchSize = getEnvAsInt("BATCH_SIZE", cfg.Sink.BatchSize)
	cfg.Sink.FlushPeriod = getEnvAsDuration("FLUSH_PERIOD", cfg.Sink.FlushPeriod)
	cfg.Sink.QueueCapacity = getEnvAsInt("QUEUE_CAPACITY", cfg.Sink.QueueCapacity)
	cfg.Sink.RatePerSec = getEnvAsInt("RATE_PER_SEC", cfg.Sink.RatePerSec)
	cfg.Sink.Username = getEnv("SLACK_USERNAME", cfg.Sink.Username)
	cfg.Sink.IconEmoji = getEnv("SLACK_ICON_EMOJI", cfg.Sink.IconEmoji)
	cfg.Sink.IconURL = getEnv("SLACK_ICON_URL", cfg.Sink.IconURL)
	if channels := getEnv("SLACK_CHANNELS", ""); channels != "" {
		cfg.Sink.Channels = splitChannels(channels)
	}

	cfg.InputFile = getEnv("INPUT_FILE", cfg.InputFile)
	cfg.DefaultLevel = getEnv("DEFAULT_LEVEL", cfg.DefaultLevel)
	cfg.StatsInterval = getEnvAsDuration("STATS_INTERVAL", cfg.StatsInterval)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if err := cfg.Sink.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func splitChannels(s string) []string {
	parts := strings.Split(s, ",")
	channels := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			channels = append(channels, p)
		}
	}
	return channels
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}
