package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultTimeout       = 5 * time.Second
	DefaultBatchSize     = 10
	DefaultFlushPeriod   = 2 * time.Second
	DefaultQueueCapacity = 1000
	DefaultUsername      = "Log Forwarder"
)

// Config holds everything the sink needs to reach the webhook and shape
// its messages. The zero value plus a webhook URL is usable; Normalize
// fills the rest.
type Config struct {
	// Delivery.
	WebhookURL    string        `yaml:"webhook_url"`
	Timeout       time.Duration `yaml:"timeout"`
	BatchSize     int           `yaml:"batch_size"`
	FlushPeriod   time.Duration `yaml:"flush_period"`
	QueueCapacity int           `yaml:"queue_capacity"`
	// Posts per second to the webhook, 0 = unlimited.
	RatePerSec int `yaml:"rate_per_sec"`

	// Targeting. A non-empty Channels list fans out one post per
	// channel and overrides the webhook's default channel.
	Channels []string `yaml:"channels"`

	// Presentation.
	Username  string `yaml:"username"`
	IconEmoji string `yaml:"icon_emoji"`
	IconURL   string `yaml:"icon_url"`
	Markdown  bool   `yaml:"markdown"`
	LinkNames bool   `yaml:"link_names"`
	Parse     string `yaml:"parse"`
	ThreadTS  string `yaml:"thread_ts"`

	// Response-URL message behavior.
	ReplaceOriginal bool   `yaml:"replace_original"`
	DeleteOriginal  bool   `yaml:"delete_original"`
	ResponseType    string `yaml:"response_type"`
}

// Validate reports configuration a sink cannot be built from.
func (c Config) Validate() error {
	if strings.TrimSpace(c.WebhookURL) == "" {
		return fmt.Errorf("config: webhook URL is required")
	}
	if !strings.HasPrefix(c.WebhookURL, "http://") && !strings.HasPrefix(c.WebhookURL, "https://") {
		return fmt.Errorf("config: webhook URL %q is not an http(s) URL", c.WebhookURL)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("config: batch size must not be negative, got %d", c.BatchSize)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("config: queue capacity must not be negative, got %d", c.QueueCapacity)
	}
	if c.RatePerSec < 0 {
		return fmt.Errorf("config: rate per second must not be negative, got %d", c.RatePerSec)
	}
	return nil
}

// Normalize returns a copy with defaults applied for every unset field.
func (c Config) Normalize() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushPeriod <= 0 {
		c.FlushPeriod = DefaultFlushPeriod
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.Username == "" {
		c.Username = DefaultUsername
	}
	return c
}
