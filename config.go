package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the relay configuration.
type Config struct {
	Addr             string        `yaml:"addr" validate:"required"`
	Topic            string        `yaml:"topic" validate:"required"`
	Keepalive        time.Duration `yaml:"keepalive" validate:"gt=0"`
	RateLimit        time.Duration `yaml:"rate_limit" validate:"gt=0"`
	SubscriberBuffer int           `yaml:"subscriber_buffer" validate:"min=1"`
	Cookie           CookieConfig  `yaml:"cookie"`
	Origin           string        `yaml:"origin" validate:"omitempty,url"`
	StopTimeout      time.Duration `yaml:"stop_timeout" validate:"gte=0"`
	KillTimeout      time.Duration `yaml:"kill_timeout" validate:"gte=0"`
	MetricsInterval  time.Duration `yaml:"metrics_interval" validate:"gte=0"`
	LogLevel         string        `yaml:"log_level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	LogFile          string        `yaml:"log_file"`
}

// CookieConfig names the identity cookie. A non-empty Secret signs it.
type CookieConfig struct {
	Name   string `yaml:"name" validate:"required"`
	Secret string `yaml:"secret"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:             "127.0.0.1:8081",
		Topic:            defaultTopic,
		Keepalive:        defaultKeepaliveInterval,
		RateLimit:        defaultSendInterval,
		SubscriberBuffer: defaultSubscriberBuffer,
		Cookie: CookieConfig{
			Name: defaultCookieName,
		},
		StopTimeout:     10 * time.Second,
		KillTimeout:     time.Second,
		MetricsInterval: 60 * time.Second,
		LogLevel:        "info",
	}
}

// LoadConfig reads configuration from path over the defaults. A missing or
// empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return cfg, fmt.Errorf("read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults sets default values for any unset options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Topic == "" {
		c.Topic = defaults.Topic
	}
	if c.Keepalive == 0 {
		c.Keepalive = defaults.Keepalive
	}
	if c.RateLimit == 0 {
		c.RateLimit = defaults.RateLimit
	}
	if c.SubscriberBuffer == 0 {
		c.SubscriberBuffer = defaults.SubscriberBuffer
	}
	if c.Cookie.Name == "" {
		c.Cookie.Name = defaults.Cookie.Name
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Keepalive < time.Millisecond {
		return fmt.Errorf("invalid config: keepalive must be at least 1ms")
	}
	return nil
}
