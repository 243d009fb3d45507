// Package config loads runtime configuration from the environment and an
// optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the settings consumed by the engine and the session service.
type Config struct {
	// DatabaseURL is the Postgres connection string for session-variable
	// persistence.
	DatabaseURL string `mapstructure:"database_url"`

	// Timezone names the location used for the system clock variables
	// (date.today, time.now, ...). IANA name, defaults to UTC.
	Timezone string `mapstructure:"timezone"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Load reads configuration from environment variables (FLOW_DATABASE_URL,
// FLOW_TIMEZONE, ...) layered over an optional config.yaml in the working
// directory.
func Load() (*Config, error) {
	v := viper.New()

	// every key needs a default registered or AutomaticEnv will not surface
	// it through Unmarshal
	v.SetDefault("database_url", "")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("log_format", "json")

	v.SetEnvPrefix("FLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	return &cfg, nil
}

// Location resolves the configured timezone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Clock returns the time source for engine contexts: now, in the configured
// location.
func (c *Config) Clock() func() time.Time {
	loc := c.Location()
	return func() time.Time {
		return time.Now().In(loc)
	}
}
