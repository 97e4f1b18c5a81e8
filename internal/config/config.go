// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	UpstreamURL    string `mapstructure:"UPSTREAM_URL"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	CommentsPerPage       int `mapstructure:"COMMENTS_PER_PAGE"`
	CollapsedReplyCount   int `mapstructure:"COLLAPSED_REPLY_COUNT"`
	ExpandedReplyPageSize int `mapstructure:"EXPANDED_REPLY_PAGE_SIZE"`

	PollAttempts          int `mapstructure:"POLL_ATTEMPTS"`
	PollDelayMS           int `mapstructure:"POLL_DELAY_MS"`
	ErrorTTLMS            int `mapstructure:"ERROR_TTL_MS"`
	CacheTTLSeconds       int `mapstructure:"CACHE_TTL_SECONDS"`
	SessionIdleTTLSeconds int `mapstructure:"SESSION_IDLE_TTL_SECONDS"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	TracingOTLPEndpoint string  `mapstructure:"TRACING_OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if errors.As(err, &notFoundErr) {
			log.Println("Config file not found; using environment variables and defaults")
		} else {
			return nil, err
		}
	}

	// Set default values
	viper.SetDefault("PORT", "8460")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("UPSTREAM_URL", "")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("COMMENTS_PER_PAGE", 10)
	viper.SetDefault("COLLAPSED_REPLY_COUNT", 3)
	viper.SetDefault("EXPANDED_REPLY_PAGE_SIZE", 5)
	viper.SetDefault("POLL_ATTEMPTS", 5)
	viper.SetDefault("POLL_DELAY_MS", 400)
	viper.SetDefault("ERROR_TTL_MS", 4000)
	viper.SetDefault("CACHE_TTL_SECONDS", 30)
	viper.SetDefault("SESSION_IDLE_TTL_SECONDS", 900)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("TRACING_OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 0.1)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// PollDelay returns the delay between bounded poll attempts.
func (c *Config) PollDelay() time.Duration {
	return time.Duration(c.PollDelayMS) * time.Millisecond
}

// ErrorTTL returns how long a transient session error stays visible.
func (c *Config) ErrorTTL() time.Duration {
	return time.Duration(c.ErrorTTLMS) * time.Millisecond
}

// CacheTTL returns the lifetime of cached read results.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// SessionIdleTTL returns how long an untouched session lives before reaping.
func (c *Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLSeconds) * time.Second
}
