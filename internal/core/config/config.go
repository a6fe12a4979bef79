package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/flagfetch/internal/assignment"
	redisclient "github.com/vietddude/flagfetch/internal/infra/redis"
	"github.com/vietddude/flagfetch/internal/infra/remote/retry"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Remote  RemoteConfig  `yaml:"remote"`
	Retry   RetryConfig   `yaml:"retry"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// RemoteConfig holds settings for the remote evaluation service.
type RemoteConfig struct {
	ServerURL string        `yaml:"server_url"`
	APIKey    string        `yaml:"api_key"`
	Timeout   time.Duration `yaml:"timeout"` // whole fetch, retries included
}

// RetryConfig holds the backoff policy. MaxAttempts counts retries after
// the first attempt; nil means the default, 0 disables retries.
type RetryConfig struct {
	MaxAttempts *int          `yaml:"max_attempts"`
	MinDelay    time.Duration `yaml:"min_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Scalar      float64       `yaml:"scalar"`
}

// Policy converts the section into a retry policy.
func (c RetryConfig) Policy() retry.Policy {
	p := retry.Policy{
		MinDelay: c.MinDelay,
		MaxDelay: c.MaxDelay,
		Scalar:   c.Scalar,
	}
	if c.MaxAttempts != nil {
		p.MaxAttempts = *c.MaxAttempts
	}
	return p
}

// CacheConfig holds assignment cache settings.
type CacheConfig struct {
	Prefix          string             `yaml:"prefix"`
	Expiration      time.Duration      `yaml:"expiration"`
	LocalExpiration time.Duration      `yaml:"local_expiration"` // 0 = same as expiration
	Redis           redisclient.Config `yaml:"redis"`            // empty url = local tier only
}

// Options converts the section into caching decorator options.
func (c CacheConfig) Options() assignment.Options {
	return assignment.Options{
		Prefix:          c.Prefix,
		Expiration:      c.Expiration,
		LocalExpiration: c.LocalExpiration,
	}
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Validate reports every invalid field at once.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Remote.ServerURL == "" {
		errs = append(errs, errors.New("remote.server_url is required"))
	}
	if c.Remote.APIKey == "" {
		errs = append(errs, errors.New("remote.api_key is required"))
	}
	if c.Remote.Timeout < 0 {
		errs = append(errs, errors.New("remote.timeout must not be negative"))
	}

	if c.Retry.MaxAttempts != nil && *c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("retry.max_attempts must not be negative"))
	}
	if c.Retry.MinDelay < 0 {
		errs = append(errs, errors.New("retry.min_delay must not be negative"))
	}
	if c.Retry.MinDelay > c.Retry.MaxDelay {
		errs = append(errs, fmt.Errorf("retry.min_delay %s exceeds retry.max_delay %s", c.Retry.MinDelay, c.Retry.MaxDelay))
	}
	if c.Retry.Scalar <= 1 {
		errs = append(errs, fmt.Errorf("retry.scalar must be greater than 1, got %g", c.Retry.Scalar))
	}

	if c.Cache.Expiration <= 0 {
		errs = append(errs, errors.New("cache.expiration must be positive"))
	}
	if c.Cache.LocalExpiration < 0 {
		errs = append(errs, errors.New("cache.local_expiration must not be negative"))
	}
	if c.Cache.LocalExpiration > c.Cache.Expiration {
		errs = append(errs, fmt.Errorf("cache.local_expiration %s exceeds cache.expiration %s", c.Cache.LocalExpiration, c.Cache.Expiration))
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	return errors.Join(errs...)
}
