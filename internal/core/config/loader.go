package config

import (
	"fmt"
	"os"
	"time"

	"github.com/vietddude/flagfetch/internal/assignment"
	"github.com/vietddude/flagfetch/internal/infra/remote"
	"github.com/vietddude/flagfetch/internal/infra/remote/provider"
	"github.com/vietddude/flagfetch/internal/infra/remote/retry"
	"gopkg.in/yaml.v2"
)

// DefaultExpiration is the cache lifetime when none is configured.
const DefaultExpiration = 5 * time.Minute

// Load reads configuration from a YAML file, expands ${VAR} references and
// applies defaults. It does not validate; call Validate.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content the same way Load does.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}

	if c.Remote.ServerURL == "" {
		c.Remote.ServerURL = provider.DefaultServerURL
	}
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = remote.DefaultTimeout
	}

	if c.Retry.MaxAttempts == nil {
		n := retry.DefaultPolicy.MaxAttempts
		c.Retry.MaxAttempts = &n
	}
	if c.Retry.MinDelay == 0 {
		c.Retry.MinDelay = retry.DefaultPolicy.MinDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = retry.DefaultPolicy.MaxDelay
	}
	if c.Retry.Scalar == 0 {
		c.Retry.Scalar = retry.DefaultPolicy.Scalar
	}

	if c.Cache.Prefix == "" {
		c.Cache.Prefix = assignment.DefaultKeyPrefix
	}
	if c.Cache.Expiration == 0 {
		c.Cache.Expiration = DefaultExpiration
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}
