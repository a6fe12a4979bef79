package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/flagfetch/internal/assignment"
	"github.com/vietddude/flagfetch/internal/infra/remote/retry"
)

func TestLoad_EnvSubstitution(t *testing.T) {
	// Setup env var
	os.Setenv("TEST_DEPLOYMENT_KEY", "server-abc123")
	defer os.Unsetenv("TEST_DEPLOYMENT_KEY")

	// Create temp config file
	configContent := `
remote:
  api_key: ${TEST_DEPLOYMENT_KEY}
cache:
  redis:
    url: redis://localhost:6379/0
`
	tmpFile, err := os.CreateTemp("", "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write([]byte(configContent)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()

	// Load config
	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Remote.APIKey != "server-abc123" {
		t.Errorf("Expected api key server-abc123, got %s", cfg.Remote.APIKey)
	}
	if !cfg.Cache.Redis.Enabled() {
		t.Errorf("Expected redis to be enabled")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/flagfetch.yaml"); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("remote:\n  api_key: k\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Remote.ServerURL == "" {
		t.Errorf("Expected default server URL")
	}
	if got := cfg.Retry.Policy(); got != retry.DefaultPolicy {
		t.Errorf("Expected default policy, got %+v", got)
	}
	if cfg.Cache.Prefix != assignment.DefaultKeyPrefix {
		t.Errorf("Expected default prefix, got %q", cfg.Cache.Prefix)
	}
	if cfg.Cache.Expiration != DefaultExpiration {
		t.Errorf("Expected expiration %s, got %s", DefaultExpiration, cfg.Cache.Expiration)
	}
	if cfg.Cache.Redis.Enabled() {
		t.Errorf("Expected redis to be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestParse_Durations(t *testing.T) {
	content := `
remote:
  api_key: k
  timeout: 3s
retry:
  max_attempts: 0
  min_delay: 100ms
  max_delay: 2s
  scalar: 2
cache:
  expiration: 1m
  local_expiration: 10s
`
	cfg, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := retry.Policy{MaxAttempts: 0, MinDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second, Scalar: 2}
	if got := cfg.Retry.Policy(); got != want {
		t.Errorf("Expected policy %+v, got %+v", want, got)
	}
	if cfg.Remote.Timeout != 3*time.Second {
		t.Errorf("Expected timeout 3s, got %s", cfg.Remote.Timeout)
	}
	if cfg.Cache.LocalExpiration != 10*time.Second {
		t.Errorf("Expected local expiration 10s, got %s", cfg.Cache.LocalExpiration)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *AppConfig {
		cfg, err := Parse([]byte("remote:\n  api_key: k\n"))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		return cfg
	}
	negative := -1

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"valid", func(*AppConfig) {}, ""},
		{"missing api key", func(c *AppConfig) { c.Remote.APIKey = "" }, "remote.api_key"},
		{"negative attempts", func(c *AppConfig) { c.Retry.MaxAttempts = &negative }, "retry.max_attempts"},
		{"min above max", func(c *AppConfig) { c.Retry.MinDelay = time.Minute }, "exceeds retry.max_delay"},
		{"scalar too small", func(c *AppConfig) { c.Retry.Scalar = 1 }, "retry.scalar"},
		{"zero expiration", func(c *AppConfig) { c.Cache.Expiration = 0 }, "cache.expiration"},
		{"local above absolute", func(c *AppConfig) { c.Cache.LocalExpiration = time.Hour }, "cache.local_expiration"},
		{"bad log level", func(c *AppConfig) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := &AppConfig{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected error")
	}
	for _, field := range []string{"remote.server_url", "remote.api_key", "retry.scalar", "cache.expiration"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("Expected %s in %v", field, err)
		}
	}
}
