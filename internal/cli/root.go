package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/flagfetch/internal/control"
	"github.com/vietddude/flagfetch/internal/core/config"
	"github.com/vietddude/flagfetch/internal/infra/remote/provider"
	"github.com/vietddude/stylelog"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "flagfetch",
	Short: "Flagfetch remote evaluation proxy",
	Long: `Flagfetch fetches flag assignments from a remote evaluation service with
retries, and shares them between callers through a local and optional Redis cache.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig loads .env and the config file, sets up logging and validates.
// It exits the process on failure.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid config", "error", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg config.LoggingConfig) {
	slogLevel := slog.LevelInfo
	switch {
	case isDebug || cfg.Level == "debug":
		slogLevel = slog.LevelDebug
	case cfg.Level == "warn":
		slogLevel = slog.LevelWarn
	case cfg.Level == "error":
		slogLevel = slog.LevelError
	}

	if cfg.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))
		return
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}

// controlConfig transforms the file config into service wiring.
func controlConfig(cfg *config.AppConfig) control.Config {
	return control.Config{
		Port: cfg.Server.Port,
		Provider: provider.Config{
			ServerURL: cfg.Remote.ServerURL,
			APIKey:    cfg.Remote.APIKey,
		},
		Timeout: cfg.Remote.Timeout,
		Retry:   cfg.Retry.Policy(),
		Cache:   cfg.Cache.Options(),
		Redis:   cfg.Cache.Redis,
		Logger:  slog.Default(),
	}
}
