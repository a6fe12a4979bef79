package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/vietddude/flagfetch/internal/control"
	"github.com/vietddude/flagfetch/internal/core/domain"
)

var (
	fetchUserID   string
	fetchDeviceID string
	fetchFlags    []string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch variants for one user and print them as JSON",
	Run:   runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchUserID, "user-id", "", "user id to evaluate")
	fetchCmd.Flags().StringVar(&fetchDeviceID, "device-id", "", "device id to evaluate")
	fetchCmd.Flags().StringArrayVar(&fetchFlags, "flag", nil, "flag key to fetch (repeatable, default all)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	app, err := control.NewService(controlConfig(cfg))
	if err != nil {
		slog.Error("Failed to initialize service", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Stop(context.Background())
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	user := &domain.User{UserID: fetchUserID, DeviceID: fetchDeviceID}
	variants, err := app.Fetcher().Fetch(ctx, user, &domain.FetchOptions{FlagKeys: fetchFlags})
	if err != nil {
		slog.Error("Fetch failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(variants); err != nil {
		slog.Error("Failed to write variants", "error", err)
		os.Exit(1)
	}
}
