package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/flagfetch/internal/assignment"
	"github.com/vietddude/flagfetch/internal/core/domain"
	redisclient "github.com/vietddude/flagfetch/internal/infra/redis"
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Drop a user's cached variants from the Redis tier",
	Long: `Deletes the distributed cache entry for a user. Local tiers of running
servers keep their copy until local_expiration; use POST /v1/assignments/invalidate
on each server to drop those too.`,
	Run: runInvalidate,
}

func init() {
	invalidateCmd.Flags().StringVar(&fetchUserID, "user-id", "", "user id of the entry")
	invalidateCmd.Flags().StringVar(&fetchDeviceID, "device-id", "", "device id of the entry")
	invalidateCmd.Flags().StringArrayVar(&fetchFlags, "flag", nil, "flag keys of the entry (repeatable)")
	rootCmd.AddCommand(invalidateCmd)
}

func runInvalidate(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if !cfg.Cache.Redis.Enabled() {
		slog.Error("Redis is not configured, nothing to invalidate")
		os.Exit(1)
	}

	client, err := redisclient.NewClient(cfg.Cache.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	user := &domain.User{UserID: fetchUserID, DeviceID: fetchDeviceID}
	key := assignment.DeriveKey(cfg.Cache.Prefix, user, &domain.FetchOptions{FlagKeys: fetchFlags})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Delete(ctx, key); err != nil {
		slog.Error("Failed to invalidate", "key", key, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Invalidated %s\n", key)
}
