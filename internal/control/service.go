package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/flagfetch/internal/assignment"
	"github.com/vietddude/flagfetch/internal/core/domain"
	"github.com/vietddude/flagfetch/internal/infra/cache"
	redisclient "github.com/vietddude/flagfetch/internal/infra/redis"
	"github.com/vietddude/flagfetch/internal/infra/remote"
	"github.com/vietddude/flagfetch/internal/infra/remote/provider"
	"github.com/vietddude/flagfetch/internal/infra/remote/retry"
	"github.com/vietddude/flagfetch/internal/server"
)

// Service is the main application struct that owns the fetch pipeline and
// the HTTP server.
type Service struct {
	cfg         Config
	fetcher     *assignment.CachingFetcher
	store       *cache.TieredStore[domain.Variants]
	server      *server.Server
	redisClient *redisclient.Client
	log         *slog.Logger
}

// Config holds the application configuration.
type Config struct {
	Port       int
	Provider   provider.Config
	Timeout    time.Duration
	Retry      retry.Policy
	Cache      assignment.Options
	Redis      redisclient.Config
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewService creates a new Service with all dependencies initialized.
//
// An unreachable Redis is not fatal: the service starts with the local
// tier only and /health reports it as degraded.
func NewService(cfg Config) (*Service, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	// 1. Remote client
	if cfg.HTTPClient != nil {
		cfg.Provider.HTTPClient = cfg.HTTPClient
	}
	httpProvider := provider.NewHTTPProvider(cfg.Provider)
	client := remote.NewClient(httpProvider, remote.Config{
		Timeout: cfg.Timeout,
		Retry:   cfg.Retry,
	}, remote.WithLogger(log.With("component", "remote")))

	// 2. Cache store
	storeOpts := []cache.Option{cache.WithLogger(log.With("component", "cache"))}

	var redisClient *redisclient.Client
	var redisErr error
	if cfg.Redis.Enabled() {
		redisClient, redisErr = redisclient.NewClient(cfg.Redis)
		if redisErr != nil {
			log.Warn("Failed to connect to Redis, using local cache only", "error", redisErr)
		} else {
			storeOpts = append(storeOpts, cache.WithDistributed(redisClient))
			log.Info("Using Redis distributed cache")
		}
	}
	store := cache.NewTieredStore[domain.Variants](storeOpts...)

	// 3. Caching decorator
	fetcher := assignment.NewCachingFetcher(client, store, cfg.Cache,
		assignment.WithLogger(log.With("component", "assignment")))

	// 4. HTTP server
	serverOpts := []server.Option{
		server.WithLogger(log.With("component", "server")),
		server.WithInvalidator(fetcher),
	}
	if cfg.Redis.Enabled() {
		serverOpts = append(serverOpts, server.WithCheck(server.Check{
			Name: "redis",
			Probe: func(ctx context.Context) error {
				if redisClient == nil {
					return redisErr
				}
				return redisClient.Ping(ctx)
			},
		}))
	}

	return &Service{
		cfg:         cfg,
		fetcher:     fetcher,
		store:       store,
		server:      server.NewServer(fetcher, cfg.Port, serverOpts...),
		redisClient: redisClient,
		log:         log,
	}, nil
}

// Fetcher returns the caching fetcher.
func (s *Service) Fetcher() domain.Fetcher {
	return s.fetcher
}

// Handler returns the HTTP handler without starting a listener.
func (s *Service) Handler() http.Handler {
	return s.server.Handler()
}

// Start binds the HTTP port and serves in the background. A port that
// cannot be bound fails Start.
func (s *Service) Start(ctx context.Context) error {
	if err := s.server.Listen(); err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	go func() {
		if err := s.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server failed", "error", err)
		}
	}()

	s.log.Info("Service started",
		"addr", s.server.Addr(),
		"distributed_cache", s.redisClient != nil,
		"expiration", s.cfg.Cache.Expiration,
	)
	return nil
}

// Stop stops the service.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping service...", "cached_entries", s.store.Len())

	err := s.server.Stop(ctx)

	// Close Redis
	if s.redisClient != nil {
		if cerr := s.redisClient.Close(); cerr != nil {
			s.log.Warn("Failed to close Redis", "error", cerr)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to stop http server: %w", err)
	}
	return nil
}
