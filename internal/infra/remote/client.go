// Package remote provides the resilient client for the remote evaluation service.
//
// Client wraps a single-shot transport with:
//   - a fetch-level deadline composed onto the caller's context
//   - exponential-backoff retries with failure classification (see retry/)
//   - request ids, structured logging and Prometheus metrics
//
// # Package Structure
//
//   - provider/ - HTTP transport (one round trip per call)
//   - retry/    - backoff policy, failure classes, retry executor
package remote

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/flagfetch/internal/core/domain"
	"github.com/vietddude/flagfetch/internal/infra/remote/provider"
	"github.com/vietddude/flagfetch/internal/infra/remote/retry"
	"github.com/vietddude/flagfetch/internal/metrics"
)

// DefaultTimeout bounds a whole fetch, retries and backoff waits included.
const DefaultTimeout = 10 * time.Second

// Config holds remote client settings.
type Config struct {
	// Timeout is the fetch-level deadline. Zero disables it.
	Timeout time.Duration
	Retry   retry.Policy
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client fetches variants with retries and a fetch deadline.
// It is safe for concurrent use and keeps no state between calls.
type Client struct {
	provider domain.Fetcher
	timeout  time.Duration
	policy   retry.Policy
	logger   *slog.Logger
}

// NewClient creates a remote client on top of a single-shot provider.
func NewClient(p domain.Fetcher, cfg Config, opts ...Option) *Client {
	c := &Client{
		provider: p,
		timeout:  cfg.Timeout,
		policy:   cfg.Retry,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch implements domain.Fetcher.
//
// Failures are *retry.Error values. Exceeding the fetch deadline yields
// retry.ErrTimeout; cancelling ctx yields retry.ErrCancelled.
func (c *Client) Fetch(
	ctx context.Context,
	user *domain.User,
	opts *domain.FetchOptions,
) (domain.Variants, error) {
	if user == nil {
		return nil, domain.ErrInvalidSubject
	}

	requestID := uuid.NewString()
	logger := c.logger.With("request_id", requestID)
	ctx = provider.WithRequestID(ctx, requestID)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cfg := retry.Config{
		Policy: c.policy,
		OnRetry: func(e retry.Event) {
			metrics.FetchRetriesTotal.WithLabelValues(e.Class.String()).Inc()
			logger.Warn("Fetch failed, retrying",
				"attempt", e.Attempt+1,
				"class", e.Class.String(),
				"backoff", e.Delay,
				"error", e.Err,
			)
		},
	}

	start := time.Now()
	variants, err := retry.Execute(ctx, cfg, func(ctx context.Context) (domain.Variants, error) {
		metrics.FetchAttemptsTotal.Inc()
		return c.provider.Fetch(ctx, user, opts)
	})
	elapsed := time.Since(start)

	if err == nil {
		metrics.FetchRequestsTotal.WithLabelValues("success").Inc()
		metrics.FetchDuration.WithLabelValues("success").Observe(elapsed.Seconds())
		logger.Debug("Fetched variants", "count", len(variants), "duration", elapsed)
		return variants, nil
	}

	class := retry.Classify(err)
	metrics.FetchRequestsTotal.WithLabelValues(class.String()).Inc()
	metrics.FetchFailuresTotal.WithLabelValues(class.String()).Inc()
	metrics.FetchDuration.WithLabelValues(class.String()).Observe(elapsed.Seconds())

	var re *retry.Error
	attempts := 0
	if errors.As(err, &re) {
		attempts = re.Attempts
	}

	if class == retry.ClassCancelled {
		logger.Debug("Fetch cancelled", "attempts", attempts, "duration", elapsed)
	} else {
		logger.Error("Fetch failed",
			"class", class.String(),
			"attempts", attempts,
			"duration", elapsed,
			"error", err,
		)
	}

	return nil, err
}
