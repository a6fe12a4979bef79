// Package assignment serves variant assignments through a shared cache.
//
// CachingFetcher decorates any domain.Fetcher: identical concurrent requests
// collapse into one upstream fetch, and successful results are reused until
// they expire. Failures are never cached.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/flagfetch/internal/core/domain"
	"github.com/vietddude/flagfetch/internal/infra/cache"
	"github.com/vietddude/flagfetch/internal/infra/remote/retry"
)

// DefaultKeyPrefix namespaces assignment cache keys.
const DefaultKeyPrefix = "flagfetch:variants"

// ErrInvalidationUnsupported is returned by Invalidate when the store cannot
// remove entries.
var ErrInvalidationUnsupported = errors.New("cache store does not support invalidation")

// Options controls key derivation and entry lifetimes.
type Options struct {
	Prefix          string
	Expiration      time.Duration
	LocalExpiration time.Duration
}

// Option configures a CachingFetcher.
type Option func(*CachingFetcher)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(f *CachingFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

type invalidator interface {
	Invalidate(ctx context.Context, key string) error
}

// CachingFetcher implements domain.Fetcher on top of a cache.Store.
type CachingFetcher struct {
	inner  domain.Fetcher
	store  cache.Store[domain.Variants]
	opts   Options
	logger *slog.Logger
}

// NewCachingFetcher wraps inner with store. An empty prefix means
// DefaultKeyPrefix.
func NewCachingFetcher(
	inner domain.Fetcher,
	store cache.Store[domain.Variants],
	opts Options,
	options ...Option,
) *CachingFetcher {
	if opts.Prefix == "" {
		opts.Prefix = DefaultKeyPrefix
	}
	f := &CachingFetcher{
		inner:  inner,
		store:  store,
		opts:   opts,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, o := range options {
		o(f)
	}
	return f
}

// Fetch implements domain.Fetcher.
//
// A nil user fails with domain.ErrInvalidSubject before the cache is
// consulted. Callers coalesced onto one upstream fetch receive the same
// result or the same error; cancelling ctx only affects this call. The
// returned map is the caller's own copy.
func (f *CachingFetcher) Fetch(
	ctx context.Context,
	user *domain.User,
	opts *domain.FetchOptions,
) (domain.Variants, error) {
	if user == nil {
		return nil, domain.ErrInvalidSubject
	}

	key := DeriveKey(f.opts.Prefix, user, opts)
	entry := cache.EntryOptions{
		Expiration:      f.opts.Expiration,
		LocalExpiration: f.opts.LocalExpiration,
	}

	variants, err := f.store.GetOrCreate(ctx, key, entry, func(ctx context.Context) (domain.Variants, error) {
		f.logger.Debug("Cache miss, fetching", "key", key)
		return f.inner.Fetch(ctx, user, opts)
	})
	if err != nil {
		return nil, classifyContextErr(err)
	}
	// The cached map is shared by every caller; hand out a private copy.
	return variants.Clone(), nil
}

// classifyContextErr turns raw context errors, from the store or from an
// inner fetcher that does not classify its own failures, into *retry.Error.
func classifyContextErr(err error) error {
	var re *retry.Error
	if errors.As(err, &re) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.AsError(err)
	}
	return err
}

// Invalidate drops the cached entry for the given request.
func (f *CachingFetcher) Invalidate(ctx context.Context, user *domain.User, opts *domain.FetchOptions) error {
	if user == nil {
		return domain.ErrInvalidSubject
	}
	inv, ok := f.store.(invalidator)
	if !ok {
		return ErrInvalidationUnsupported
	}

	key := DeriveKey(f.opts.Prefix, user, opts)
	if err := inv.Invalidate(ctx, key); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", key, err)
	}
	f.logger.Debug("Invalidated cache entry", "key", key)
	return nil
}
