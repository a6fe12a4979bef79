// Package cache provides a get-or-create store with per-key stampede
// protection and two independent expirations.
//
// TieredStore keeps a sharded in-memory tier in front of an optional
// distributed tier (see internal/infra/redis). Concurrent misses on the same
// key share one factory call; distinct keys never wait on each other.
package cache

import (
	"context"
	"time"
)

// EntryOptions controls how long a created value stays visible.
type EntryOptions struct {
	// Expiration is the absolute lifetime of the entry. It is also the TTL
	// written to the distributed tier. Zero or negative disables storage;
	// concurrent callers on the key still share one factory call.
	Expiration time.Duration

	// LocalExpiration bounds how long the in-memory tier serves the entry.
	// Zero, or anything longer than Expiration, means Expiration.
	LocalExpiration time.Duration
}

func (o EntryOptions) local() time.Duration {
	if o.LocalExpiration <= 0 || o.LocalExpiration > o.Expiration {
		return o.Expiration
	}
	return o.LocalExpiration
}

// Factory produces the value for a missing key.
type Factory[V any] func(ctx context.Context) (V, error)

// Store is the get-or-create primitive used by the caching decorator.
//
// Implementations must run at most one factory per key at a time and hand
// every concurrent caller on that key the same value or the same error.
// Errors are never stored. One caller's cancellation must not fail the
// others waiting on the same key.
type Store[V any] interface {
	GetOrCreate(ctx context.Context, key string, opts EntryOptions, factory Factory[V]) (V, error)
}

// Distributed is a shared byte store with TTLs.
// Get returns (nil, false, nil) on a miss.
type Distributed interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Entry is an immutable cached value.
type Entry[V any] struct {
	Value          V
	ExpiresAt      time.Time
	LocalExpiresAt time.Time
}

func newEntry[V any](value V, now time.Time, opts EntryOptions) *Entry[V] {
	return &Entry[V]{
		Value:          value,
		ExpiresAt:      now.Add(opts.Expiration),
		LocalExpiresAt: now.Add(opts.local()),
	}
}

// envelope is the distributed-tier encoding of an entry.
type envelope[V any] struct {
	Value     V         `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}
