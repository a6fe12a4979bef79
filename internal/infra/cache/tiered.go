package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/flagfetch/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// errAbandoned marks a flight whose callers all stopped waiting before the
// factory finished.
var errAbandoned = errors.New("cache: flight abandoned by all callers")

type options struct {
	distributed Distributed
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a TieredStore.
type Option func(*options)

// WithDistributed adds a shared tier behind the local one.
func WithDistributed(d Distributed) Option {
	return func(o *options) {
		o.distributed = d
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// flight is the context shared by every caller waiting on one key. It is
// cancelled once the last of them leaves.
type flight struct {
	ctx    context.Context
	cancel context.CancelFunc
	refs   int
}

// TieredStore is a Store with a local tier, an optional distributed tier and
// per-key single-flight creation.
type TieredStore[V any] struct {
	local       *memoryTier[V]
	distributed Distributed
	group       singleflight.Group
	logger      *slog.Logger
	now         func() time.Time

	mu      sync.Mutex
	flights map[string]*flight
}

// NewTieredStore creates an empty store.
func NewTieredStore[V any](opts ...Option) *TieredStore[V] {
	o := options{
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &TieredStore[V]{
		local:       newMemoryTier[V](),
		distributed: o.distributed,
		logger:      o.logger,
		now:         o.now,
		flights:     make(map[string]*flight),
	}
}

// GetOrCreate implements Store.
//
// The factory runs under a context that keeps the first caller's values but
// not its cancellation. It is cancelled only when every caller waiting on
// the key has left; each caller stops waiting as soon as its own ctx is done.
func (s *TieredStore[V]) GetOrCreate(
	ctx context.Context,
	key string,
	opts EntryOptions,
	factory Factory[V],
) (V, error) {
	var zero V
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	if opts.Expiration > 0 {
		e, ok, delta := s.local.get(key, s.now())
		s.track(delta)
		if ok {
			metrics.CacheLookupsTotal.WithLabelValues("local", "hit").Inc()
			return e.Value, nil
		}
		metrics.CacheLookupsTotal.WithLabelValues("local", "miss").Inc()
	}

	for {
		f := s.acquire(ctx, key)
		leader := false
		ch := s.group.DoChan(key, func() (any, error) {
			leader = true
			v, err := s.load(f.ctx, key, opts, factory)
			if err != nil && f.ctx.Err() != nil {
				return v, errAbandoned
			}
			return v, err
		})

		select {
		case res := <-ch:
			s.release(key, f)
			if errors.Is(res.Err, errAbandoned) {
				// Joined a flight whose own callers had all left.
				if err := ctx.Err(); err != nil {
					return zero, err
				}
				continue
			}
			if !leader {
				metrics.CacheCoalescedTotal.Inc()
			}
			if res.Err != nil {
				return zero, res.Err
			}
			v, _ := res.Val.(V)
			return v, nil
		case <-ctx.Done():
			s.release(key, f)
			return zero, ctx.Err()
		}
	}
}

func (s *TieredStore[V]) acquire(ctx context.Context, key string) *flight {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		s.flights[key] = f
	}
	f.refs++
	return f
}

func (s *TieredStore[V]) release(key string, f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.refs--
	if f.refs > 0 {
		return
	}
	f.cancel()
	if s.flights[key] == f {
		delete(s.flights, key)
	}
}

// load runs inside the flight for key.
func (s *TieredStore[V]) load(
	ctx context.Context,
	key string,
	opts EntryOptions,
	factory Factory[V],
) (V, error) {
	var zero V
	if opts.Expiration <= 0 {
		return factory(ctx)
	}

	// A previous flight may have filled the key after our first lookup.
	e, ok, delta := s.local.get(key, s.now())
	s.track(delta)
	if ok {
		return e.Value, nil
	}

	if e, ok := s.getDistributed(ctx, key, opts); ok {
		s.track(s.local.set(key, e))
		return e.Value, nil
	}

	v, err := factory(ctx)
	if err != nil {
		return zero, err
	}

	e = newEntry(v, s.now(), opts)
	s.track(s.local.set(key, e))
	s.setDistributed(context.WithoutCancel(ctx), key, e, opts.Expiration)
	return v, nil
}

// track applies a local entry count change to the process-wide gauge.
func (s *TieredStore[V]) track(delta int) {
	if delta != 0 {
		metrics.CacheEntries.Add(float64(delta))
	}
}

func (s *TieredStore[V]) getDistributed(ctx context.Context, key string, opts EntryOptions) (*Entry[V], bool) {
	if s.distributed == nil {
		return nil, false
	}

	data, ok, err := s.distributed.Get(ctx, key)
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("distributed", "error").Inc()
		s.logger.Warn("Distributed cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues("distributed", "miss").Inc()
		return nil, false
	}

	var env envelope[V]
	if err := json.Unmarshal(data, &env); err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("distributed", "error").Inc()
		s.logger.Warn("Discarding undecodable distributed entry", "key", key, "error", err)
		return nil, false
	}

	now := s.now()
	if !now.Before(env.ExpiresAt) {
		metrics.CacheLookupsTotal.WithLabelValues("distributed", "miss").Inc()
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues("distributed", "hit").Inc()

	localExpiresAt := now.Add(opts.local())
	if localExpiresAt.After(env.ExpiresAt) {
		localExpiresAt = env.ExpiresAt
	}
	return &Entry[V]{
		Value:          env.Value,
		ExpiresAt:      env.ExpiresAt,
		LocalExpiresAt: localExpiresAt,
	}, true
}

func (s *TieredStore[V]) setDistributed(ctx context.Context, key string, e *Entry[V], ttl time.Duration) {
	if s.distributed == nil {
		return
	}

	data, err := json.Marshal(envelope[V]{Value: e.Value, ExpiresAt: e.ExpiresAt})
	if err != nil {
		s.logger.Warn("Failed to encode cache entry", "key", key, "error", err)
		return
	}
	if err := s.distributed.Set(ctx, key, data, ttl); err != nil {
		s.logger.Warn("Distributed cache write failed", "key", key, "error", err)
	}
}

// Invalidate removes key from both tiers. A flight already running for key
// is not interrupted and will store its result when it completes.
func (s *TieredStore[V]) Invalidate(ctx context.Context, key string) error {
	s.track(s.local.delete(key))
	if s.distributed == nil {
		return nil
	}
	return s.distributed.Delete(ctx, key)
}

// Len returns the number of entries held by the local tier, expired ones
// that were not read since expiring included.
func (s *TieredStore[V]) Len() int {
	return s.local.len()
}
