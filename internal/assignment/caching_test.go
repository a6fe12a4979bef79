package assignment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/flagfetch/internal/core/domain"
	"github.com/vietddude/flagfetch/internal/infra/cache"
	"github.com/vietddude/flagfetch/internal/infra/remote/retry"
)

// mockFetcher records calls and optionally blocks until released.
type mockFetcher struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (m *mockFetcher) Fetch(ctx context.Context, user *domain.User, _ *domain.FetchOptions) (domain.Variants, error) {
	m.calls.Add(1)
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return domain.Variants{
		"flag": {Key: "on", Value: "on", Payload: user.UserID},
	}, nil
}

// noInvalidateStore hides TieredStore.Invalidate.
type noInvalidateStore struct {
	cache.Store[domain.Variants]
}

type countingStore struct {
	calls atomic.Int32
}

func (s *countingStore) GetOrCreate(
	ctx context.Context,
	_ string,
	_ cache.EntryOptions,
	factory cache.Factory[domain.Variants],
) (domain.Variants, error) {
	s.calls.Add(1)
	return factory(ctx)
}

var testOptions = Options{Prefix: "test", Expiration: time.Minute}

func newTestFetcher(inner domain.Fetcher) *CachingFetcher {
	return NewCachingFetcher(inner, cache.NewTieredStore[domain.Variants](), testOptions)
}

func TestFetch_ConcurrentSameKeyCallsInnerOnce(t *testing.T) {
	inner := &mockFetcher{release: make(chan struct{})}
	f := newTestFetcher(inner)
	user := &domain.User{UserID: "u1"}

	var wg sync.WaitGroup
	results := make([]domain.Variants, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.Fetch(context.Background(), user, nil)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	if got := inner.calls.Load(); got != 1 {
		t.Fatalf("inner called %d times, want 1", got)
	}
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if results[i]["flag"].Value != "on" {
			t.Errorf("call %d: unexpected variants %v", i, results[i])
		}
	}
}

func TestFetch_DifferentUsersFetchIndependently(t *testing.T) {
	inner := &mockFetcher{}
	f := newTestFetcher(inner)

	for _, id := range []string{"u1", "u2"} {
		v, err := f.Fetch(context.Background(), &domain.User{UserID: id}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v["flag"].Payload != id {
			t.Errorf("got payload %v for %s", v["flag"].Payload, id)
		}
	}
	if got := inner.calls.Load(); got != 2 {
		t.Errorf("inner called %d times, want 2", got)
	}
}

func TestFetch_FlagOrderSharesEntry(t *testing.T) {
	inner := &mockFetcher{}
	f := newTestFetcher(inner)
	user := &domain.User{UserID: "u1"}

	_, _ = f.Fetch(context.Background(), user, &domain.FetchOptions{FlagKeys: []string{"b", "a"}})
	_, _ = f.Fetch(context.Background(), user, &domain.FetchOptions{FlagKeys: []string{"a", "b"}})
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("inner called %d times, want 1", got)
	}
}

func TestFetch_NilUserFailsBeforeCache(t *testing.T) {
	inner := &mockFetcher{}
	store := &countingStore{}
	f := NewCachingFetcher(inner, store, testOptions)

	_, err := f.Fetch(context.Background(), nil, nil)
	if !errors.Is(err, domain.ErrInvalidSubject) {
		t.Fatalf("expected ErrInvalidSubject, got %v", err)
	}
	if store.calls.Load() != 0 || inner.calls.Load() != 0 {
		t.Errorf("store or inner fetcher was consulted")
	}
}

func TestFetch_FailureIsNotCached(t *testing.T) {
	upstream := &retry.Error{Class: retry.ClassServer, Attempts: 3, StatusCode: 503, Err: errors.New("unavailable")}
	inner := &mockFetcher{err: upstream}
	f := newTestFetcher(inner)
	user := &domain.User{UserID: "u1"}

	_, err := f.Fetch(context.Background(), user, nil)
	if !errors.Is(err, retry.ErrServer) {
		t.Fatalf("expected server failure, got %v", err)
	}
	if err != error(upstream) {
		t.Errorf("failure was not returned unchanged: %v", err)
	}

	inner.err = nil
	if _, err := f.Fetch(context.Background(), user, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := inner.calls.Load(); got != 2 {
		t.Errorf("inner called %d times, want 2", got)
	}
}

func TestFetch_WaiterCancellation(t *testing.T) {
	inner := &mockFetcher{release: make(chan struct{})}
	f := newTestFetcher(inner)
	user := &domain.User{UserID: "u1"}

	leaderDone := make(chan error, 1)
	go func() {
		_, err := f.Fetch(context.Background(), user, nil)
		leaderDone <- err
	}()
	for inner.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := f.Fetch(ctx, user, nil)
	if !errors.Is(err, retry.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}

	close(inner.release)
	if err := <-leaderDone; err != nil {
		t.Fatalf("leader failed: %v", err)
	}
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("inner called %d times, want 1", got)
	}
}

func TestFetch_FirstCallerCancellationDoesNotFailWaiter(t *testing.T) {
	inner := &mockFetcher{release: make(chan struct{})}
	f := newTestFetcher(inner)
	user := &domain.User{UserID: "u1"}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := f.Fetch(firstCtx, user, nil)
		firstDone <- err
	}()
	for inner.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	type result struct {
		v   domain.Variants
		err error
	}
	waiterDone := make(chan result, 1)
	go func() {
		v, err := f.Fetch(context.Background(), user, nil)
		waiterDone <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	if err := <-firstDone; !errors.Is(err, retry.ErrCancelled) {
		t.Fatalf("first caller: expected ErrCancelled, got %v", err)
	}

	close(inner.release)
	res := <-waiterDone
	if res.err != nil {
		t.Fatalf("waiter that never cancelled failed: %v", res.err)
	}
	if res.v["flag"].Value != "on" {
		t.Errorf("unexpected variants: %v", res.v)
	}
}

func TestFetch_ResultIsPrivateCopy(t *testing.T) {
	inner := &mockFetcher{}
	f := newTestFetcher(inner)
	user := &domain.User{UserID: "u1"}

	first, err := f.Fetch(context.Background(), user, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	delete(first, "flag")

	second, err := f.Fetch(context.Background(), user, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := second["flag"]; !ok {
		t.Errorf("mutating one result changed the cached entry: %v", second)
	}
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("inner called %d times, want 1", got)
	}
}

func TestFetch_InnerContextErrorIsClassified(t *testing.T) {
	inner := &mockFetcher{err: context.DeadlineExceeded}
	f := newTestFetcher(inner)

	_, err := f.Fetch(context.Background(), &domain.User{UserID: "u1"}, nil)
	if !errors.Is(err, retry.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestInvalidate(t *testing.T) {
	inner := &mockFetcher{}
	f := newTestFetcher(inner)
	user := &domain.User{UserID: "u1"}

	_, _ = f.Fetch(context.Background(), user, nil)
	if err := f.Invalidate(context.Background(), user, nil); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	_, _ = f.Fetch(context.Background(), user, nil)
	if got := inner.calls.Load(); got != 2 {
		t.Errorf("inner called %d times, want 2", got)
	}
}

func TestInvalidate_Unsupported(t *testing.T) {
	store := noInvalidateStore{cache.NewTieredStore[domain.Variants]()}
	f := NewCachingFetcher(&mockFetcher{}, store, testOptions)

	err := f.Invalidate(context.Background(), &domain.User{UserID: "u1"}, nil)
	if !errors.Is(err, ErrInvalidationUnsupported) {
		t.Errorf("expected ErrInvalidationUnsupported, got %v", err)
	}
}
