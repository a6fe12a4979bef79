package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestMemoryTier(t *testing.T) {
	now := time.Now()
	m := newMemoryTier[int]()

	for i := 0; i < 100; i++ {
		delta := m.set(fmt.Sprintf("key-%d", i), &Entry[int]{
			Value:          i,
			ExpiresAt:      now.Add(time.Minute),
			LocalExpiresAt: now.Add(time.Minute),
		})
		if delta != 1 {
			t.Fatalf("set(new key) delta = %d, want 1", delta)
		}
	}
	if got := m.len(); got != 100 {
		t.Fatalf("len() = %d, want 100", got)
	}

	if delta := m.set("key-0", &Entry[int]{ExpiresAt: now.Add(time.Minute), LocalExpiresAt: now.Add(time.Minute)}); delta != 0 {
		t.Errorf("set(existing key) delta = %d, want 0", delta)
	}

	e, ok, _ := m.get("key-42", now)
	if !ok || e.Value != 42 {
		t.Fatalf("get(key-42) = %v, %v", e, ok)
	}

	if _, ok, delta := m.get("key-42", now.Add(time.Minute)); ok || delta != -1 {
		t.Errorf("expired entry: ok=%v delta=%d", ok, delta)
	}
	if got := m.len(); got != 99 {
		t.Errorf("expired entry not evicted on read: len() = %d", got)
	}

	if delta := m.delete("key-1"); delta != -1 {
		t.Errorf("delete delta = %d, want -1", delta)
	}
	if delta := m.delete("key-1"); delta != 0 {
		t.Errorf("second delete delta = %d, want 0", delta)
	}
	if _, ok, _ := m.get("key-1", now); ok {
		t.Errorf("deleted entry returned")
	}
}

func TestEntryOptionsLocal(t *testing.T) {
	tests := []struct {
		name string
		opts EntryOptions
		want time.Duration
	}{
		{"unset", EntryOptions{Expiration: time.Hour}, time.Hour},
		{"shorter", EntryOptions{Expiration: time.Hour, LocalExpiration: time.Minute}, time.Minute},
		{"longer is clamped", EntryOptions{Expiration: time.Minute, LocalExpiration: time.Hour}, time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.local(); got != tt.want {
				t.Errorf("local() = %v, want %v", got, tt.want)
			}
		})
	}
}
