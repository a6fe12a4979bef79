package cache

import (
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// memoryTier is a sharded map with lazy expiry on read. Mutating methods
// return the change in entry count.
type memoryTier[V any] struct {
	shards [numShards]*memoryShard[V]
}

type memoryShard[V any] struct {
	mu      sync.Mutex
	entries map[string]*Entry[V]
}

func newMemoryTier[V any]() *memoryTier[V] {
	m := &memoryTier[V]{}
	for i := range m.shards {
		m.shards[i] = &memoryShard[V]{entries: make(map[string]*Entry[V])}
	}
	return m
}

func (m *memoryTier[V]) shard(key string) *memoryShard[V] {
	h := fnv.New32a()
	h.Write([]byte(key))
	return m.shards[h.Sum32()%numShards]
}

// get returns a live entry, dropping it if it is no longer locally visible.
func (m *memoryTier[V]) get(key string, now time.Time) (*Entry[V], bool, int) {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, 0
	}
	if !now.Before(e.LocalExpiresAt) || !now.Before(e.ExpiresAt) {
		delete(s.entries, key)
		return nil, false, -1
	}
	return e, true, 0
}

func (m *memoryTier[V]) set(key string, e *Entry[V]) int {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.entries[key]
	s.entries[key] = e
	if existed {
		return 0
	}
	return 1
}

func (m *memoryTier[V]) delete(key string) int {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return 0
	}
	delete(s.entries, key)
	return -1
}

func (m *memoryTier[V]) len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}
