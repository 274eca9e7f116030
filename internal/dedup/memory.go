package dedup

import (
	"context"
	"sync"
)

// MemoryCache is an in-process Cache. It is lost when the process exits.
type MemoryCache struct {
	mu   sync.Mutex
	sets map[string]map[string]struct{}
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{sets: make(map[string]map[string]struct{})}
}

// Set returns the named set.
func (c *MemoryCache) Set(name string) Set {
	return &memorySet{cache: c, name: name}
}

// Ping always succeeds.
func (c *MemoryCache) Ping(context.Context) error { return nil }

// Close is a no-op.
func (c *MemoryCache) Close() error { return nil }

// members returns the named set, creating it. c.mu must be held.
func (c *MemoryCache) members(name string) map[string]struct{} {
	m, ok := c.sets[name]
	if !ok {
		m = make(map[string]struct{})
		c.sets[name] = m
	}
	return m
}

type memorySet struct {
	cache *MemoryCache
	name  string
}

func (s *memorySet) AddIfAbsent(_ context.Context, member string) (bool, error) {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()

	m := s.cache.members(s.name)
	if _, ok := m[member]; ok {
		return false, nil
	}
	m[member] = struct{}{}
	return true, nil
}

func (s *memorySet) Contains(_ context.Context, member string) (bool, error) {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()

	_, ok := s.cache.members(s.name)[member]
	return ok, nil
}

func (s *memorySet) Remove(_ context.Context, member string) error {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()

	delete(s.cache.members(s.name), member)
	return nil
}

func (s *memorySet) Pop(_ context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()

	m := s.cache.members(s.name)
	out := make([]string, 0, min(n, len(m)))
	for member := range m {
		if len(out) >= n {
			break
		}
		out = append(out, member)
		delete(m, member)
	}
	return out, nil
}

func (s *memorySet) Len(context.Context) (int64, error) {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()

	return int64(len(s.cache.members(s.name))), nil
}
