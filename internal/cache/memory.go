package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMemorySize = 1024

// Memory is a size-bounded LRU cache with per-entry expiry.
type Memory struct {
	lru *expirable.LRU[string, []float32]
}

// NewMemory creates a cache holding at most size entries for ttl each. A
// non-positive ttl keeps entries until they are evicted.
func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = defaultMemorySize
	}
	return &Memory{lru: expirable.NewLRU[string, []float32](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]float32, bool, error) {
	vec, ok := m.lru.Get(key)
	return vec, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, vec []float32) error {
	m.lru.Add(key, vec)
	return nil
}

// Len returns the number of cached entries.
func (m *Memory) Len() int {
	return m.lru.Len()
}
