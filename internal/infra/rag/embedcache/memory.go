// Package embedcache provides concrete rag.EmbeddingCache backends: an
// in-memory map for tests and a single-process fallback, and a Valkey
// backend for shared deployments.
package embedcache

import (
	"context"
	"sync"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

// MemoryCache is a process-local, concurrency-safe embedding cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string][]float32
}

// NewMemoryCache constructs a MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string][]float32)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]float32, len(vec))
	copy(cp, vec)
	c.items[key] = cp
	return nil
}

var _ rag.EmbeddingCache = (*MemoryCache)(nil)
