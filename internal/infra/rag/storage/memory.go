package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

// MemoryStorage keeps document blobs in memory. Used for tests and local dev.
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string]storedBlob
}

type storedBlob struct {
	data     []byte
	mimeType string
}

// NewMemoryStorage constructs storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string]storedBlob)}
}

// Upload stores the blob.
func (s *MemoryStorage) Upload(_ context.Context, key string, content []byte, mimeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := make([]byte, len(content))
	copy(data, content)
	s.blobs[key] = storedBlob{data: data, mimeType: mimeType}
	return nil
}

// Download returns the stored blob.
func (s *MemoryStorage) Download(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", rag.ErrStorageNotFound, key)
	}
	out := make([]byte, len(blob.data))
	copy(out, blob.data)
	return out, nil
}

// Delete removes the blob.
func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

// Presign fabricates a stable pseudo-URL; sufficient for local/dev flows
// that never leave the process.
func (s *MemoryStorage) Presign(_ context.Context, key string, ttl time.Duration, suggestedFileName string) (string, error) {
	s.mu.RLock()
	_, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", rag.ErrStorageNotFound, key)
	}
	expires := ttl.Truncate(time.Second)
	return fmt.Sprintf("memory://%s?filename=%s&expires_in=%s", key, suggestedFileName, expires), nil
}

var _ rag.FileStorage = (*MemoryStorage)(nil)
