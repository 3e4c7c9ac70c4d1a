// Package embedcache decorates an EmbeddingService with a get/set cache so
// identical (model, task type, text) triples are only embedded once,
// grounded on the teacher's FAQ semantic-hash caching technique and its
// ValkeyStore's GET/SET/TTL shape.
package embedcache

import (
	"context"
	"log/slog"
	"strings"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

const normalizationVersion = "v1"

const (
	taskTypeQuery    = "retrieval_query"
	taskTypeDocument = "retrieval_document"
)

// Service wraps rag.EmbeddingService with a cache-aside layer.
type Service struct {
	inner   rag.EmbeddingService
	cache   rag.EmbeddingCache
	modelID string
	logger  *slog.Logger
}

// New constructs a caching EmbeddingService.
func New(inner rag.EmbeddingService, cache rag.EmbeddingCache, modelID string, logger *slog.Logger) *Service {
	return &Service{inner: inner, cache: cache, modelID: modelID, logger: logger.With("component", "rag.embedcache")}
}

func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func (s *Service) key(taskType, text string) string {
	return s.modelID + "|" + taskType + "|" + normalizationVersion + "|" + normalize(text)
}

func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := s.key(taskTypeQuery, text)
	if vec, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return vec, nil
	} else if err != nil {
		s.logger.Warn("embedding cache get failed", "error", err)
	}
	vec, err := s.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, vec); err != nil {
		s.logger.Warn("embedding cache set failed", "error", err)
	}
	return vec, nil
}

// EmbedBatch dedupes the cache-miss subset by normalized text before
// calling the underlying provider, then fans results back out preserving
// the input order and length so identical inputs always yield identical
// outputs at matching positions.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	missIndexByText := make(map[string][]int)
	var missTexts []string

	for i, text := range texts {
		key := s.key(taskTypeDocument, text)
		keys[i] = key
		vec, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("embedding cache get failed", "error", err)
		}
		if ok {
			out[i] = vec
			continue
		}
		norm := normalize(text)
		if _, seen := missIndexByText[norm]; !seen {
			missTexts = append(missTexts, text)
		}
		missIndexByText[norm] = append(missIndexByText[norm], i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	computed, err := s.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for i, text := range missTexts {
		norm := normalize(text)
		vec := computed[i]
		for _, idx := range missIndexByText[norm] {
			out[idx] = vec
		}
		if err := s.cache.Set(ctx, keys[missIndexByText[norm][0]], vec); err != nil {
			s.logger.Warn("embedding cache set failed", "error", err)
		}
	}
	return out, nil
}

var _ rag.EmbeddingService = (*Service)(nil)
