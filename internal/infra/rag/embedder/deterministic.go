package embedder

import (
	"context"
	"hash/fnv"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

// DeterministicEmbedder avoids network calls by hashing text into a
// pseudo-random vector. Used in fake_embeddings mode and tests.
type DeterministicEmbedder struct {
	dim int
}

// NewDeterministicEmbedder constructs the embedder.
func NewDeterministicEmbedder(dim int) *DeterministicEmbedder {
	if dim <= 0 {
		dim = 32
	}
	return &DeterministicEmbedder{dim: dim}
}

func (e *DeterministicEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return hashVector(text, e.dim), nil
}

func (e *DeterministicEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = hashVector(text, e.dim)
	}
	return vectors, nil
}

func hashVector(text string, dim int) []float32 {
	vector := make([]float32, dim)
	hash := fnv.New64a()
	_, _ = hash.Write([]byte(text))
	seed := hash.Sum64()
	for j := 0; j < dim; j++ {
		seed = seed*1099511628211 + 1469598103934665603
		vector[j] = float32(seed%997) / 997.0
	}
	return vector
}

var _ rag.EmbeddingService = (*DeterministicEmbedder)(nil)
