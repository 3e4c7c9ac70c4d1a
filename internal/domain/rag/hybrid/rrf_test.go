package hybrid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

func chunkOf(id uuid.UUID) rag.RetrievedChunk {
	return rag.RetrievedChunk{Chunk: rag.Chunk{ID: id}}
}

func TestFuseCombinesScoresAcrossBothLists(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	dense := []rag.RetrievedChunk{chunkOf(a), chunkOf(b)}
	sparse := []rag.RetrievedChunk{chunkOf(b), chunkOf(a)}

	fused := Fuse(dense, sparse, DefaultK, 0)
	require.Len(t, fused, 2)
	// both chunks appear in rank 1 and rank 2 across the two lists, so
	// their RRF scores are identical; tie-break is chunk id ascending.
	expectedFirst := a
	if b.String() < a.String() {
		expectedFirst = b
	}
	require.Equal(t, expectedFirst, fused[0].Chunk.ID)
}

func TestFuseRanksChunkPresentInBothListsHigher(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	dense := []rag.RetrievedChunk{chunkOf(a), chunkOf(b)}
	sparse := []rag.RetrievedChunk{chunkOf(a), chunkOf(c)}

	fused := Fuse(dense, sparse, DefaultK, 0)
	require.Equal(t, a, fused[0].Chunk.ID)
}

func TestFuseDegradesToDenseWhenSparseEmpty(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	dense := []rag.RetrievedChunk{chunkOf(a), chunkOf(b)}

	fused := Fuse(dense, nil, DefaultK, 0)
	require.Len(t, fused, 2)
	require.Equal(t, a, fused[0].Chunk.ID)
	require.Equal(t, b, fused[1].Chunk.ID)
}

func TestFuseRespectsTopK(t *testing.T) {
	dense := []rag.RetrievedChunk{chunkOf(uuid.New()), chunkOf(uuid.New()), chunkOf(uuid.New())}
	fused := Fuse(dense, nil, DefaultK, 2)
	require.Len(t, fused, 2)
}

func TestFuseDefaultsKWhenNonPositive(t *testing.T) {
	a := uuid.New()
	fused := Fuse([]rag.RetrievedChunk{chunkOf(a)}, nil, 0, 0)
	require.Len(t, fused, 1)
	require.InDelta(t, 1.0/float64(DefaultK+1), fused[0].Score, 1e-9)
}
