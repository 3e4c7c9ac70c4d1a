// Package hybrid fuses dense (vector similarity) and sparse (full-text)
// search results with Reciprocal Rank Fusion, grounded on the algorithm
// described in spec.md and the dynamic-predicate SQL style the teacher
// uses in its postgres repository.
package hybrid

import (
	"sort"

	"github.com/google/uuid"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

const DefaultK = 60

// Fuse combines dense and sparse result sets via Reciprocal Rank Fusion:
// score(doc) = sum over each ranked list it appears in of 1/(k+rank).
// Chunks present in only one list still receive a score from that list.
// Ties are broken by chunk id ascending. If the sparse branch is empty
// (e.g. it failed upstream), the result degrades to dense ranking alone.
func Fuse(dense, sparse []rag.RetrievedChunk, k int, topK int) []rag.RetrievedChunk {
	if k <= 0 {
		k = DefaultK
	}
	scores := make(map[uuid.UUID]float64)
	byID := make(map[uuid.UUID]rag.RetrievedChunk)

	accumulate := func(list []rag.RetrievedChunk) {
		for i, rc := range list {
			rank := i + 1
			scores[rc.Chunk.ID] += 1.0 / float64(k+rank)
			byID[rc.Chunk.ID] = rc
		}
	}
	accumulate(dense)
	accumulate(sparse)

	fused := make([]rag.RetrievedChunk, 0, len(byID))
	for id, rc := range byID {
		rc.Score = scores[id]
		fused = append(fused, rc)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].Chunk.ID.String() < fused[j].Chunk.ID.String()
	})
	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}
	return fused
}
