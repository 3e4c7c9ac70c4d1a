// Package injection applies the configured prompt-injection filter mode to
// a ranked chunk list, consuming per-chunk risk signals computed at ingest
// time. Mode "downrank" performs a stable partition (two passes,
// preserving relative order within each partition) rather than a sort, so
// chunks within the same risk bucket keep their retrieval order.
package injection

import (
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

// Apply filters or reorders chunks according to mode.
func Apply(mode rag.InjectionFilterMode, chunks []rag.RetrievedChunk) []rag.RetrievedChunk {
	switch mode {
	case rag.InjectionFilterExclude:
		out := make([]rag.RetrievedChunk, 0, len(chunks))
		for _, c := range chunks {
			if !c.Chunk.InjectionFlagged() {
				out = append(out, c)
			}
		}
		return out
	case rag.InjectionFilterDownrank:
		safe := make([]rag.RetrievedChunk, 0, len(chunks))
		flagged := make([]rag.RetrievedChunk, 0, len(chunks))
		for _, c := range chunks {
			if c.Chunk.InjectionFlagged() {
				flagged = append(flagged, c)
			} else {
				safe = append(safe, c)
			}
		}
		return append(safe, flagged...)
	default:
		return chunks
	}
}
