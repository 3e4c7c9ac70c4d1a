// Package rerank reorders retrieved chunks before answering. Heuristic
// mode is a deterministic weighted scorer; llm mode asks the LLM to score
// a bounded candidate set. Both modes trim to top_k while preserving the
// relative order of kept chunks — reranking never renumbers citations, it
// only decides which chunks survive to the context builder.
package rerank

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

const llmCandidateCap = 20

// Heuristic scores each chunk by a weighted blend of retrieval score, term
// overlap with the query, chunk length, and original position, then keeps
// the top_k ranked by that score while preserving their original relative
// order in the output.
func Heuristic(query string, chunks []rag.RetrievedChunk, topK int) []rag.RetrievedChunk {
	queryTerms := termSet(query)
	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(chunks))
	for i, c := range chunks {
		overlap := termOverlap(queryTerms, c.Chunk.Content)
		lengthPenalty := 1.0 / (1.0 + float64(len(c.Chunk.Content))/2000.0)
		positionBonus := 1.0 / float64(i+1)
		scores[i] = scored{idx: i, score: 0.5*c.Score + 0.3*overlap + 0.1*lengthPenalty + 0.1*positionBonus}
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].score > scores[b].score })
	if topK > 0 && len(scores) > topK {
		scores = scores[:topK]
	}
	keep := make(map[int]bool, len(scores))
	for _, s := range scores {
		keep[s.idx] = true
	}
	out := make([]rag.RetrievedChunk, 0, len(keep))
	for i, c := range chunks {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out
}

func termSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = true
	}
	return set
}

func termOverlap(queryTerms map[string]bool, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	hits := 0
	for w := range termSet(content) {
		if queryTerms[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}

// LLM asks llm to score each of up to llmCandidateCap candidates from 0 to
// 1 relevance to query, then keeps the top_k by score while preserving
// their original relative order. Any parse failure for a candidate scores
// it 0 rather than failing the whole rerank.
func LLM(ctx context.Context, llm rag.LLMService, query string, chunks []rag.RetrievedChunk, topK int, logger *slog.Logger) []rag.RetrievedChunk {
	candidates := chunks
	if len(candidates) > llmCandidateCap {
		candidates = candidates[:llmCandidateCap]
	}
	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(candidates))
	for i, c := range candidates {
		prompt := fmt.Sprintf("Query: %s\nPassage: %s\nRate relevance 0 to 1, respond with only the number.", query, c.Chunk.Content)
		resp, err := llm.GenerateText(ctx, prompt, 8)
		if err != nil {
			logger.Warn("llm rerank scoring failed, defaulting to zero", "error", err)
			scores[i] = scored{idx: i, score: 0}
			continue
		}
		val, perr := strconv.ParseFloat(strings.TrimSpace(resp), 64)
		if perr != nil {
			scores[i] = scored{idx: i, score: 0}
			continue
		}
		scores[i] = scored{idx: i, score: val}
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].score > scores[b].score })
	if topK > 0 && len(scores) > topK {
		scores = scores[:topK]
	}
	keep := make(map[int]bool, len(scores))
	for _, s := range scores {
		keep[s.idx] = true
	}
	out := make([]rag.RetrievedChunk, 0, len(keep)+len(chunks)-len(candidates))
	for i, c := range candidates {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out
}
