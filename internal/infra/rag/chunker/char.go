// Package chunker provides Chunker implementations. CharChunker is the
// default fixed-character-window strategy; TokenChunker (token.go) keeps
// the teacher's tiktoken-based budget splitter as an alternate Chunker
// implementation; no configuration option selects it.
package chunker

import (
	"strings"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

// CharChunker splits text into fixed-size character windows with overlap,
// preferring to break on whitespace near the window boundary so words are
// not split mid-token.
type CharChunker struct {
	Target  int
	Overlap int
}

// NewCharChunker constructs a CharChunker. target and overlap default to
// 900/120 when non-positive.
func NewCharChunker(target, overlap int) *CharChunker {
	if target <= 0 {
		target = 900
	}
	if overlap < 0 || overlap >= target {
		overlap = 120
	}
	return &CharChunker{Target: target, Overlap: overlap}
}

func (c *CharChunker) Chunk(text string) []rag.ChunkCandidate {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	var out []rag.ChunkCandidate
	start := 0
	index := 0
	for start < len(runes) {
		end := start + c.Target
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = breakPoint(runes, start, end)
		}
		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			out = append(out, rag.ChunkCandidate{ChunkIndex: index, Content: content})
			index++
		}
		if end >= len(runes) {
			break
		}
		next := end - c.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// breakPoint searches backward from end for the nearest whitespace rune so
// windows don't split a word, falling back to the hard boundary if none is
// found within a reasonable lookback.
func breakPoint(runes []rune, start, end int) int {
	const lookback = 80
	limit := end - lookback
	if limit < start {
		limit = start
	}
	for i := end; i > limit; i-- {
		if i < len(runes) && isBreakable(runes[i]) {
			return i
		}
	}
	return end
}

func isBreakable(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}
