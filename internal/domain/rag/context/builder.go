// Package context assembles a citation-tagged context block from ranked
// chunks, grounded on the teacher's MD5 content-fingerprint deduplication
// technique in storage/memory.go (upgraded here to SHA-256, since the
// fingerprint guards a security-relevant boundary — what the model is
// allowed to see — rather than a cache key). Sanitization is one-way:
// delimiter-like substrings are escaped, never restored.
package context

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

const (
	delimOpenFmt  = "---[S%d]---\n"
	delimCloseFmt = "\n---[FIN S%d]---\n"
)

// TokenCounter optionally bounds context assembly by token count instead
// of raw character count.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter adapts pkoukk/tiktoken-go as a TokenCounter.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter constructs a TiktokenCounter using the cl100k_base
// encoding, matching the teacher's chunker encoding choice.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Builder assembles context blocks.
type Builder struct {
	tokens TokenCounter
}

// NewBuilder constructs a Builder. tokens may be nil, in which case
// maxSize is interpreted as a character budget.
func NewBuilder(tokens TokenCounter) *Builder {
	return &Builder{tokens: tokens}
}

func sanitize(content string) string {
	replacer := strings.NewReplacer("---[", "-​--[")
	return replacer.Replace(content)
}

func fingerprint(documentID string, content string) string {
	h := sha256.Sum256([]byte(documentID + "|" + content))
	return hex.EncodeToString(h[:])
}

func (b *Builder) size(text string) int {
	if b.tokens != nil {
		return b.tokens.Count(text)
	}
	return len([]rune(text))
}

// Build assigns [S#] citation indices in input order, deduplicates by
// (document id, content) fingerprint, sanitizes delimiter-like substrings,
// and stops adding chunks before exceeding maxSize. It returns the
// assembled context block (ending in a FUENTES section listing included
// sources) and the final list of ranked chunks with their citation index
// set.
func (b *Builder) Build(chunks []rag.RankedChunk, maxSize int) (string, []rag.RankedChunk) {
	seen := make(map[string]bool)
	var sb strings.Builder
	var kept []rag.RankedChunk
	total := 0
	citation := 0

	for _, rc := range chunks {
		fp := fingerprint(rc.Chunk.DocumentID.String(), rc.Chunk.Content)
		if seen[fp] {
			continue
		}
		content := sanitize(rc.Chunk.Content)
		citation++
		open := fmt.Sprintf(delimOpenFmt, citation)
		close_ := fmt.Sprintf(delimCloseFmt, citation)
		block := open + content + close_
		if total+b.size(block) > maxSize {
			citation--
			break
		}
		seen[fp] = true
		sb.WriteString(block)
		total += b.size(block)
		rc.CitationIndex = citation
		kept = append(kept, rc)
	}

	if len(kept) > 0 {
		sb.WriteString("\nFUENTES:\n")
		for _, rc := range kept {
			sb.WriteString(fmt.Sprintf("[S%d] %s (chunk %d)\n", rc.CitationIndex, rc.Document.Title, rc.Chunk.ChunkIndex))
		}
	}

	return sb.String(), kept
}
