package context

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

func rankedChunk(docID uuid.UUID, title, content string) rag.RankedChunk {
	return rag.RankedChunk{RetrievedChunk: rag.RetrievedChunk{
		Chunk:    rag.Chunk{DocumentID: docID, Content: content},
		Document: rag.Document{ID: docID, Title: title},
	}}
}

func TestBuildAssignsSequentialCitationIndices(t *testing.T) {
	b := NewBuilder(nil)
	doc1, doc2 := uuid.New(), uuid.New()
	out, kept := b.Build([]rag.RankedChunk{
		rankedChunk(doc1, "Doc 1", "alpha"),
		rankedChunk(doc2, "Doc 2", "beta"),
	}, 10000)

	require.Len(t, kept, 2)
	require.Equal(t, 1, kept[0].CitationIndex)
	require.Equal(t, 2, kept[1].CitationIndex)
	require.Contains(t, out, "[S1]")
	require.Contains(t, out, "[S2]")
}

func TestBuildDeduplicatesByDocumentAndContent(t *testing.T) {
	b := NewBuilder(nil)
	doc := uuid.New()
	_, kept := b.Build([]rag.RankedChunk{
		rankedChunk(doc, "Doc", "same content"),
		rankedChunk(doc, "Doc", "same content"),
	}, 10000)
	require.Len(t, kept, 1)
}

func TestBuildNeverExceedsBudgetEvenForFirstChunk(t *testing.T) {
	b := NewBuilder(nil)
	doc := uuid.New()
	// budget smaller than even a single block; the oversized first chunk
	// must be dropped, not let through because total starts at zero.
	out, kept := b.Build([]rag.RankedChunk{
		rankedChunk(doc, "Doc", strings.Repeat("x", 10000)),
	}, 10)
	require.Empty(t, kept)
	require.Empty(t, out)
}

func TestBuildStopsBeforeExceedingBudget(t *testing.T) {
	b := NewBuilder(nil)
	doc1, doc2 := uuid.New(), uuid.New()
	first := rankedChunk(doc1, "Doc 1", "short")

	// budget fits exactly the first block (open+content+close), leaving no
	// room for a second chunk however small.
	firstBlock := fmt.Sprintf(delimOpenFmt, 1) + sanitize(first.Chunk.Content) + fmt.Sprintf(delimCloseFmt, 1)
	budget := b.size(firstBlock)

	_, kept := b.Build([]rag.RankedChunk{first, rankedChunk(doc2, "Doc 2", strings.Repeat("y", 500))}, budget)
	require.Len(t, kept, 1)
	require.Equal(t, "Doc 1", kept[0].Document.Title)
}

func TestSanitizeEscapesDelimiterLikeSubstrings(t *testing.T) {
	out := sanitize("prefix ---[S1]--- suffix")
	require.NotContains(t, out, "---[S1]---")
}

func TestFingerprintIsStablePerDocumentAndContent(t *testing.T) {
	doc := uuid.New()
	require.Equal(t, fingerprint(doc.String(), "a"), fingerprint(doc.String(), "a"))
	require.NotEqual(t, fingerprint(doc.String(), "a"), fingerprint(doc.String(), "b"))
}
