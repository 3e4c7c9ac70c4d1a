package rerank

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

func chunkWith(content string, score float64) rag.RetrievedChunk {
	return rag.RetrievedChunk{Chunk: rag.Chunk{ID: uuid.New(), Content: content}, Score: score}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHeuristicKeepsTopKByScore(t *testing.T) {
	chunks := []rag.RetrievedChunk{
		chunkWith("irrelevant filler text", 0.1),
		chunkWith("rag retrieval augmented generation", 0.9),
		chunkWith("some other unrelated content", 0.2),
	}
	out := Heuristic("rag retrieval augmented generation", chunks, 1)
	require.Len(t, out, 1)
	require.Equal(t, chunks[1].Chunk.ID, out[0].Chunk.ID)
}

func TestHeuristicPreservesRelativeOrderOfSurvivors(t *testing.T) {
	chunks := []rag.RetrievedChunk{
		chunkWith("rag query", 0.9),
		chunkWith("totally unrelated", 0.05),
		chunkWith("rag query answer", 0.85),
	}
	out := Heuristic("rag query", chunks, 2)
	require.Len(t, out, 2)
	require.Equal(t, chunks[0].Chunk.ID, out[0].Chunk.ID)
	require.Equal(t, chunks[2].Chunk.ID, out[1].Chunk.ID)
}

func TestHeuristicTopKZeroKeepsAll(t *testing.T) {
	chunks := []rag.RetrievedChunk{chunkWith("a", 0.1), chunkWith("b", 0.2)}
	out := Heuristic("a", chunks, 0)
	require.Len(t, out, 2)
}

type fakeRerankLLM struct {
	scores map[string]string
	err    error
}

func (f fakeRerankLLM) GenerateAnswer(context.Context, string, string) (string, error) { return "", nil }

func (f fakeRerankLLM) GenerateText(_ context.Context, prompt string, _ int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	for content, score := range f.scores {
		if strings.Contains(prompt, content) {
			return score, nil
		}
	}
	return "0", nil
}

func (f fakeRerankLLM) GenerateStream(context.Context, string, string) (<-chan rag.StreamEvent, error) {
	return nil, nil
}

func TestLLMKeepsHighestScoredCandidate(t *testing.T) {
	a := chunkWith("strong match content", 0)
	b := chunkWith("weak match content", 0)
	llm := fakeRerankLLM{scores: map[string]string{"strong match content": "0.9", "weak match content": "0.1"}}

	out := LLM(context.Background(), llm, "query", []rag.RetrievedChunk{a, b}, 1, testLogger())
	require.Len(t, out, 1)
	require.Equal(t, a.Chunk.ID, out[0].Chunk.ID)
}

func TestLLMCapsCandidatesAtLLMCandidateCap(t *testing.T) {
	chunks := make([]rag.RetrievedChunk, llmCandidateCap+5)
	for i := range chunks {
		chunks[i] = chunkWith("content", 0)
	}
	llm := fakeRerankLLM{}
	out := LLM(context.Background(), llm, "query", chunks, llmCandidateCap+5, testLogger())
	require.LessOrEqual(t, len(out), llmCandidateCap)
}

func TestLLMDefaultsScoreToZeroOnError(t *testing.T) {
	a := chunkWith("content a", 0)
	llm := fakeRerankLLM{err: errors.New("provider unavailable")}
	out := LLM(context.Background(), llm, "query", []rag.RetrievedChunk{a}, 1, testLogger())
	require.Len(t, out, 1)
}

func TestLLMDefaultsScoreToZeroOnParseFailure(t *testing.T) {
	a := chunkWith("content a", 0)
	llm := fakeRerankLLM{scores: map[string]string{"content a": "not-a-number"}}
	out := LLM(context.Background(), llm, "query", []rag.RetrievedChunk{a}, 1, testLogger())
	require.Len(t, out, 1)
}
