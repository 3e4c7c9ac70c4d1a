package rewrite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

type fakeLLM struct {
	text string
	err  error
}

func (f fakeLLM) GenerateAnswer(context.Context, string, string) (string, error) { return "", nil }

func (f fakeLLM) GenerateText(context.Context, string, int) (string, error) {
	return f.text, f.err
}

func (f fakeLLM) GenerateStream(context.Context, string, string) (<-chan rag.StreamEvent, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShouldRewriteRequiresMinHistory(t *testing.T) {
	require.False(t, ShouldRewrite("it", []HistoryTurn{}, 1))
}

func TestShouldRewriteTriggersOnShortQuery(t *testing.T) {
	history := []HistoryTurn{{Query: "what is RAG", Answer: "..."}}
	require.True(t, ShouldRewrite("and why", history, 1))
}

func TestShouldRewriteTriggersOnFollowUpPronoun(t *testing.T) {
	history := []HistoryTurn{{Query: "what is RAG", Answer: "..."}}
	long := "it handles the entire retrieval and generation pipeline end to end"
	require.True(t, ShouldRewrite(long, history, 1))
}

func TestShouldRewriteFalseForLongStandaloneQuery(t *testing.T) {
	history := []HistoryTurn{{Query: "what is RAG", Answer: "..."}}
	long := "describe the full architecture of the document ingestion pipeline in detail"
	require.False(t, ShouldRewrite(long, history, 1))
}

func promptFn(_ context.Context, query string, _ []HistoryTurn) (string, error) {
	return "rewrite: " + query, nil
}

func TestRewriteReturnsLLMOutputOnSuccess(t *testing.T) {
	r := New(fakeLLM{text: "self-contained query"}, promptFn, testLogger())
	got := r.Rewrite(context.Background(), "it", nil)
	require.Equal(t, "self-contained query", got)
}

func TestRewriteFallsBackOnPromptError(t *testing.T) {
	r := New(fakeLLM{text: "unused"}, func(context.Context, string, []HistoryTurn) (string, error) {
		return "", errors.New("prompt assembly failed")
	}, testLogger())
	got := r.Rewrite(context.Background(), "original", nil)
	require.Equal(t, "original", got)
}

func TestRewriteFallsBackOnLLMError(t *testing.T) {
	r := New(fakeLLM{err: errors.New("llm unavailable")}, promptFn, testLogger())
	got := r.Rewrite(context.Background(), "original", nil)
	require.Equal(t, "original", got)
}

func TestRewriteFallsBackOnEmptyResult(t *testing.T) {
	r := New(fakeLLM{text: "   "}, promptFn, testLogger())
	got := r.Rewrite(context.Background(), "original", nil)
	require.Equal(t, "original", got)
}

func TestRewriteFallsBackOnOverLongResult(t *testing.T) {
	r := New(fakeLLM{text: strings.Repeat("x", maxRewrittenRunes+1)}, promptFn, testLogger())
	got := r.Rewrite(context.Background(), "original", nil)
	require.Equal(t, "original", got)
}

func TestRewriteReturnsQueryUnchangedWhenLLMNil(t *testing.T) {
	r := New(nil, promptFn, testLogger())
	got := r.Rewrite(context.Background(), "original", nil)
	require.Equal(t, "original", got)
}
