// Package rewrite optionally rewrites a short or follow-up query into a
// self-contained search query using conversation history, grounded on the
// teacher's chatgpt.Client.CreateChatCompletion call shape. Any failure,
// empty result, or over-length result falls back to the original query.
package rewrite

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

// HistoryTurn is one prior exchange in the conversation.
type HistoryTurn struct {
	Query  string
	Answer string
}

var followUpPattern = regexp.MustCompile(`(?i)^\s*(it|that|this|they|them|he|she|those|these)\b`)

const shortQueryRuneThreshold = 50

// ShouldRewrite reports whether query is short or exhibits a follow-up
// signal, and history is long enough to make rewriting worthwhile.
func ShouldRewrite(query string, history []HistoryTurn, minHistory int) bool {
	if len(history) < minHistory {
		return false
	}
	trimmed := strings.TrimSpace(query)
	if len([]rune(trimmed)) < shortQueryRuneThreshold {
		return true
	}
	return followUpPattern.MatchString(trimmed)
}

// Rewriter rewrites queries using an LLM given history context.
type Rewriter struct {
	llm    rag.LLMService
	prompt func(ctx context.Context, query string, history []HistoryTurn) (string, error)
	logger *slog.Logger
}

// New constructs a Rewriter. promptFn builds the rewrite instruction sent
// to the LLM (typically via the prompt assembler's rewrite_query
// capability); it is injected so this package stays decoupled from the
// prompt loader's filesystem layout.
func New(llm rag.LLMService, promptFn func(ctx context.Context, query string, history []HistoryTurn) (string, error), logger *slog.Logger) *Rewriter {
	return &Rewriter{llm: llm, prompt: promptFn, logger: logger.With("component", "rag.rewrite")}
}

const maxRewrittenRunes = 300

// Rewrite returns a rewritten query, or the original query unchanged on
// any failure.
func (r *Rewriter) Rewrite(ctx context.Context, query string, history []HistoryTurn) string {
	if r.llm == nil || r.prompt == nil {
		return query
	}
	prompt, err := r.prompt(ctx, query, history)
	if err != nil {
		r.logger.Warn("rewrite prompt assembly failed, using original query", "error", err)
		return query
	}
	rewritten, err := r.llm.GenerateText(ctx, prompt, 128)
	if err != nil {
		r.logger.Warn("rewrite generation failed, using original query", "error", err)
		return query
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" || len([]rune(rewritten)) > maxRewrittenRunes {
		return query
	}
	return rewritten
}
