// Package ask implements the retrieval and answering pipeline: query
// rewriting, vector (and optionally hybrid) search, injection filtering,
// reranking, context assembly, and streamed or single-shot LLM generation.
// It generalizes the teacher's uploadask.Service.Ask, replacing the
// teacher's server-side QASession/ConversationMessage persistence with
// caller-supplied conversation history, since conversation turns are not
// persisted by this system's core.
//
// It lives outside package rag, rather than alongside ingest_service.go,
// because it composes the rewrite/hybrid/rerank/injection/stream leaf
// packages, each of which imports rag for shared types; importing any of
// them back from package rag itself would be an import cycle.
package ask

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag/hybrid"
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag/injection"
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag/quota"
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag/rerank"
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag/rewrite"
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag/stream"
	"github.com/saintwyss/rag-corp-sub003/internal/infra/rag/retry"
	apperrors "github.com/saintwyss/rag-corp-sub003/pkg/errors"
)

const emptyContextFallback = "No relevant context available to answer this question."

const (
	quotaResourceMessages = "messages"
	quotaScopeWorkspace   = string(rag.QuotaScopeWorkspace)
)

// Service answers questions grounded in a workspace's ingested documents.
type Service struct {
	cfg      rag.Config
	authz    rag.WorkspaceAuthorizer
	chunks   rag.ChunkRepository
	embedder rag.EmbeddingService
	llm      rag.LLMService
	prompts  rag.PromptLoader
	builder  rag.ContextBuilder
	rewriter *rewrite.Rewriter
	quota    quota.Limiter
	quotaCap int64
	audit    rag.AuditRecorder
	retryCfg retry.Config
	logger   *slog.Logger
}

// NewService constructs the Service. rewriter and limiter may be nil, in
// which case rewriting and quota enforcement are skipped entirely.
func NewService(cfg rag.Config, authz rag.WorkspaceAuthorizer, chunks rag.ChunkRepository, embedder rag.EmbeddingService, llm rag.LLMService, prompts rag.PromptLoader, builder rag.ContextBuilder, rewriter *rewrite.Rewriter, limiter quota.Limiter, quotaCap int64, audit rag.AuditRecorder, retryCfg retry.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		authz:    authz,
		chunks:   chunks,
		embedder: embedder,
		llm:      llm,
		prompts:  prompts,
		builder:  builder,
		rewriter: rewriter,
		quota:    limiter,
		quotaCap: quotaCap,
		audit:    audit,
		retryCfg: retryCfg,
		logger:   logger.With("component", "rag.ask_service"),
	}
}

// Request carries a single question against a workspace. History and
// ConversationID are supplied by the caller on every call: the core keeps
// no session state of its own.
type Request struct {
	WorkspaceID    uuid.UUID
	ConversationID uuid.UUID
	Query          string
	History        []rewrite.HistoryTurn
}

// Response is the single-shot answer to a Request.
type Response struct {
	ConversationID uuid.UUID
	Answer         string
	Sources        []rag.RankedChunk
	HybridUsed     bool
}

// Ask runs the full retrieval and answering pipeline and returns the
// complete answer in one call.
func (s *Service) Ask(ctx context.Context, actor rag.Actor, req Request) (Response, error) {
	ranked, hybridUsed, err := s.retrieve(ctx, actor, req)
	if err != nil {
		return Response{}, err
	}

	contextBlock, kept := s.builder.Build(ranked, s.cfg.MaxContextChars)
	conversationID := req.ConversationID
	if conversationID == uuid.Nil {
		conversationID = uuid.New()
	}

	if contextBlock == "" {
		return Response{ConversationID: conversationID, Answer: emptyContextFallback, Sources: kept, HybridUsed: hybridUsed}, nil
	}

	var answer string
	err = retry.Do(ctx, s.retryCfg, s.logger, func() error {
		var genErr error
		answer, genErr = s.llm.GenerateAnswer(ctx, req.Query, contextBlock)
		return genErr
	})
	if err != nil {
		return Response{}, apperrors.Wrap(apperrors.CodeLLMError, "answer generation failed", err)
	}

	s.recordUsage(ctx, actor, req.WorkspaceID, conversationID, len(kept), hybridUsed)
	return Response{ConversationID: conversationID, Answer: answer, Sources: kept, HybridUsed: hybridUsed}, nil
}

// AskStream runs the same pipeline but streams the answer as it is
// generated. Retry (retry.Do around GenerateStream) only ever covers the
// call that begins generation; once the first token event is emitted, no
// retry is attempted, since the partial prefix already delivered to the
// consumer is not idempotent.
func (s *Service) AskStream(ctx context.Context, actor rag.Actor, req Request) (<-chan rag.StreamEvent, error) {
	ranked, hybridUsed, err := s.retrieve(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	contextBlock, kept := s.builder.Build(ranked, s.cfg.MaxContextChars)
	conversationID := req.ConversationID
	if conversationID == uuid.Nil {
		conversationID = uuid.New()
	}

	emitter, out := stream.NewEmitter(len(kept) + stream.MaxEvents/100 + 8)

	if contextBlock == "" {
		go func() {
			emitter.Sources(kept)
			emitter.Token(emptyContextFallback)
			emitter.Done()
		}()
		return out, nil
	}

	var upstream <-chan rag.StreamEvent
	err = retry.Do(ctx, s.retryCfg, s.logger, func() error {
		var genErr error
		upstream, genErr = s.llm.GenerateStream(ctx, req.Query, contextBlock)
		return genErr
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeLLMError, "failed to begin streaming answer", err)
	}

	go func() {
		emitter.Sources(kept)
		var answer strings.Builder
		for ev := range upstream {
			switch ev.Type {
			case rag.StreamEventToken:
				answer.WriteString(ev.Token)
				if !emitter.Token(ev.Token) {
					return
				}
			case rag.StreamEventError:
				emitter.Error(ev.Err)
				return
			}
		}
		s.recordUsage(ctx, actor, req.WorkspaceID, conversationID, len(kept), hybridUsed)
		emitter.Done()
	}()

	return out, nil
}

// retrieve runs authorization, quota, query rewriting, search, injection
// filtering, and reranking, returning the chunks ready for context
// assembly. It is shared by Ask and AskStream so the two entry points can
// never drift on retrieval semantics.
func (s *Service) retrieve(ctx context.Context, actor rag.Actor, req Request) ([]rag.RankedChunk, bool, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, false, apperrors.Wrap(apperrors.CodeValidation, "query cannot be empty", nil)
	}
	if _, err := s.authz.ResolveForRead(ctx, req.WorkspaceID, actor); err != nil {
		return nil, false, err
	}
	if err := s.checkQuota(ctx, req.WorkspaceID); err != nil {
		return nil, false, err
	}

	searchQuery := query
	if s.cfg.EnableRewriter && s.rewriter != nil && rewrite.ShouldRewrite(query, req.History, s.cfg.RewriteMinHistory) {
		searchQuery = s.rewriter.Rewrite(ctx, query, req.History)
	}

	embedding, err := s.embedder.EmbedQuery(ctx, searchQuery)
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeEmbeddingError, "failed to embed query", err)
	}

	topK := s.cfg.MaxRetrieved
	if topK <= 0 {
		topK = 8
	}
	dense, err := s.chunks.SearchSimilar(ctx, req.WorkspaceID, embedding, topK)
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeStorageError, "vector search failed", err)
	}

	retrieved := dense
	hybridUsed := false
	if s.cfg.EnableHybridSearch {
		sparse, serr := s.chunks.SearchFullText(ctx, req.WorkspaceID, searchQuery, topK)
		if serr != nil {
			s.logger.Warn("full-text search failed, degrading to dense-only", "error", serr)
		} else {
			retrieved = hybrid.Fuse(dense, sparse, s.cfg.HybridRRFK, topK)
			hybridUsed = true
		}
	}

	retrieved = injection.Apply(s.cfg.InjectionFilterMode, retrieved)

	if s.cfg.EnableReranker {
		switch s.cfg.RerankMode {
		case rag.RerankHeuristic:
			retrieved = rerank.Heuristic(searchQuery, retrieved, s.cfg.RerankTopK)
		case rag.RerankLLM:
			retrieved = rerank.LLM(ctx, s.llm, searchQuery, retrieved, s.cfg.RerankTopK, s.logger)
		}
	}

	ranked := make([]rag.RankedChunk, len(retrieved))
	for i, rc := range retrieved {
		ranked[i] = rag.RankedChunk{RetrievedChunk: rc}
	}
	return ranked, hybridUsed, nil
}

func (s *Service) checkQuota(ctx context.Context, workspaceID uuid.UUID) error {
	if s.quota == nil || s.quotaCap <= 0 {
		return nil
	}
	allowed, _, retryAfterSeconds, err := s.quota.Check(ctx, quotaScopeWorkspace, workspaceID.String(), quotaResourceMessages, s.quotaCap)
	if err != nil {
		s.logger.Warn("quota check failed, allowing request", "error", err)
		return nil
	}
	if !allowed {
		return apperrors.Wrap(apperrors.CodeServiceUnavailable, fmt.Sprintf("message quota exceeded for this workspace, retry after %ds", retryAfterSeconds), nil)
	}
	return nil
}

func (s *Service) recordUsage(ctx context.Context, actor rag.Actor, workspaceID, conversationID uuid.UUID, sourceCount int, hybridUsed bool) {
	if s.quota != nil && s.quotaCap > 0 {
		if err := s.quota.Record(ctx, quotaScopeWorkspace, workspaceID.String(), quotaResourceMessages, 1); err != nil {
			s.logger.Warn("quota record failed", "error", err)
		}
	}
	s.audit.Record(ctx, rag.AuditEvent{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		ActorUserID: actor.UserID,
		Action:      "workspace.ask",
		Detail: map[string]any{
			"conversation_id": conversationID,
			"source_count":    sourceCount,
			"hybrid_used":     hybridUsed,
		},
		CreatedAt: time.Now(),
	})
}

// RewritePromptBuilder adapts a PromptLoader into the prompt-building
// callback rewrite.New expects, formatting history into the {history,
// query} kwargs the rewrite_query capability template declares as
// required.
func RewritePromptBuilder(loader rag.PromptLoader, version, lang string) func(ctx context.Context, query string, history []rewrite.HistoryTurn) (string, error) {
	return func(ctx context.Context, query string, history []rewrite.HistoryTurn) (string, error) {
		var sb strings.Builder
		for _, turn := range history {
			sb.WriteString(fmt.Sprintf("Q: %s\nA: %s\n", turn.Query, turn.Answer))
		}
		return loader.Format(ctx, "rewrite_query", version, lang, map[string]string{"history": sb.String(), "query": query})
	}
}
