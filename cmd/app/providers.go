package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valkey-io/valkey-go"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/auth"
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag/ask"
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag/authz"
	ragcontext "github.com/saintwyss/rag-corp-sub003/internal/domain/rag/context"
	domembedcache "github.com/saintwyss/rag-corp-sub003/internal/domain/rag/embedcache"
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag/injection"
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag/prompt"
	domquota "github.com/saintwyss/rag-corp-sub003/internal/domain/rag/quota"
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag/rewrite"
	"github.com/saintwyss/rag-corp-sub003/internal/infra/authrepo"
	"github.com/saintwyss/rag-corp-sub003/internal/infra/config"
	httpiface "github.com/saintwyss/rag-corp-sub003/internal/interface/rag"
	"github.com/saintwyss/rag-corp-sub003/internal/infra/llm/chatgpt"
	"github.com/saintwyss/rag-corp-sub003/internal/infra/rag/audit"
	"github.com/saintwyss/rag-corp-sub003/internal/infra/rag/chunker"
	infraembedcache "github.com/saintwyss/rag-corp-sub003/internal/infra/rag/embedcache"
	"github.com/saintwyss/rag-corp-sub003/internal/infra/rag/embedder"
	"github.com/saintwyss/rag-corp-sub003/internal/infra/rag/llm"
	"github.com/saintwyss/rag-corp-sub003/internal/infra/rag/queue"
	"github.com/saintwyss/rag-corp-sub003/internal/infra/rag/repo"
	infraquota "github.com/saintwyss/rag-corp-sub003/internal/infra/rag/quota"
	"github.com/saintwyss/rag-corp-sub003/internal/infra/rag/retry"
	"github.com/saintwyss/rag-corp-sub003/internal/infra/rag/storage"
	"github.com/saintwyss/rag-corp-sub003/pkg/metrics"
	"github.com/saintwyss/rag-corp-sub003/prompts"
)

func provideRAGConfig(cfg *config.Config) rag.Config {
	return rag.Config{
		VectorDim:                cfg.RAG.VectorDim,
		MaxFileBytes:             int64(cfg.RAG.MaxFileMB) * 1024 * 1024,
		MaxRetrieved:             cfg.RAG.MaxRetrieved,
		MaxContextChars:          cfg.RAG.MaxContextChars,
		PromptVersion:            cfg.RAG.PromptVersion,
		PromptLanguage:           cfg.RAG.PromptLanguage,
		EnableHybridSearch:       cfg.RAG.EnableHybridSearch,
		HybridRRFK:               cfg.RAG.HybridRRFK,
		EnableRewriter:           cfg.RAG.EnableRewriter,
		RewriteMinHistory:        cfg.RAG.RewriteMinHistory,
		EnableReranker:           cfg.RAG.EnableReranker,
		RerankMode:               rag.RerankMode(cfg.RAG.RerankMode),
		RerankTopK:               cfg.RAG.RerankTopK,
		InjectionFilterMode:      rag.InjectionFilterMode(cfg.RAG.InjectionFilterMode),
		InjectionFilterThreshold: cfg.RAG.InjectionFilterThreshold,
		PresignTTL:               cfg.RAG.PresignTTL,
	}
}

func provideAuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		Secret:          cfg.Auth.JWTSecret,
		TokenTTL:        cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
	}
}

func provideChatGPTClient(cfg *config.Config) (*chatgpt.Client, error) {
	return chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
}

func provideMetricsCollectors() *metrics.Collectors {
	return metrics.NewCollectors(prometheus.DefaultRegisterer)
}

// provideLLMService selects the answering/rewriting provider by
// cfg.LLM.Provider, falling back to the deterministic echo provider when
// no credential is configured so the service still boots in development.
func provideLLMService(cfg *config.Config, client *chatgpt.Client) rag.LLMService {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "anthropic":
		if cfg.LLM.APIKey == "" {
			return llm.EchoLLM{}
		}
		return llm.NewAnthropicLLM(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens)
	case "chatgpt":
		if cfg.LLM.APIKey == "" {
			return llm.EchoLLM{}
		}
		return llm.NewChatGPTLLM(client, cfg.LLM.Model, cfg.LLM.Temperature)
	default:
		return llm.EchoLLM{}
	}
}

// provideEmbeddingService selects the embedding provider the same way,
// then wraps it in the domain cache decorator so repeated text never pays
// for a second provider round trip.
func provideEmbeddingService(cfg *config.Config, client *chatgpt.Client, cache rag.EmbeddingCache, logger *slog.Logger) rag.EmbeddingService {
	var inner rag.EmbeddingService
	if cfg.LLM.Provider == "chatgpt" && cfg.LLM.APIKey != "" {
		inner = embedder.NewChatGPTEmbedder(client, cfg.LLM.EmbeddingModel, logger)
	} else {
		inner = embedder.NewDeterministicEmbedder(cfg.RAG.VectorDim)
	}
	return domembedcache.New(inner, cache, cfg.LLM.EmbeddingModel, logger)
}

func provideEmbeddingCache(cfg *config.Config, client valkey.Client) rag.EmbeddingCache {
	if cfg.RAG.Redis.Enabled && client != nil {
		return infraembedcache.NewValkeyCache(client, "rag:embedcache", 24*time.Hour)
	}
	return infraembedcache.NewMemoryCache()
}

func provideChunker(cfg *config.Config) rag.Chunker {
	return chunker.NewCharChunker(900, 120)
}

func provideInjectionScorer() rag.InjectionScorer {
	return injection.NewScorer()
}

func provideContextBuilder() rag.ContextBuilder {
	counter, err := ragcontext.NewTiktokenCounter()
	if err != nil {
		return ragcontext.NewBuilder(charCounter{})
	}
	return ragcontext.NewBuilder(counter)
}

// charCounter is a crude fallback TokenCounter used only if tiktoken's
// encoding table fails to load, so context assembly never panics on a
// missing codec.
type charCounter struct{}

func (charCounter) Count(text string) int { return len(text) / 4 }

func providePromptLoader() rag.PromptLoader {
	return prompt.NewLoader(prompts.FS)
}

func provideRewriter(llmSvc rag.LLMService, loader rag.PromptLoader, cfg *config.Config, logger *slog.Logger) *rewrite.Rewriter {
	return rewrite.New(llmSvc, ask.RewritePromptBuilder(loader, cfg.RAG.PromptVersion, cfg.RAG.PromptLanguage), logger)
}

func provideRetryConfig(collectors *metrics.Collectors) retry.Config {
	cfg := retry.DefaultConfig()
	cfg.OnRetry = func(attempt int) { collectors.RetryAttempts.Inc() }
	return cfg
}

// --- Postgres pools (lazy, shared) ---

var (
	ragPoolOnce sync.Once
	ragPool     *pgxpool.Pool
)

func ragPostgresPool(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	ragPoolOnce.Do(func() {
		dsn := strings.TrimSpace(cfg.RAG.Postgres.DSN)
		if dsn == "" {
			logger.Info("rag postgres dsn not set, using memory repositories")
			return
		}
		poolConfig, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			logger.Error("invalid rag postgres dsn, using memory repositories", "error", err)
			return
		}
		registerPgVector(poolConfig, logger)
		if cfg.RAG.Postgres.MaxConns > 0 {
			poolConfig.MaxConns = cfg.RAG.Postgres.MaxConns
		}
		if cfg.RAG.Postgres.MinConns > 0 {
			poolConfig.MinConns = cfg.RAG.Postgres.MinConns
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			logger.Error("failed to initialize rag postgres pool, using memory repositories", "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("rag postgres ping failed, using memory repositories", "error", err)
			pool.Close()
			return
		}
		logger.Info("rag postgres repository enabled")
		ragPool = pool
	})
	return ragPool
}

var (
	authPoolOnce sync.Once
	authPool     *pgxpool.Pool
)

func authPostgresPool(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	authPoolOnce.Do(func() {
		dsn := strings.TrimSpace(cfg.Auth.Postgres.DSN)
		if dsn == "" {
			logger.Info("auth postgres dsn not set, using memory repository")
			return
		}
		poolConfig, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			logger.Error("invalid auth postgres dsn, using memory repository", "error", err)
			return
		}
		if cfg.Auth.Postgres.MaxConns > 0 {
			poolConfig.MaxConns = cfg.Auth.Postgres.MaxConns
		}
		if cfg.Auth.Postgres.MinConns > 0 {
			poolConfig.MinConns = cfg.Auth.Postgres.MinConns
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			logger.Error("failed to initialize auth postgres pool, using memory repository", "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("auth postgres ping failed, using memory repository", "error", err)
			pool.Close()
			return
		}
		logger.Info("auth postgres repository enabled")
		authPool = pool
	})
	return authPool
}

func registerPgVector(poolConfig *pgxpool.Config, logger *slog.Logger) {
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		var oid uint32
		if err := conn.QueryRow(ctx, "SELECT 'vector'::regtype::oid").Scan(&oid); err != nil {
			logger.Error("failed to lookup pgvector oid", "error", err)
			return err
		}
		conn.TypeMap().RegisterType(&pgtype.Type{
			Name:  "vector",
			OID:   oid,
			Codec: pgtype.TextCodec{},
		})
		return nil
	}
}

// --- Repositories ---

func provideWorkspaceRepository(cfg *config.Config, logger *slog.Logger) rag.WorkspaceRepository {
	if pool := ragPostgresPool(cfg, logger); pool != nil {
		return repo.NewPostgresWorkspaceRepository(pool)
	}
	return repo.NewMemoryWorkspaceRepository()
}

func provideDocumentRepository(cfg *config.Config, logger *slog.Logger) rag.DocumentRepository {
	if pool := ragPostgresPool(cfg, logger); pool != nil {
		return repo.NewPostgresDocumentRepository(pool)
	}
	return repo.NewMemoryDocumentRepository()
}

func provideChunkRepository(cfg *config.Config, logger *slog.Logger, docs rag.DocumentRepository, workspaces rag.WorkspaceRepository) rag.ChunkRepository {
	if pool := ragPostgresPool(cfg, logger); pool != nil {
		return repo.NewPostgresChunkRepository(pool)
	}
	return repo.NewMemoryChunkRepository(docs, workspaces)
}

func provideAuthRepository(cfg *config.Config, logger *slog.Logger) auth.Repository {
	if pool := authPostgresPool(cfg, logger); pool != nil {
		return authrepo.NewPostgresRepository(pool)
	}
	return authrepo.NewMemoryRepository()
}

func provideAuditRecorder(cfg *config.Config, logger *slog.Logger) rag.AuditRecorder {
	if pool := ragPostgresPool(cfg, logger); pool != nil {
		return audit.NewPostgresRecorder(pool, logger)
	}
	return audit.NewMemoryRecorder()
}

// --- Storage / queue / valkey client ---

func provideRAGStorage(cfg *config.Config, logger *slog.Logger) rag.FileStorage {
	st := cfg.RAG.Storage
	if st.Endpoint == "" || st.AccessKey == "" || st.SecretKey == "" || st.Bucket == "" {
		logger.Info("rag object storage not configured, using memory storage")
		return storage.NewMemoryStorage()
	}
	r2, err := storage.NewR2Storage(st.Endpoint, st.AccessKey, st.SecretKey, st.Bucket, st.Region, logger)
	if err != nil {
		logger.Error("failed to initialize r2 storage, using memory storage", "error", err)
		return storage.NewMemoryStorage()
	}
	return r2
}

var (
	valkeyClientOnce sync.Once
	valkeyClient     valkey.Client
)

func provideValkeyClient(cfg *config.Config, logger *slog.Logger) valkey.Client {
	valkeyClientOnce.Do(func() {
		if !cfg.RAG.Redis.Enabled || strings.TrimSpace(cfg.RAG.Redis.Addr) == "" {
			return
		}
		opt, err := buildValkeyOptions(cfg.RAG.Redis.Addr)
		if err != nil {
			logger.Error("invalid valkey address, caching/queueing disabled", "error", err)
			return
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to connect to valkey, caching/queueing disabled", "error", err)
			return
		}
		valkeyClient = client
	})
	return valkeyClient
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	addr = strings.TrimSpace(addr)
	if strings.Contains(addr, "://") {
		opt, err = valkey.ParseURL(addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}

// provideRAGQueue wires the immediate in-process queue by default, or the
// Valkey-backed worker queue when cfg.RAG.Worker and Redis are both
// enabled. Its handler is set by provideIngestService.
func provideRAGQueue(cfg *config.Config, client valkey.Client, logger *slog.Logger) queue.HandlerQueue {
	if cfg.RAG.Worker.Enabled && cfg.RAG.Redis.Enabled && client != nil {
		return queue.NewValkeyQueue(client, "rag:ingest", logger)
	}
	return queue.NewImmediateQueue()
}

func provideQuotaLimiter(cfg *config.Config, client valkey.Client) domquota.Limiter {
	if cfg.RAG.Redis.Enabled && client != nil {
		return infraquota.NewValkeyLimiter(client, "rag:quota")
	}
	return domquota.NewMemoryLimiter(nil)
}

// --- Domain services ---

func provideAuthzResolver(workspaces rag.WorkspaceRepository) rag.WorkspaceAuthorizer {
	return authz.NewResolver(workspaces)
}

func provideWorkspaceService(workspaces rag.WorkspaceRepository) *rag.WorkspaceService {
	return rag.NewWorkspaceService(workspaces)
}

func provideIngestService(
	cfg *config.Config,
	authorizer rag.WorkspaceAuthorizer,
	docs rag.DocumentRepository,
	chunks rag.ChunkRepository,
	fileStorage rag.FileStorage,
	embeddingSvc rag.EmbeddingService,
	ch rag.Chunker,
	q queue.HandlerQueue,
	scorer rag.InjectionScorer,
	auditRecorder rag.AuditRecorder,
	logger *slog.Logger,
) *rag.IngestService {
	svc := rag.NewIngestService(provideRAGConfig(cfg), authorizer, docs, chunks, fileStorage, embeddingSvc, ch, q, scorer, auditRecorder, logger)
	q.SetHandler(func(ctx context.Context, documentID, workspaceID uuid.UUID) {
		if err := svc.ProcessDocumentJob(ctx, workspaceID, documentID); err != nil {
			logger.Warn("process_document_job failed", "document_id", documentID, "error", err)
		}
	})
	return svc
}

func provideAskService(
	cfg *config.Config,
	authorizer rag.WorkspaceAuthorizer,
	chunks rag.ChunkRepository,
	embeddingSvc rag.EmbeddingService,
	llmSvc rag.LLMService,
	loader rag.PromptLoader,
	builder rag.ContextBuilder,
	rewriter *rewrite.Rewriter,
	limiter domquota.Limiter,
	auditRecorder rag.AuditRecorder,
	retryCfg retry.Config,
	logger *slog.Logger,
) *ask.Service {
	return ask.NewService(provideRAGConfig(cfg), authorizer, chunks, embeddingSvc, llmSvc, loader, builder, rewriter, limiter, cfg.Quota.MessagesPerHour, auditRecorder, retryCfg, logger)
}

func provideAuthService(cfg *config.Config, repository auth.Repository, logger *slog.Logger) auth.Service {
	return auth.NewService(provideAuthConfig(cfg), repository, logger)
}

func provideHandler(authSvc auth.Service, workspaces *rag.WorkspaceService, ingest *rag.IngestService, askSvc *ask.Service, logger *slog.Logger) *httpiface.Handler {
	return httpiface.NewHandler(authSvc, workspaces, ingest, askSvc, logger)
}
