//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/saintwyss/rag-corp-sub003/internal/bootstrap"
	"github.com/saintwyss/rag-corp-sub003/internal/infra/config"
	httpiface "github.com/saintwyss/rag-corp-sub003/internal/interface/rag"
	"github.com/saintwyss/rag-corp-sub003/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideMetricsCollectors,
		provideChatGPTClient,
		provideValkeyClient,
		provideWorkspaceRepository,
		provideDocumentRepository,
		provideChunkRepository,
		provideAuthRepository,
		provideAuditRecorder,
		provideRAGStorage,
		provideRAGQueue,
		provideEmbeddingCache,
		provideEmbeddingService,
		provideChunker,
		provideInjectionScorer,
		provideContextBuilder,
		providePromptLoader,
		provideLLMService,
		provideRewriter,
		provideRetryConfig,
		provideQuotaLimiter,
		provideAuthzResolver,
		provideWorkspaceService,
		provideIngestService,
		provideAskService,
		provideAuthService,
		provideHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
