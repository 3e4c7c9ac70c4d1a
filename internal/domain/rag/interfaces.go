package rag

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Storage errors are classified so callers can branch without string
// matching on provider-specific error text.
var (
	ErrStorageConfiguration = errors.New("storage: not configured")
	ErrStorageNotFound      = errors.New("storage: object not found")
	ErrStoragePermission    = errors.New("storage: permission denied")
	ErrStorageUnavailable   = errors.New("storage: unavailable")
)

// EmbeddingService produces vector embeddings for queries and documents.
// The two methods are split so callers may select distinct provider task
// types (retrieval_query vs retrieval_document).
type EmbeddingService interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// StreamEventType enumerates the streamed answer contract's event kinds.
type StreamEventType string

const (
	StreamEventSources StreamEventType = "sources"
	StreamEventToken   StreamEventType = "token"
	StreamEventDone    StreamEventType = "done"
	StreamEventError   StreamEventType = "error"
)

// StreamEvent is one frame of a streamed answer.
type StreamEvent struct {
	Type    StreamEventType
	Token   string
	Sources []RankedChunk
	Err     error
}

// LLMService abstracts the chat/completion providers used for answering,
// rewriting, and reranking.
type LLMService interface {
	GenerateAnswer(ctx context.Context, query, contextBlock string) (string, error)
	GenerateText(ctx context.Context, prompt string, maxTokens int) (string, error)
	GenerateStream(ctx context.Context, query, contextBlock string) (<-chan StreamEvent, error)
}

// FileStorage abstracts the object store backing uploaded documents.
type FileStorage interface {
	Upload(ctx context.Context, key string, content []byte, mimeType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Presign(ctx context.Context, key string, ttl time.Duration, suggestedFileName string) (string, error)
}

// DocumentProcessingQueue hands ingestion jobs to background workers.
type DocumentProcessingQueue interface {
	Enqueue(ctx context.Context, documentID, workspaceID uuid.UUID) (jobID string, err error)
}

// Chunker splits extracted document text into retrievable candidates.
type Chunker interface {
	Chunk(text string) []ChunkCandidate
}

// WorkspaceRepository persists workspace metadata and ACLs.
type WorkspaceRepository interface {
	Create(ctx context.Context, ws Workspace) (Workspace, error)
	Get(ctx context.Context, id uuid.UUID) (Workspace, bool, error)
	Archive(ctx context.Context, id uuid.UUID) error
	Update(ctx context.Context, ws Workspace) (Workspace, error)
}

// DocumentRepository persists documents and their CAS-guarded lifecycle.
type DocumentRepository interface {
	Create(ctx context.Context, doc Document) (Document, error)
	Get(ctx context.Context, workspaceID, id uuid.UUID) (Document, bool, error)
	List(ctx context.Context, workspaceID uuid.UUID, filter DocumentFilter) ([]Document, error)
	// TransitionStatus performs a compare-and-set: the update only applies
	// if the document's current status is one of allowedFrom. It reports
	// whether the transition was applied.
	TransitionStatus(ctx context.Context, workspaceID, id uuid.UUID, allowedFrom []DocumentStatus, to DocumentStatus, errMessage *string) (applied bool, err error)
	SoftDelete(ctx context.Context, workspaceID, id uuid.UUID) error
}

// ChunkRepository persists chunks and performs similarity/hybrid search.
type ChunkRepository interface {
	// ReplaceChunks atomically deletes any existing chunks for the
	// document and inserts the replacement set.
	ReplaceChunks(ctx context.Context, workspaceID, documentID uuid.UUID, chunks []Chunk) error
	DeleteByDocument(ctx context.Context, workspaceID, documentID uuid.UUID) error
	SearchSimilar(ctx context.Context, workspaceID uuid.UUID, embedding []float32, topK int) ([]RetrievedChunk, error)
	SearchFullText(ctx context.Context, workspaceID uuid.UUID, query string, topK int) ([]RetrievedChunk, error)
}

// EmbeddingCache is a get/set decorator cache for computed embeddings.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// PromptLoader composes a versioned, language-specific prompt template with
// a fixed security policy preamble.
type PromptLoader interface {
	Format(ctx context.Context, capability, version, lang string, kwargs map[string]string) (string, error)
}

// ContextBuilder assembles a citation-tagged context block from ranked
// chunks, bounded by a maximum size.
type ContextBuilder interface {
	Build(chunks []RankedChunk, maxChars int) (string, []RankedChunk)
}

// AuditRecorder appends a best-effort audit trail entry. Failures are
// swallowed by implementations; callers never need to handle an error
// path for a dropped audit event.
type AuditRecorder interface {
	Record(ctx context.Context, event AuditEvent)
}
