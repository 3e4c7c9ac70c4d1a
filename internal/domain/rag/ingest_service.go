package rag

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/saintwyss/rag-corp-sub003/pkg/errors"
)

const (
	maxErrorMessageLen = 500
	defaultMimeType    = "text/plain"
)

// IngestService orchestrates the document ingestion pipeline: upload,
// background processing, reprocessing, cancellation, and direct text
// ingestion. It generalizes the teacher's uploadask.Service.Upload and
// ProcessDocument into the full CAS-guarded state machine.
type IngestService struct {
	cfg      Config
	authz    WorkspaceAuthorizer
	docs     DocumentRepository
	chunks   ChunkRepository
	storage  FileStorage
	embedder EmbeddingService
	chunker  Chunker
	queue    DocumentProcessingQueue
	injector InjectionScorer
	audit    AuditRecorder
	logger   *slog.Logger
}

// WorkspaceAuthorizer is the subset of authz.Resolver the ingestion
// pipeline depends on, kept as an interface here to avoid an import cycle
// between the rag package and its authz subpackage.
type WorkspaceAuthorizer interface {
	ResolveForWrite(ctx context.Context, workspaceID uuid.UUID, actor Actor) (Workspace, error)
	ResolveForRead(ctx context.Context, workspaceID uuid.UUID, actor Actor) (Workspace, error)
}

// Actor is the authenticated (or anonymous) caller of a domain operation.
// The authz package aliases this type rather than declaring its own, so
// every layer shares one Actor without an import cycle.
type Actor struct {
	UserID        int64
	Role          string
	Authenticated bool
}

// InjectionScorer flags chunks likely to contain prompt-injection content
// at ingest time, so the retrieval-time filter can act on persisted
// metadata instead of rescoring on every query.
type InjectionScorer interface {
	Score(content string) (risk bool, reason string)
}

// NewIngestService constructs the service.
func NewIngestService(cfg Config, authz WorkspaceAuthorizer, docs DocumentRepository, chunks ChunkRepository, storage FileStorage, embedder EmbeddingService, chunker Chunker, queue DocumentProcessingQueue, injector InjectionScorer, audit AuditRecorder, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		cfg:      cfg,
		authz:    authz,
		docs:     docs,
		chunks:   chunks,
		storage:  storage,
		embedder: embedder,
		chunker:  chunker,
		queue:    queue,
		injector: injector,
		audit:    audit,
		logger:   logger.With("component", "rag.ingest_service"),
	}
}

// UploadRequest captures a single-file submission.
type UploadRequest struct {
	FileName string
	Title    string
	MimeType string
	Content  []byte
}

// UploadDocument stores the blob, persists a PENDING document row, and
// enqueues background processing. Upload happens before the row is
// persisted (mirrors the teacher's ordering) so a crash between the two
// never leaves a document pointing at a nonexistent blob.
func (s *IngestService) UploadDocument(ctx context.Context, workspaceID uuid.UUID, actor Actor, req UploadRequest) (Document, error) {
	if s.storage == nil || s.queue == nil {
		return Document{}, apperrors.Wrap(apperrors.CodeServiceUnavailable, "ingestion pipeline not configured", nil)
	}
	if _, err := s.authz.ResolveForWrite(ctx, workspaceID, actor); err != nil {
		return Document{}, err
	}
	if len(req.Content) == 0 {
		return Document{}, apperrors.Wrap(apperrors.CodeValidation, "file content cannot be empty", nil)
	}
	if s.cfg.MaxFileBytes > 0 && int64(len(req.Content)) > s.cfg.MaxFileBytes {
		return Document{}, apperrors.Wrap(apperrors.CodeValidation, "file exceeds maximum allowed size", nil)
	}
	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		fileName = "document.txt"
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = fileName
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	id := uuid.New()
	storageKey := fmt.Sprintf("documents/%s/%s", id, sanitizeFileName(fileName))
	if err := s.storage.Upload(ctx, storageKey, req.Content, mimeType); err != nil {
		return Document{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to store uploaded file", err)
	}

	now := time.Now()
	doc := Document{
		ID:               id,
		WorkspaceID:      workspaceID,
		Title:            title,
		FileName:         fileName,
		MimeType:         mimeType,
		StorageKey:       storageKey,
		Status:           DocumentPending,
		UploadedByUserID: actor.UserID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	doc, err := s.docs.Create(ctx, doc)
	if err != nil {
		_ = s.storage.Delete(ctx, storageKey)
		return Document{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to persist document", err)
	}

	if _, err := s.queue.Enqueue(ctx, doc.ID, workspaceID); err != nil {
		errMsg := "enqueue failed"
		_, _ = s.docs.TransitionStatus(ctx, workspaceID, doc.ID, []DocumentStatus{DocumentPending}, DocumentFailed, &errMsg)
		_ = s.storage.Delete(ctx, storageKey)
		return Document{}, apperrors.Wrap(apperrors.CodeServiceUnavailable, "failed to enqueue processing", err)
	}

	s.audit.Record(ctx, AuditEvent{ID: uuid.New(), WorkspaceID: workspaceID, ActorUserID: actor.UserID, Action: "document.upload", Detail: map[string]any{"document_id": doc.ID}, CreatedAt: now})
	return doc, nil
}

// IngestText ingests submitted text directly, skipping the storage/queue
// hop: the document and its chunks are persisted synchronously.
func (s *IngestService) IngestText(ctx context.Context, workspaceID uuid.UUID, actor Actor, title, text string) (Document, error) {
	if _, err := s.authz.ResolveForWrite(ctx, workspaceID, actor); err != nil {
		return Document{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Document{}, apperrors.Wrap(apperrors.CodeValidation, "text cannot be empty", nil)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "untitled"
	}

	now := time.Now()
	doc := Document{
		ID:               uuid.New(),
		WorkspaceID:      workspaceID,
		Title:            title,
		FileName:         "",
		MimeType:         defaultMimeType,
		Status:           DocumentPending,
		UploadedByUserID: actor.UserID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	doc, err := s.docs.Create(ctx, doc)
	if err != nil {
		return Document{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to persist document", err)
	}

	chunks, err := s.buildChunks(ctx, doc, text)
	if err != nil {
		errMsg := truncateError(err.Error())
		_, _ = s.docs.TransitionStatus(ctx, workspaceID, doc.ID, []DocumentStatus{DocumentPending}, DocumentFailed, &errMsg)
		return Document{}, err
	}
	if len(chunks) > 0 {
		if err := s.chunks.ReplaceChunks(ctx, workspaceID, doc.ID, chunks); err != nil {
			errMsg := truncateError(err.Error())
			_, _ = s.docs.TransitionStatus(ctx, workspaceID, doc.ID, []DocumentStatus{DocumentPending}, DocumentFailed, &errMsg)
			return Document{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to persist chunks", err)
		}
	}
	if _, err := s.docs.TransitionStatus(ctx, workspaceID, doc.ID, []DocumentStatus{DocumentPending}, DocumentReady, nil); err != nil {
		return Document{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to finalize document", err)
	}
	doc.Status = DocumentReady
	s.audit.Record(ctx, AuditEvent{ID: uuid.New(), WorkspaceID: workspaceID, ActorUserID: actor.UserID, Action: "document.ingest_text", Detail: map[string]any{"document_id": doc.ID}, CreatedAt: now})
	return doc, nil
}

// ProcessDocumentJob is the queue handler generalizing the teacher's
// ProcessDocument: CAS from PENDING or FAILED into PROCESSING,
// extract/chunk/embed, then CAS into READY or FAILED. A document already
// READY or PROCESSING, or one another worker claimed first, returns
// without further work; a FAILED document is processed again.
func (s *IngestService) ProcessDocumentJob(ctx context.Context, workspaceID, documentID uuid.UUID) error {
	s.logger.Info("process_document start", "document_id", documentID, "workspace_id", workspaceID)
	doc, found, err := s.docs.Get(ctx, workspaceID, documentID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to load document", err)
	}
	if !found {
		return apperrors.Wrap(apperrors.CodeNotFound, "document not found", nil)
	}
	if doc.Status == DocumentReady || doc.Status == DocumentProcessing {
		return nil
	}

	applied, err := s.docs.TransitionStatus(ctx, workspaceID, documentID, []DocumentStatus{DocumentPending, DocumentFailed}, DocumentProcessing, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to transition to processing", err)
	}
	if !applied {
		// Another worker won the race; this run has no further work to do.
		return nil
	}

	if err := s.process(ctx, workspaceID, doc); err != nil {
		errMsg := truncateError(err.Error())
		_, _ = s.docs.TransitionStatus(ctx, workspaceID, documentID, []DocumentStatus{DocumentProcessing}, DocumentFailed, &errMsg)
		return err
	}

	if _, err := s.docs.TransitionStatus(ctx, workspaceID, documentID, []DocumentStatus{DocumentProcessing}, DocumentReady, nil); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to finalize document", err)
	}
	s.logger.Info("process_document complete", "document_id", documentID)
	return nil
}

func (s *IngestService) process(ctx context.Context, workspaceID uuid.UUID, doc Document) error {
	if s.storage == nil {
		return apperrors.Wrap(apperrors.CodeServiceUnavailable, "storage not configured", nil)
	}
	if doc.StorageKey == "" || doc.MimeType == "" {
		return apperrors.Wrap(apperrors.CodeValidation, "document missing storage metadata", nil)
	}
	raw, err := s.storage.Download(ctx, doc.StorageKey)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to download document", err)
	}
	text := extractText(doc.MimeType, raw)

	chunks, err := s.buildChunks(ctx, doc, text)
	if err != nil {
		return err
	}
	if err := s.chunks.ReplaceChunks(ctx, workspaceID, doc.ID, chunks); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to persist chunks", err)
	}
	return nil
}

// buildChunks runs the chunk/embed/score span shared by ProcessDocumentJob
// and IngestText.
func (s *IngestService) buildChunks(ctx context.Context, doc Document, text string) ([]Chunk, error) {
	candidates := s.chunker.Chunk(text)
	if len(candidates) == 0 {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "no content to process", nil)
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Content
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeEmbeddingError, "failed to embed chunks", err)
	}
	if len(embeddings) != len(candidates) {
		return nil, apperrors.Wrap(apperrors.CodeEmbeddingError, "embedding count mismatch", nil)
	}
	if s.cfg.VectorDim > 0 {
		for i, emb := range embeddings {
			if len(emb) != s.cfg.VectorDim {
				return nil, apperrors.Wrap(apperrors.CodeEmbeddingError, fmt.Sprintf("embedding %d has dimension %d, expected %d", i, len(emb), s.cfg.VectorDim), nil)
			}
		}
	}

	now := time.Now()
	chunks := make([]Chunk, len(candidates))
	for i, c := range candidates {
		embedding := make([]float32, len(embeddings[i]))
		copy(embedding, embeddings[i])
		metadata := map[string]any{}
		if s.injector != nil {
			if risk, reason := s.injector.Score(c.Content); risk {
				metadata["injection_risk"] = true
				metadata["injection_reason"] = reason
			}
		}
		chunks[i] = Chunk{
			ID:          uuid.New(),
			DocumentID:  doc.ID,
			WorkspaceID: doc.WorkspaceID,
			ChunkIndex:  c.ChunkIndex,
			Content:     c.Content,
			TokenCount:  c.TokenCount,
			Embedding:   embedding,
			Metadata:    metadata,
			CreatedAt:   now,
		}
	}
	return chunks, nil
}

// ReprocessDocument resets a document to PENDING and re-enqueues it.
// Rejected while a prior run is still PROCESSING.
func (s *IngestService) ReprocessDocument(ctx context.Context, workspaceID, documentID uuid.UUID, actor Actor) error {
	if _, err := s.authz.ResolveForWrite(ctx, workspaceID, actor); err != nil {
		return err
	}
	doc, found, err := s.docs.Get(ctx, workspaceID, documentID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to load document", err)
	}
	if !found {
		return apperrors.Wrap(apperrors.CodeNotFound, "document not found", nil)
	}
	if doc.Status == DocumentProcessing {
		return apperrors.Wrap(apperrors.CodeConflict, "document is currently processing", nil)
	}
	if _, err := s.docs.TransitionStatus(ctx, workspaceID, documentID, []DocumentStatus{DocumentReady, DocumentFailed}, DocumentPending, nil); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to reset document status", err)
	}
	if _, err := s.queue.Enqueue(ctx, documentID, workspaceID); err != nil {
		errMsg := "re-enqueue failed"
		_, _ = s.docs.TransitionStatus(ctx, workspaceID, documentID, []DocumentStatus{DocumentPending}, DocumentFailed, &errMsg)
		return apperrors.Wrap(apperrors.CodeServiceUnavailable, "failed to enqueue reprocessing", err)
	}
	return nil
}

// CancelDocument aborts a document stuck in PROCESSING, recording the
// operator-supplied reason.
func (s *IngestService) CancelDocument(ctx context.Context, workspaceID, documentID uuid.UUID, actor Actor, reason string) error {
	if _, err := s.authz.ResolveForWrite(ctx, workspaceID, actor); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "cancelled by operator"
	}
	applied, err := s.docs.TransitionStatus(ctx, workspaceID, documentID, []DocumentStatus{DocumentProcessing}, DocumentFailed, &reason)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to cancel document", err)
	}
	if !applied {
		return apperrors.Wrap(apperrors.CodeConflict, "document is not currently processing", nil)
	}
	return nil
}


func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" {
		return "file"
	}
	return name
}

func truncateError(msg string) string {
	if len(msg) <= maxErrorMessageLen {
		return msg
	}
	return msg[:maxErrorMessageLen] + "..."
}

var htmlTagPattern = regexp.MustCompile(`(?s)<[^>]*>`)

// extractText strips markup for simple HTML/Markdown mime types; anything
// else (including text/plain) passes through unchanged.
func extractText(mimeType string, raw []byte) string {
	content := string(raw)
	switch {
	case strings.Contains(mimeType, "html"):
		stripped := htmlTagPattern.ReplaceAllString(content, " ")
		return html.UnescapeString(stripped)
	default:
		return content
	}
}
