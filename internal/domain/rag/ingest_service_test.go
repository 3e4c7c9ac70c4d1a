package rag

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeAuthorizer struct {
	ws       Workspace
	readErr  error
	writeErr error
}

func (f fakeAuthorizer) ResolveForRead(context.Context, uuid.UUID, Actor) (Workspace, error) {
	return f.ws, f.readErr
}

func (f fakeAuthorizer) ResolveForWrite(context.Context, uuid.UUID, Actor) (Workspace, error) {
	return f.ws, f.writeErr
}

type fakeDocRepo struct {
	docs map[uuid.UUID]Document
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: make(map[uuid.UUID]Document)}
}

func (r *fakeDocRepo) Create(_ context.Context, doc Document) (Document, error) {
	r.docs[doc.ID] = doc
	return doc, nil
}

func (r *fakeDocRepo) Get(_ context.Context, workspaceID, id uuid.UUID) (Document, bool, error) {
	doc, ok := r.docs[id]
	if !ok || doc.WorkspaceID != workspaceID {
		return Document{}, false, nil
	}
	return doc, true, nil
}

func (r *fakeDocRepo) List(context.Context, uuid.UUID, DocumentFilter) ([]Document, error) {
	return nil, nil
}

func (r *fakeDocRepo) TransitionStatus(_ context.Context, workspaceID, id uuid.UUID, allowedFrom []DocumentStatus, to DocumentStatus, errMessage *string) (bool, error) {
	doc, ok := r.docs[id]
	if !ok || doc.WorkspaceID != workspaceID {
		return false, nil
	}
	allowed := false
	for _, s := range allowedFrom {
		if doc.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	doc.Status = to
	doc.ErrorMessage = errMessage
	r.docs[id] = doc
	return true, nil
}

func (r *fakeDocRepo) SoftDelete(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

type fakeChunkRepo struct {
	replaced   map[uuid.UUID][]Chunk
	replaceErr error
}

func newFakeChunkRepo() *fakeChunkRepo {
	return &fakeChunkRepo{replaced: make(map[uuid.UUID][]Chunk)}
}

func (r *fakeChunkRepo) ReplaceChunks(_ context.Context, _, documentID uuid.UUID, chunks []Chunk) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	r.replaced[documentID] = chunks
	return nil
}

func (r *fakeChunkRepo) DeleteByDocument(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (r *fakeChunkRepo) SearchSimilar(context.Context, uuid.UUID, []float32, int) ([]RetrievedChunk, error) {
	return nil, nil
}

func (r *fakeChunkRepo) SearchFullText(context.Context, uuid.UUID, string, int) ([]RetrievedChunk, error) {
	return nil, nil
}

type fakeStorage struct {
	blobs       map[string][]byte
	uploadErr   error
	downloadErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{blobs: make(map[string][]byte)}
}

func (s *fakeStorage) Upload(_ context.Context, key string, content []byte, _ string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.blobs[key] = content
	return nil
}

func (s *fakeStorage) Download(_ context.Context, key string) ([]byte, error) {
	if s.downloadErr != nil {
		return nil, s.downloadErr
	}
	return s.blobs[key], nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	delete(s.blobs, key)
	return nil
}

func (s *fakeStorage) Presign(context.Context, string, time.Duration, string) (string, error) {
	return "", nil
}

type fakeEmbedder struct {
	dim int
	err error
}

func (f fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return make([]float32, f.dim), f.err
}

func (f fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

type fixedChunker struct {
	candidates []ChunkCandidate
}

func (c fixedChunker) Chunk(text string) []ChunkCandidate {
	if len(c.candidates) > 0 {
		return c.candidates
	}
	if text == "" {
		return nil
	}
	return []ChunkCandidate{{ChunkIndex: 0, Content: text, TokenCount: len(text) / 4}}
}

type fakeQueue struct {
	enqueued []uuid.UUID
	err      error
}

func (q *fakeQueue) Enqueue(_ context.Context, documentID, _ uuid.UUID) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.enqueued = append(q.enqueued, documentID)
	return documentID.String(), nil
}

type fakeAuditor struct {
	events []AuditEvent
}

func (a *fakeAuditor) Record(_ context.Context, event AuditEvent) {
	a.events = append(a.events, event)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIngestService(docs *fakeDocRepo, chunks *fakeChunkRepo, storage *fakeStorage, queue *fakeQueue) *IngestService {
	return NewIngestService(
		DefaultConfig(),
		fakeAuthorizer{ws: Workspace{ID: uuid.New(), OwnerUserID: 1}},
		docs, chunks, storage,
		fakeEmbedder{dim: DefaultConfig().VectorDim},
		fixedChunker{},
		queue,
		nil,
		&fakeAuditor{},
		testLogger(),
	)
}

func TestUploadDocumentPersistsPendingAndEnqueues(t *testing.T) {
	docs := newFakeDocRepo()
	chunks := newFakeChunkRepo()
	storage := newFakeStorage()
	queue := &fakeQueue{}
	svc := newTestIngestService(docs, chunks, storage, queue)

	doc, err := svc.UploadDocument(context.Background(), uuid.New(), Actor{UserID: 1, Authenticated: true}, UploadRequest{
		FileName: "notes.txt",
		Content:  []byte("hello world"),
	})
	require.NoError(t, err)
	require.Equal(t, DocumentPending, doc.Status)
	require.Len(t, queue.enqueued, 1)
	require.Equal(t, doc.ID, queue.enqueued[0])
	require.NotEmpty(t, storage.blobs)
}

func TestUploadDocumentRejectsEmptyContent(t *testing.T) {
	svc := newTestIngestService(newFakeDocRepo(), newFakeChunkRepo(), newFakeStorage(), &fakeQueue{})
	_, err := svc.UploadDocument(context.Background(), uuid.New(), Actor{UserID: 1, Authenticated: true}, UploadRequest{FileName: "empty.txt"})
	require.Error(t, err)
}

func TestUploadDocumentFailedEnqueueCleansUpBlobAndTransitionsFailed(t *testing.T) {
	docs := newFakeDocRepo()
	chunks := newFakeChunkRepo()
	storage := newFakeStorage()
	queue := &fakeQueue{err: assertErr}
	svc := newTestIngestService(docs, chunks, storage, queue)

	_, err := svc.UploadDocument(context.Background(), uuid.New(), Actor{UserID: 1, Authenticated: true}, UploadRequest{
		FileName: "notes.txt",
		Content:  []byte("hello world"),
	})
	require.Error(t, err)
	require.Empty(t, storage.blobs)
	require.Len(t, docs.docs, 1)
	for _, d := range docs.docs {
		require.Equal(t, DocumentFailed, d.Status)
	}
}

func TestProcessDocumentJobTransitionsToReady(t *testing.T) {
	docs := newFakeDocRepo()
	chunks := newFakeChunkRepo()
	storage := newFakeStorage()
	svc := newTestIngestService(docs, chunks, storage, &fakeQueue{})

	workspaceID := uuid.New()
	doc := Document{ID: uuid.New(), WorkspaceID: workspaceID, Status: DocumentPending, StorageKey: "documents/x/file.txt", MimeType: "text/plain"}
	docs.docs[doc.ID] = doc
	storage.blobs[doc.StorageKey] = []byte("some extracted content")

	err := svc.ProcessDocumentJob(context.Background(), workspaceID, doc.ID)
	require.NoError(t, err)
	require.Equal(t, DocumentReady, docs.docs[doc.ID].Status)
	require.NotEmpty(t, chunks.replaced[doc.ID])
}

func TestProcessDocumentJobIsIdempotentWhenAlreadyReady(t *testing.T) {
	docs := newFakeDocRepo()
	chunks := newFakeChunkRepo()
	svc := newTestIngestService(docs, chunks, newFakeStorage(), &fakeQueue{})

	workspaceID := uuid.New()
	doc := Document{ID: uuid.New(), WorkspaceID: workspaceID, Status: DocumentReady}
	docs.docs[doc.ID] = doc

	err := svc.ProcessDocumentJob(context.Background(), workspaceID, doc.ID)
	require.NoError(t, err)
	require.Empty(t, chunks.replaced)
}

func TestProcessDocumentJobFailsOnMissingMetadata(t *testing.T) {
	docs := newFakeDocRepo()
	svc := newTestIngestService(docs, newFakeChunkRepo(), newFakeStorage(), &fakeQueue{})

	workspaceID := uuid.New()
	doc := Document{ID: uuid.New(), WorkspaceID: workspaceID, Status: DocumentPending}
	docs.docs[doc.ID] = doc

	err := svc.ProcessDocumentJob(context.Background(), workspaceID, doc.ID)
	require.Error(t, err)
	require.Equal(t, DocumentFailed, docs.docs[doc.ID].Status)
}

func TestReprocessDocumentRejectsWhileProcessing(t *testing.T) {
	docs := newFakeDocRepo()
	svc := newTestIngestService(docs, newFakeChunkRepo(), newFakeStorage(), &fakeQueue{})

	workspaceID := uuid.New()
	doc := Document{ID: uuid.New(), WorkspaceID: workspaceID, Status: DocumentProcessing}
	docs.docs[doc.ID] = doc

	err := svc.ReprocessDocument(context.Background(), workspaceID, doc.ID, Actor{UserID: 1, Authenticated: true})
	require.Error(t, err)
}

func TestCancelDocumentRequiresProcessingStatus(t *testing.T) {
	docs := newFakeDocRepo()
	svc := newTestIngestService(docs, newFakeChunkRepo(), newFakeStorage(), &fakeQueue{})

	workspaceID := uuid.New()
	doc := Document{ID: uuid.New(), WorkspaceID: workspaceID, Status: DocumentPending}
	docs.docs[doc.ID] = doc

	err := svc.CancelDocument(context.Background(), workspaceID, doc.ID, Actor{UserID: 1, Authenticated: true}, "")
	require.Error(t, err)

	doc.Status = DocumentProcessing
	docs.docs[doc.ID] = doc
	err = svc.CancelDocument(context.Background(), workspaceID, doc.ID, Actor{UserID: 1, Authenticated: true}, "stuck worker")
	require.NoError(t, err)
	require.Equal(t, DocumentFailed, docs.docs[doc.ID].Status)
}

func TestIngestTextSkipsStorageAndQueue(t *testing.T) {
	docs := newFakeDocRepo()
	chunks := newFakeChunkRepo()
	queue := &fakeQueue{}
	svc := newTestIngestService(docs, chunks, newFakeStorage(), queue)

	workspaceID := uuid.New()
	doc, err := svc.IngestText(context.Background(), workspaceID, Actor{UserID: 1, Authenticated: true}, "Notes", "direct text content")
	require.NoError(t, err)
	require.Equal(t, DocumentReady, doc.Status)
	require.Empty(t, queue.enqueued)
	require.NotEmpty(t, chunks.replaced[doc.ID])
}

var assertErr = errEnqueueFailed{}

type errEnqueueFailed struct{}

func (errEnqueueFailed) Error() string { return "enqueue failed" }

var (
	_ WorkspaceAuthorizer     = fakeAuthorizer{}
	_ DocumentRepository      = (*fakeDocRepo)(nil)
	_ ChunkRepository         = (*fakeChunkRepo)(nil)
	_ FileStorage             = (*fakeStorage)(nil)
	_ EmbeddingService        = fakeEmbedder{}
	_ Chunker                 = fixedChunker{}
	_ DocumentProcessingQueue = (*fakeQueue)(nil)
	_ AuditRecorder           = (*fakeAuditor)(nil)
)
