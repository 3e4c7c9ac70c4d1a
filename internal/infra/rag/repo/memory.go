package repo

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

// MemoryWorkspaceRepository is an in-memory rag.WorkspaceRepository.
type MemoryWorkspaceRepository struct {
	mu   sync.RWMutex
	data map[uuid.UUID]rag.Workspace
}

// NewMemoryWorkspaceRepository constructs the repository.
func NewMemoryWorkspaceRepository() *MemoryWorkspaceRepository {
	return &MemoryWorkspaceRepository{data: make(map[uuid.UUID]rag.Workspace)}
}

func (r *MemoryWorkspaceRepository) Create(_ context.Context, ws rag.Workspace) (rag.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[ws.ID] = ws
	return ws, nil
}

func (r *MemoryWorkspaceRepository) Get(_ context.Context, id uuid.UUID) (rag.Workspace, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ws, ok := r.data[id]
	return ws, ok, nil
}

func (r *MemoryWorkspaceRepository) Archive(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.data[id]
	if !ok {
		return fmt.Errorf("workspace not found: %s", id)
	}
	if ws.ArchivedAt == nil {
		now := time.Now()
		ws.ArchivedAt = &now
		r.data[id] = ws
	}
	return nil
}

func (r *MemoryWorkspaceRepository) Update(_ context.Context, ws rag.Workspace) (rag.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.data[ws.ID]
	if !ok {
		return rag.Workspace{}, fmt.Errorf("workspace not found: %s", ws.ID)
	}
	ws.ArchivedAt = existing.ArchivedAt
	ws.CreatedAt = existing.CreatedAt
	r.data[ws.ID] = ws
	return ws, nil
}

var _ rag.WorkspaceRepository = (*MemoryWorkspaceRepository)(nil)

// MemoryDocumentRepository is an in-memory rag.DocumentRepository with the
// same CAS-guarded status transition semantics as the Postgres adapter.
type MemoryDocumentRepository struct {
	mu   sync.Mutex
	data map[uuid.UUID]rag.Document
}

// NewMemoryDocumentRepository constructs the repository.
func NewMemoryDocumentRepository() *MemoryDocumentRepository {
	return &MemoryDocumentRepository{data: make(map[uuid.UUID]rag.Document)}
}

func (r *MemoryDocumentRepository) Create(_ context.Context, doc rag.Document) (rag.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[doc.ID] = doc
	return doc, nil
}

func (r *MemoryDocumentRepository) Get(_ context.Context, workspaceID, id uuid.UUID) (rag.Document, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[id]
	if !ok || doc.WorkspaceID != workspaceID || doc.DeletedAt != nil {
		return rag.Document{}, false, nil
	}
	return doc, true, nil
}

func (r *MemoryDocumentRepository) List(_ context.Context, workspaceID uuid.UUID, filter rag.DocumentFilter) ([]rag.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	allowedStatus := make(map[rag.DocumentStatus]bool, len(filter.Statuses))
	for _, st := range filter.Statuses {
		allowedStatus[st] = true
	}
	allowedIDs := make(map[uuid.UUID]bool, len(filter.DocumentIDs))
	for _, id := range filter.DocumentIDs {
		allowedIDs[id] = true
	}
	out := make([]rag.Document, 0)
	for _, doc := range r.data {
		if doc.WorkspaceID != workspaceID || doc.DeletedAt != nil {
			continue
		}
		if len(allowedStatus) > 0 && !allowedStatus[doc.Status] {
			continue
		}
		if len(allowedIDs) > 0 && !allowedIDs[doc.ID] {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryDocumentRepository) TransitionStatus(_ context.Context, workspaceID, id uuid.UUID, allowedFrom []rag.DocumentStatus, to rag.DocumentStatus, errMessage *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[id]
	if !ok || doc.WorkspaceID != workspaceID || doc.DeletedAt != nil {
		return false, nil
	}
	allowed := false
	for _, st := range allowedFrom {
		if doc.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	doc.Status = to
	doc.ErrorMessage = errMessage
	doc.UpdatedAt = time.Now()
	r.data[id] = doc
	return true, nil
}

func (r *MemoryDocumentRepository) SoftDelete(_ context.Context, workspaceID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[id]
	if !ok || doc.WorkspaceID != workspaceID {
		return nil
	}
	now := time.Now()
	doc.DeletedAt = &now
	r.data[id] = doc
	return nil
}

var _ rag.DocumentRepository = (*MemoryDocumentRepository)(nil)

// MemoryChunkRepository is an in-memory rag.ChunkRepository supporting both
// cosine similarity and a simple term-overlap full-text score, mirroring
// the two retrieval modes the Postgres adapter exposes.
type MemoryChunkRepository struct {
	mu         sync.RWMutex
	data       map[uuid.UUID][]rag.Chunk // keyed by workspace ID
	docs       rag.DocumentRepository
	workspaces rag.WorkspaceRepository
}

// NewMemoryChunkRepository constructs the repository. workspaces is
// consulted on every search so chunks belonging to an archived workspace
// never surface in a retrieval result, mirroring the Postgres adapter's
// join on rag_workspaces.archived_at.
func NewMemoryChunkRepository(docs rag.DocumentRepository, workspaces rag.WorkspaceRepository) *MemoryChunkRepository {
	return &MemoryChunkRepository{data: make(map[uuid.UUID][]rag.Chunk), docs: docs, workspaces: workspaces}
}

// archived reports whether workspaceID names an archived workspace (or one
// that no longer exists), treating lookup failure as non-archived so a
// transient error does not silently suppress retrieval.
func (r *MemoryChunkRepository) archived(ctx context.Context, workspaceID uuid.UUID) bool {
	ws, found, err := r.workspaces.Get(ctx, workspaceID)
	if err != nil {
		return false
	}
	if !found {
		return true
	}
	return ws.Archived()
}

func (r *MemoryChunkRepository) ReplaceChunks(_ context.Context, workspaceID, documentID uuid.UUID, chunks []rag.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := r.data[workspaceID]
	kept := existing[:0:0]
	for _, c := range existing {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	r.data[workspaceID] = append(kept, chunks...)
	return nil
}

func (r *MemoryChunkRepository) DeleteByDocument(_ context.Context, workspaceID, documentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := r.data[workspaceID]
	kept := existing[:0:0]
	for _, c := range existing {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	r.data[workspaceID] = kept
	return nil
}

func (r *MemoryChunkRepository) SearchSimilar(ctx context.Context, workspaceID uuid.UUID, embedding []float32, topK int) ([]rag.RetrievedChunk, error) {
	if topK <= 0 {
		topK = 20
	}
	if r.archived(ctx, workspaceID) {
		return nil, nil
	}
	r.mu.RLock()
	chunks := append([]rag.Chunk(nil), r.data[workspaceID]...)
	r.mu.RUnlock()

	results := make([]rag.RetrievedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		doc, found, err := r.docs.Get(ctx, workspaceID, chunk.DocumentID)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		results = append(results, rag.RetrievedChunk{
			Chunk:    chunk,
			Document: doc,
			Score:    cosineSimilarity(embedding, chunk.Embedding),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID.String() < results[j].Chunk.ID.String()
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (r *MemoryChunkRepository) SearchFullText(ctx context.Context, workspaceID uuid.UUID, query string, topK int) ([]rag.RetrievedChunk, error) {
	if topK <= 0 {
		topK = 20
	}
	if r.archived(ctx, workspaceID) {
		return nil, nil
	}
	terms := strings.Fields(strings.ToLower(query))
	r.mu.RLock()
	chunks := append([]rag.Chunk(nil), r.data[workspaceID]...)
	r.mu.RUnlock()

	results := make([]rag.RetrievedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		score := termOverlapScore(terms, chunk.Content)
		if score == 0 {
			continue
		}
		doc, found, err := r.docs.Get(ctx, workspaceID, chunk.DocumentID)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		results = append(results, rag.RetrievedChunk{Chunk: chunk, Document: doc, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

var _ rag.ChunkRepository = (*MemoryChunkRepository)(nil)

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i] * b[i])
		magA += float64(a[i] * a[i])
		magB += float64(b[i] * b[i])
	}
	den := math.Sqrt(magA) * math.Sqrt(magB)
	if den == 0 {
		return 0
	}
	return dot / den
}

func termOverlapScore(terms []string, content string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	var hits int
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	return float64(hits) / float64(len(terms))
}
