// Package rag implements the ingestion, retrieval, and answering pipelines
// for workspace-scoped document question answering.
package rag

import (
	"time"

	"github.com/google/uuid"
)

// Visibility controls who may read a workspace.
type Visibility string

const (
	VisibilityPrivate Visibility = "PRIVATE"
	VisibilityOrgRead Visibility = "ORG_READ"
	VisibilityShared  Visibility = "SHARED"
)

// Workspace is the top level container owning documents.
type Workspace struct {
	ID          uuid.UUID
	Name        string
	OwnerUserID int64
	Visibility  Visibility
	ACL         *WorkspaceACL
	ArchivedAt  *time.Time
	CreatedAt   time.Time
}

// Archived reports whether the workspace has been archived.
func (w Workspace) Archived() bool {
	return w.ArchivedAt != nil
}

// WorkspaceACL enumerates the users and roles granted access to a SHARED
// workspace. Nil means no explicit grants beyond the owner.
type WorkspaceACL struct {
	AllowedUserIDs []int64
	AllowedRoles   []string
}

// DocumentStatus tracks the ingestion state machine.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "PENDING"
	DocumentProcessing DocumentStatus = "PROCESSING"
	DocumentReady      DocumentStatus = "READY"
	DocumentFailed     DocumentStatus = "FAILED"
)

// Document is a single ingested file or direct-text submission.
type Document struct {
	ID               uuid.UUID
	WorkspaceID      uuid.UUID
	Title            string
	FileName         string
	MimeType         string
	StorageKey       string
	Status           DocumentStatus
	ErrorMessage     *string
	UploadedByUserID int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

// Chunk is a retrievable slice of a document's extracted text.
type Chunk struct {
	ID          uuid.UUID
	DocumentID  uuid.UUID
	WorkspaceID uuid.UUID
	ChunkIndex  int
	Content     string
	TokenCount  int
	Embedding   []float32
	Metadata    map[string]any
	CreatedAt   time.Time
}

// InjectionFlagged reports whether the chunk was scored as a prompt
// injection risk at ingest time.
func (c Chunk) InjectionFlagged() bool {
	if c.Metadata == nil {
		return false
	}
	v, ok := c.Metadata["injection_risk"]
	if !ok {
		return false
	}
	flagged, _ := v.(bool)
	return flagged
}

// RetrievedChunk pairs a chunk with its retrieval score and parent
// document metadata needed for citation.
type RetrievedChunk struct {
	Chunk      Chunk
	Document   Document
	Score      float64
	DenseRank  int
	SparseRank int
}

// RankedChunk is a RetrievedChunk after reranking, carrying its final
// citation index.
type RankedChunk struct {
	RetrievedChunk
	CitationIndex int
}

// AuditEvent records a best-effort trail of workspace actions.
type AuditEvent struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	ActorUserID int64
	Action      string
	Detail      map[string]any
	CreatedAt   time.Time
}

// QuotaScopeType distinguishes what a quota bucket is keyed on.
type QuotaScopeType string

const (
	QuotaScopeWorkspace QuotaScopeType = "workspace"
	QuotaScopeUser      QuotaScopeType = "user"
)

// QuotaWindow is a single hourly usage bucket.
type QuotaWindow struct {
	ScopeType QuotaScopeType
	ScopeID   string
	Resource  string
	HourFloor time.Time
	Count     int64
}

// ChunkCandidate is produced by a Chunker before persistence or embedding.
type ChunkCandidate struct {
	ChunkIndex int
	Content    string
	TokenCount int
}

// DocumentFilter narrows repository listings.
type DocumentFilter struct {
	DocumentIDs []uuid.UUID
	Statuses    []DocumentStatus
}
