// Package repo provides concrete rag repository implementations: Postgres
// (via pgx and pgvector, adapted from the teacher's uploadask/repo) and
// in-memory equivalents for tests and local dev.
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

// PostgresWorkspaceRepository persists workspaces in Postgres.
type PostgresWorkspaceRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresWorkspaceRepository constructs the repository.
func NewPostgresWorkspaceRepository(pool *pgxpool.Pool) *PostgresWorkspaceRepository {
	return &PostgresWorkspaceRepository{pool: pool}
}

func (r *PostgresWorkspaceRepository) Create(ctx context.Context, ws rag.Workspace) (rag.Workspace, error) {
	acl, err := marshalACL(ws.ACL)
	if err != nil {
		return rag.Workspace{}, err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO rag_workspaces (id, name, owner_user_id, visibility, acl, archived_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ws.ID, ws.Name, ws.OwnerUserID, ws.Visibility, acl, ws.ArchivedAt, ws.CreatedAt)
	if err != nil {
		return rag.Workspace{}, err
	}
	return ws, nil
}

func (r *PostgresWorkspaceRepository) Get(ctx context.Context, id uuid.UUID) (rag.Workspace, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, owner_user_id, visibility, acl, archived_at, created_at
		FROM rag_workspaces
		WHERE id = $1
		LIMIT 1
	`, id)
	ws, err := scanWorkspace(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return rag.Workspace{}, false, nil
		}
		return rag.Workspace{}, false, err
	}
	return ws, true, nil
}

func (r *PostgresWorkspaceRepository) Archive(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE rag_workspaces SET archived_at = NOW() WHERE id = $1 AND archived_at IS NULL
	`, id)
	return err
}

func (r *PostgresWorkspaceRepository) Update(ctx context.Context, ws rag.Workspace) (rag.Workspace, error) {
	acl, err := marshalACL(ws.ACL)
	if err != nil {
		return rag.Workspace{}, err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE rag_workspaces
		SET name = $1, visibility = $2, acl = $3
		WHERE id = $4
	`, ws.Name, ws.Visibility, acl, ws.ID)
	if err != nil {
		return rag.Workspace{}, err
	}
	return ws, nil
}

var _ rag.WorkspaceRepository = (*PostgresWorkspaceRepository)(nil)

func scanWorkspace(row pgx.Row) (rag.Workspace, error) {
	var (
		ws       rag.Workspace
		aclBytes []byte
	)
	if err := row.Scan(&ws.ID, &ws.Name, &ws.OwnerUserID, &ws.Visibility, &aclBytes, &ws.ArchivedAt, &ws.CreatedAt); err != nil {
		return rag.Workspace{}, err
	}
	acl, err := unmarshalACL(aclBytes)
	if err != nil {
		return rag.Workspace{}, err
	}
	ws.ACL = acl
	return ws, nil
}

func marshalACL(acl *rag.WorkspaceACL) ([]byte, error) {
	if acl == nil {
		return nil, nil
	}
	return json.Marshal(acl)
}

func unmarshalACL(raw []byte) (*rag.WorkspaceACL, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var acl rag.WorkspaceACL
	if err := json.Unmarshal(raw, &acl); err != nil {
		return nil, err
	}
	return &acl, nil
}

// PostgresDocumentRepository persists documents with a CAS-guarded status
// transition and workspace-scoped predicates throughout.
type PostgresDocumentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresDocumentRepository constructs the repository.
func NewPostgresDocumentRepository(pool *pgxpool.Pool) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{pool: pool}
}

func (r *PostgresDocumentRepository) Create(ctx context.Context, doc rag.Document) (rag.Document, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rag_documents
			(id, workspace_id, title, file_name, mime_type, storage_key, status, error_message, uploaded_by_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, doc.ID, doc.WorkspaceID, doc.Title, doc.FileName, doc.MimeType, doc.StorageKey, doc.Status, doc.ErrorMessage, doc.UploadedByUserID, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return rag.Document{}, err
	}
	return doc, nil
}

func (r *PostgresDocumentRepository) Get(ctx context.Context, workspaceID, id uuid.UUID) (rag.Document, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, workspace_id, title, file_name, mime_type, storage_key, status, error_message, uploaded_by_user_id, created_at, updated_at, deleted_at
		FROM rag_documents
		WHERE id = $1 AND workspace_id = $2 AND deleted_at IS NULL
		LIMIT 1
	`, id, workspaceID)
	doc, err := scanDocument(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return rag.Document{}, false, nil
		}
		return rag.Document{}, false, err
	}
	return doc, true, nil
}

func (r *PostgresDocumentRepository) List(ctx context.Context, workspaceID uuid.UUID, filter rag.DocumentFilter) ([]rag.Document, error) {
	query := `
		SELECT id, workspace_id, title, file_name, mime_type, storage_key, status, error_message, uploaded_by_user_id, created_at, updated_at, deleted_at
		FROM rag_documents
		WHERE workspace_id = $1 AND deleted_at IS NULL
	`
	args := []any{workspaceID}
	argPos := 2
	if len(filter.Statuses) > 0 {
		query += ` AND status = ANY($` + itoa(argPos) + `)`
		args = append(args, filter.Statuses)
		argPos++
	}
	if len(filter.DocumentIDs) > 0 {
		query += ` AND id = ANY($` + itoa(argPos) + `)`
		args = append(args, filter.DocumentIDs)
		argPos++
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []rag.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// TransitionStatus applies a compare-and-set update: it only succeeds if
// the document's current status is one of allowedFrom, guarding against
// racing workers double-processing the same document.
func (r *PostgresDocumentRepository) TransitionStatus(ctx context.Context, workspaceID, id uuid.UUID, allowedFrom []rag.DocumentStatus, to rag.DocumentStatus, errMessage *string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE rag_documents
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3 AND workspace_id = $4 AND deleted_at IS NULL AND status = ANY($5)
	`, to, errMessage, id, workspaceID, allowedFrom)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresDocumentRepository) SoftDelete(ctx context.Context, workspaceID, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE rag_documents SET deleted_at = NOW() WHERE id = $1 AND workspace_id = $2 AND deleted_at IS NULL
	`, id, workspaceID)
	return err
}

var _ rag.DocumentRepository = (*PostgresDocumentRepository)(nil)

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (rag.Document, error) {
	var doc rag.Document
	if err := row.Scan(
		&doc.ID, &doc.WorkspaceID, &doc.Title, &doc.FileName, &doc.MimeType, &doc.StorageKey,
		&doc.Status, &doc.ErrorMessage, &doc.UploadedByUserID, &doc.CreatedAt, &doc.UpdatedAt, &doc.DeletedAt,
	); err != nil {
		return rag.Document{}, err
	}
	return doc, nil
}

// PostgresChunkRepository stores chunks and performs both pgvector
// similarity search and Postgres full-text search for hybrid retrieval.
type PostgresChunkRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresChunkRepository constructs the chunk repository.
func NewPostgresChunkRepository(pool *pgxpool.Pool) *PostgresChunkRepository {
	return &PostgresChunkRepository{pool: pool}
}

// ReplaceChunks atomically replaces a document's chunk set in a single
// transaction so concurrent readers never observe a partial rewrite.
func (r *PostgresChunkRepository) ReplaceChunks(ctx context.Context, workspaceID, documentID uuid.UUID, chunks []rag.Chunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM rag_chunks WHERE document_id = $1 AND workspace_id = $2
	`, documentID, workspaceID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		metadata, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO rag_chunks (id, document_id, workspace_id, chunk_index, content, token_count, embedding, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, chunk.ID, documentID, workspaceID, chunk.ChunkIndex, chunk.Content, chunk.TokenCount, pgvector.NewVector(chunk.Embedding), metadata, chunk.CreatedAt)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PostgresChunkRepository) DeleteByDocument(ctx context.Context, workspaceID, documentID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM rag_chunks WHERE document_id = $1 AND workspace_id = $2
	`, documentID, workspaceID)
	return err
}

func (r *PostgresChunkRepository) SearchSimilar(ctx context.Context, workspaceID uuid.UUID, embedding []float32, topK int) ([]rag.RetrievedChunk, error) {
	if topK <= 0 {
		topK = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT
			c.id, c.document_id, c.workspace_id, c.chunk_index, c.content, c.token_count, c.embedding, c.metadata, c.created_at,
			d.id, d.workspace_id, d.title, d.file_name, d.mime_type, d.storage_key, d.status, d.error_message, d.uploaded_by_user_id, d.created_at, d.updated_at, d.deleted_at,
			(1.0 / (1.0 + (c.embedding <-> $1))) AS score
		FROM rag_chunks c
		JOIN rag_documents d ON d.id = c.document_id
		JOIN rag_workspaces w ON w.id = c.workspace_id
		WHERE c.workspace_id = $2 AND d.deleted_at IS NULL AND w.archived_at IS NULL
		ORDER BY (c.embedding <-> $1) ASC, c.id ASC
		LIMIT $3
	`, pgvector.NewVector(embedding), workspaceID, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []rag.RetrievedChunk
	for rows.Next() {
		var (
			chunk        rag.Chunk
			doc          rag.Document
			embeddingRaw any
			metadataRaw  []byte
			score        float64
		)
		if err := rows.Scan(
			&chunk.ID, &chunk.DocumentID, &chunk.WorkspaceID, &chunk.ChunkIndex, &chunk.Content, &chunk.TokenCount, &embeddingRaw, &metadataRaw, &chunk.CreatedAt,
			&doc.ID, &doc.WorkspaceID, &doc.Title, &doc.FileName, &doc.MimeType, &doc.StorageKey, &doc.Status, &doc.ErrorMessage, &doc.UploadedByUserID, &doc.CreatedAt, &doc.UpdatedAt, &doc.DeletedAt,
			&score,
		); err != nil {
			return nil, err
		}
		parsedEmbedding, err := normalizeEmbedding(embeddingRaw)
		if err != nil {
			return nil, err
		}
		chunk.Embedding = parsedEmbedding
		if len(metadataRaw) > 0 {
			_ = json.Unmarshal(metadataRaw, &chunk.Metadata)
		}
		results = append(results, rag.RetrievedChunk{Chunk: chunk, Document: doc, Score: score})
	}
	return results, rows.Err()
}

// SearchFullText ranks chunks with Postgres's built-in text search,
// feeding the sparse side of hybrid retrieval's RRF fusion.
func (r *PostgresChunkRepository) SearchFullText(ctx context.Context, workspaceID uuid.UUID, query string, topK int) ([]rag.RetrievedChunk, error) {
	if topK <= 0 {
		topK = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT
			c.id, c.document_id, c.workspace_id, c.chunk_index, c.content, c.token_count, c.metadata, c.created_at,
			d.id, d.workspace_id, d.title, d.file_name, d.mime_type, d.storage_key, d.status, d.error_message, d.uploaded_by_user_id, d.created_at, d.updated_at, d.deleted_at,
			ts_rank(to_tsvector('simple', c.content), plainto_tsquery('simple', $1)) AS score
		FROM rag_chunks c
		JOIN rag_documents d ON d.id = c.document_id
		JOIN rag_workspaces w ON w.id = c.workspace_id
		WHERE c.workspace_id = $2 AND d.deleted_at IS NULL AND w.archived_at IS NULL
			AND to_tsvector('simple', c.content) @@ plainto_tsquery('simple', $1)
		ORDER BY score DESC
		LIMIT $3
	`, query, workspaceID, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []rag.RetrievedChunk
	for rows.Next() {
		var (
			chunk       rag.Chunk
			doc         rag.Document
			metadataRaw []byte
			score       float64
		)
		if err := rows.Scan(
			&chunk.ID, &chunk.DocumentID, &chunk.WorkspaceID, &chunk.ChunkIndex, &chunk.Content, &chunk.TokenCount, &metadataRaw, &chunk.CreatedAt,
			&doc.ID, &doc.WorkspaceID, &doc.Title, &doc.FileName, &doc.MimeType, &doc.StorageKey, &doc.Status, &doc.ErrorMessage, &doc.UploadedByUserID, &doc.CreatedAt, &doc.UpdatedAt, &doc.DeletedAt,
			&score,
		); err != nil {
			return nil, err
		}
		if len(metadataRaw) > 0 {
			_ = json.Unmarshal(metadataRaw, &chunk.Metadata)
		}
		results = append(results, rag.RetrievedChunk{Chunk: chunk, Document: doc, Score: score})
	}
	return results, rows.Err()
}

var _ rag.ChunkRepository = (*PostgresChunkRepository)(nil)

func itoa(v int) string {
	return strconv.Itoa(v)
}

func normalizeEmbedding(raw any) ([]float32, error) {
	switch v := raw.(type) {
	case pgvector.Vector:
		return append([]float32(nil), v.Slice()...), nil
	case []float32:
		return append([]float32(nil), v...), nil
	case []float64:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		return out, nil
	case string:
		trimmed := strings.TrimSpace(v)
		trimmed = strings.TrimPrefix(trimmed, "[")
		trimmed = strings.TrimSuffix(trimmed, "]")
		if trimmed == "" {
			return nil, nil
		}
		parts := strings.Split(trimmed, ",")
		out := make([]float32, 0, len(parts))
		for _, p := range parts {
			numStr := strings.TrimSpace(p)
			if numStr == "" {
				continue
			}
			f, err := strconv.ParseFloat(numStr, 32)
			if err != nil {
				return nil, err
			}
			out = append(out, float32(f))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported embedding type %T", raw)
	}
}
