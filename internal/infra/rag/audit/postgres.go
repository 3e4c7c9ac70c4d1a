// Package audit provides rag.AuditRecorder implementations, grounded on
// the teacher's append-only query log repository.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

// PostgresRecorder appends audit events to Postgres. Record is
// best-effort: a write failure is logged and swallowed so that audit
// logging can never fail the caller's request.
type PostgresRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresRecorder constructs the recorder.
func NewPostgresRecorder(pool *pgxpool.Pool, logger *slog.Logger) *PostgresRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRecorder{pool: pool, logger: logger.With("component", "rag.audit.postgres")}
}

func (r *PostgresRecorder) Record(ctx context.Context, event rag.AuditEvent) {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		r.logger.Warn("audit event detail encode failed", "error", err, "action", event.Action)
		return
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO rag_audit_events (id, workspace_id, actor_user_id, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, event.WorkspaceID, event.ActorUserID, event.Action, detail, event.CreatedAt)
	if err != nil {
		r.logger.Warn("audit event write failed", "error", err, "action", event.Action, "workspace_id", event.WorkspaceID)
	}
}

var _ rag.AuditRecorder = (*PostgresRecorder)(nil)
