package rag

import (
	"context"
	"log/slog"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/auth"
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag/ask"
)

// Handler groups the domain services the router dispatches to. It mirrors
// the teacher's gin Handler, generalized from a single upload-ask service
// to the workspace/ingest/ask triad.
type Handler struct {
	auth       auth.Service
	workspaces *rag.WorkspaceService
	ingest     *rag.IngestService
	ask        *ask.Service
	logger     *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(authSvc auth.Service, workspaces *rag.WorkspaceService, ingest *rag.IngestService, askSvc *ask.Service, logger *slog.Logger) *Handler {
	return &Handler{auth: authSvc, workspaces: workspaces, ingest: ingest, ask: askSvc, logger: logger.With("component", "interface.rag")}
}

// actorFromContext maps optional auth claims onto the domain Actor type,
// anonymous when no claims are attached (unauthenticated requests can
// still legally read ORG_READ/SHARED workspaces).
func actorFromContext(ctx context.Context) rag.Actor {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return rag.Actor{}
	}
	return rag.Actor{UserID: claims.UserID, Role: claims.Role, Authenticated: true}
}
