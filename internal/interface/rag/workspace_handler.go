package rag

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

type createWorkspacePayload struct {
	Name           string   `json:"name"`
	Visibility     string   `json:"visibility"`
	AllowedUserIDs []int64  `json:"allowedUserIds"`
	AllowedRoles   []string `json:"allowedRoles"`
}

// CreateWorkspace creates a new workspace owned by the caller.
func (h *Handler) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var payload createWorkspacePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid request body", err))
		return
	}
	var acl *rag.WorkspaceACL
	if len(payload.AllowedUserIDs) > 0 || len(payload.AllowedRoles) > 0 {
		acl = &rag.WorkspaceACL{AllowedUserIDs: payload.AllowedUserIDs, AllowedRoles: payload.AllowedRoles}
	}
	ws, err := h.workspaces.Create(r.Context(), actorFromContext(r.Context()), rag.CreateWorkspaceRequest{
		Name:       payload.Name,
		Visibility: rag.Visibility(payload.Visibility),
		ACL:        acl,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, ws)
}

// GetWorkspace returns a workspace's metadata.
func (h *Handler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid workspace id", err))
		return
	}
	ws, err := h.workspaces.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ws)
}

// ArchiveWorkspace archives a workspace owned (or administered) by the
// caller.
func (h *Handler) ArchiveWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		writeError(w, h.logger, NewHTTPError(http.StatusBadRequest, "invalid_request", "invalid workspace id", err))
		return
	}
	if err := h.workspaces.Archive(r.Context(), actorFromContext(r.Context()), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusNoContent, nil)
}
