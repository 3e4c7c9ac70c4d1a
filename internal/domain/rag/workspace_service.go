package rag

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/saintwyss/rag-corp-sub003/pkg/errors"
)

// WorkspaceService manages workspace lifecycle: creation, ACL updates, and
// archival. Retrieval and write authorization for everything nested under
// a workspace (documents, chunks, conversations) run through
// WorkspaceAuthorizer instead; this service only needs the owner/admin
// check implicit in "whoever can create the resource can administer it".
type WorkspaceService struct {
	workspaces WorkspaceRepository
}

// NewWorkspaceService constructs the service.
func NewWorkspaceService(workspaces WorkspaceRepository) *WorkspaceService {
	return &WorkspaceService{workspaces: workspaces}
}

// CreateWorkspaceRequest describes a new workspace.
type CreateWorkspaceRequest struct {
	Name       string
	Visibility Visibility
	ACL        *WorkspaceACL
}

// Create persists a new workspace owned by actor.
func (s *WorkspaceService) Create(ctx context.Context, actor Actor, req CreateWorkspaceRequest) (Workspace, error) {
	if !actor.Authenticated {
		return Workspace{}, apperrors.Wrap(apperrors.CodeForbidden, "authentication required", nil)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Workspace{}, apperrors.Wrap(apperrors.CodeValidation, "name cannot be empty", nil)
	}
	visibility := req.Visibility
	switch visibility {
	case VisibilityPrivate, VisibilityOrgRead, VisibilityShared:
	case "":
		visibility = VisibilityPrivate
	default:
		return Workspace{}, apperrors.Wrap(apperrors.CodeValidation, "invalid visibility", nil)
	}
	ws := Workspace{
		ID:          uuid.New(),
		Name:        name,
		OwnerUserID: actor.UserID,
		Visibility:  visibility,
		ACL:         req.ACL,
		CreatedAt:   time.Now(),
	}
	return s.workspaces.Create(ctx, ws)
}

// Get loads a workspace without regard for read authorization; callers
// that need actor-scoped visibility should go through WorkspaceAuthorizer
// instead, which wraps this repository with the visibility rule matrix.
func (s *WorkspaceService) Get(ctx context.Context, id uuid.UUID) (Workspace, error) {
	ws, found, err := s.workspaces.Get(ctx, id)
	if err != nil {
		return Workspace{}, apperrors.Wrap(apperrors.CodeServiceUnavailable, "failed to load workspace", err)
	}
	if !found {
		return Workspace{}, apperrors.Wrap(apperrors.CodeNotFound, "workspace not found", nil)
	}
	return ws, nil
}

// UpdateACL replaces a workspace's visibility and ACL. Only the owner or
// an admin actor may call this.
func (s *WorkspaceService) UpdateACL(ctx context.Context, actor Actor, id uuid.UUID, visibility Visibility, acl *WorkspaceACL) (Workspace, error) {
	ws, err := s.Get(ctx, id)
	if err != nil {
		return Workspace{}, err
	}
	if !s.isAdministrator(actor, ws) {
		return Workspace{}, apperrors.Wrap(apperrors.CodeForbidden, "only the owner or an admin may update this workspace", nil)
	}
	switch visibility {
	case VisibilityPrivate, VisibilityOrgRead, VisibilityShared:
		ws.Visibility = visibility
	case "":
	default:
		return Workspace{}, apperrors.Wrap(apperrors.CodeValidation, "invalid visibility", nil)
	}
	ws.ACL = acl
	return s.workspaces.Update(ctx, ws)
}

// Archive marks a workspace archived. Only the owner or an admin actor may
// call this.
func (s *WorkspaceService) Archive(ctx context.Context, actor Actor, id uuid.UUID) error {
	ws, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !s.isAdministrator(actor, ws) {
		return apperrors.Wrap(apperrors.CodeForbidden, "only the owner or an admin may archive this workspace", nil)
	}
	return s.workspaces.Archive(ctx, id)
}

func (s *WorkspaceService) isAdministrator(actor Actor, ws Workspace) bool {
	if !actor.Authenticated {
		return false
	}
	return actor.UserID == ws.OwnerUserID || actor.Role == "admin"
}
