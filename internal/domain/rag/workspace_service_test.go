package rag

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeWorkspaceRepo struct {
	byID map[uuid.UUID]Workspace
}

func newFakeWorkspaceRepo() *fakeWorkspaceRepo {
	return &fakeWorkspaceRepo{byID: make(map[uuid.UUID]Workspace)}
}

func (r *fakeWorkspaceRepo) Create(_ context.Context, ws Workspace) (Workspace, error) {
	r.byID[ws.ID] = ws
	return ws, nil
}

func (r *fakeWorkspaceRepo) Get(_ context.Context, id uuid.UUID) (Workspace, bool, error) {
	ws, ok := r.byID[id]
	return ws, ok, nil
}

func (r *fakeWorkspaceRepo) Archive(_ context.Context, id uuid.UUID) error {
	ws, ok := r.byID[id]
	if !ok {
		return nil
	}
	now := time.Now()
	ws.ArchivedAt = &now
	r.byID[id] = ws
	return nil
}

func (r *fakeWorkspaceRepo) Update(_ context.Context, ws Workspace) (Workspace, error) {
	r.byID[ws.ID] = ws
	return ws, nil
}

var _ WorkspaceRepository = (*fakeWorkspaceRepo)(nil)

func TestWorkspaceServiceCreateRejectsUnauthenticatedActor(t *testing.T) {
	svc := NewWorkspaceService(newFakeWorkspaceRepo())
	_, err := svc.Create(context.Background(), Actor{}, CreateWorkspaceRequest{Name: "docs"})
	require.Error(t, err)
}

func TestWorkspaceServiceCreateRejectsEmptyName(t *testing.T) {
	svc := NewWorkspaceService(newFakeWorkspaceRepo())
	_, err := svc.Create(context.Background(), Actor{UserID: 1, Authenticated: true}, CreateWorkspaceRequest{Name: "   "})
	require.Error(t, err)
}

func TestWorkspaceServiceCreateRejectsInvalidVisibility(t *testing.T) {
	svc := NewWorkspaceService(newFakeWorkspaceRepo())
	_, err := svc.Create(context.Background(), Actor{UserID: 1, Authenticated: true}, CreateWorkspaceRequest{
		Name:       "docs",
		Visibility: Visibility("BOGUS"),
	})
	require.Error(t, err)
}

func TestWorkspaceServiceCreateDefaultsToPrivateVisibility(t *testing.T) {
	repo := newFakeWorkspaceRepo()
	svc := NewWorkspaceService(repo)
	ws, err := svc.Create(context.Background(), Actor{UserID: 1, Authenticated: true}, CreateWorkspaceRequest{Name: "docs"})
	require.NoError(t, err)
	require.Equal(t, VisibilityPrivate, ws.Visibility)
	require.Equal(t, int64(1), ws.OwnerUserID)
	require.NotEqual(t, uuid.Nil, ws.ID)
}

func TestWorkspaceServiceGetReturnsNotFound(t *testing.T) {
	svc := NewWorkspaceService(newFakeWorkspaceRepo())
	_, err := svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestWorkspaceServiceUpdateACLRejectsNonOwner(t *testing.T) {
	repo := newFakeWorkspaceRepo()
	owner := Actor{UserID: 1, Authenticated: true}
	svc := NewWorkspaceService(repo)
	ws, err := svc.Create(context.Background(), owner, CreateWorkspaceRequest{Name: "docs"})
	require.NoError(t, err)

	_, err = svc.UpdateACL(context.Background(), Actor{UserID: 2, Authenticated: true}, ws.ID, VisibilityShared, nil)
	require.Error(t, err)
}

func TestWorkspaceServiceUpdateACLAllowsAdmin(t *testing.T) {
	repo := newFakeWorkspaceRepo()
	owner := Actor{UserID: 1, Authenticated: true}
	svc := NewWorkspaceService(repo)
	ws, err := svc.Create(context.Background(), owner, CreateWorkspaceRequest{Name: "docs"})
	require.NoError(t, err)

	admin := Actor{UserID: 99, Authenticated: true, Role: "admin"}
	acl := &WorkspaceACL{AllowedRoles: []string{"editor"}}
	updated, err := svc.UpdateACL(context.Background(), admin, ws.ID, VisibilityOrgRead, acl)
	require.NoError(t, err)
	require.Equal(t, VisibilityOrgRead, updated.Visibility)
	require.Equal(t, acl, updated.ACL)
}

func TestWorkspaceServiceUpdateACLRejectsInvalidVisibility(t *testing.T) {
	repo := newFakeWorkspaceRepo()
	owner := Actor{UserID: 1, Authenticated: true}
	svc := NewWorkspaceService(repo)
	ws, err := svc.Create(context.Background(), owner, CreateWorkspaceRequest{Name: "docs"})
	require.NoError(t, err)

	_, err = svc.UpdateACL(context.Background(), owner, ws.ID, Visibility("BOGUS"), nil)
	require.Error(t, err)
}

func TestWorkspaceServiceArchiveRequiresOwnerOrAdmin(t *testing.T) {
	repo := newFakeWorkspaceRepo()
	owner := Actor{UserID: 1, Authenticated: true}
	svc := NewWorkspaceService(repo)
	ws, err := svc.Create(context.Background(), owner, CreateWorkspaceRequest{Name: "docs"})
	require.NoError(t, err)

	err = svc.Archive(context.Background(), Actor{UserID: 2, Authenticated: true}, ws.ID)
	require.Error(t, err)

	err = svc.Archive(context.Background(), owner, ws.ID)
	require.NoError(t, err)
}
