package authz

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
	apperrors "github.com/saintwyss/rag-corp-sub003/pkg/errors"
)

type fakeWorkspaceRepo struct {
	workspaces map[uuid.UUID]rag.Workspace
}

func newFakeWorkspaceRepo(ws ...rag.Workspace) *fakeWorkspaceRepo {
	r := &fakeWorkspaceRepo{workspaces: make(map[uuid.UUID]rag.Workspace)}
	for _, w := range ws {
		r.workspaces[w.ID] = w
	}
	return r
}

func (r *fakeWorkspaceRepo) Create(_ context.Context, ws rag.Workspace) (rag.Workspace, error) {
	r.workspaces[ws.ID] = ws
	return ws, nil
}

func (r *fakeWorkspaceRepo) Get(_ context.Context, id uuid.UUID) (rag.Workspace, bool, error) {
	ws, ok := r.workspaces[id]
	return ws, ok, nil
}

func (r *fakeWorkspaceRepo) Archive(_ context.Context, id uuid.UUID) error {
	ws := r.workspaces[id]
	now := time.Unix(0, 0)
	ws.ArchivedAt = &now
	r.workspaces[id] = ws
	return nil
}

func (r *fakeWorkspaceRepo) Update(_ context.Context, ws rag.Workspace) (rag.Workspace, error) {
	r.workspaces[ws.ID] = ws
	return ws, nil
}

func owner() Actor    { return Actor{UserID: 1, Authenticated: true} }
func admin() Actor    { return Actor{UserID: 99, Role: RoleAdmin, Authenticated: true} }
func stranger() Actor { return Actor{UserID: 2, Authenticated: true} }
func anon() Actor     { return Actor{} }

func archivedTime() *time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestResolveForReadAllowsAdminEvenWhenNotOwnerOrACLMember(t *testing.T) {
	ws := rag.Workspace{ID: uuid.New(), OwnerUserID: 1, Visibility: rag.VisibilityPrivate}
	r := NewResolver(newFakeWorkspaceRepo(ws))
	got, err := r.ResolveForRead(context.Background(), ws.ID, admin())
	require.NoError(t, err)
	require.Equal(t, ws.ID, got.ID)
}

// TestResolveForReadAllowsAdminEvenWhenArchived documents that the admin
// bypass takes priority over the archived gate for reads.
func TestResolveForReadAllowsAdminEvenWhenArchived(t *testing.T) {
	ws := rag.Workspace{ID: uuid.New(), OwnerUserID: 1, Visibility: rag.VisibilityPrivate, ArchivedAt: archivedTime()}
	r := NewResolver(newFakeWorkspaceRepo(ws))
	got, err := r.ResolveForRead(context.Background(), ws.ID, admin())
	require.NoError(t, err)
	require.Equal(t, ws.ID, got.ID)
}

func TestResolveForReadDeniesOwnerWhenWorkspaceArchived(t *testing.T) {
	ws := rag.Workspace{ID: uuid.New(), OwnerUserID: 1, Visibility: rag.VisibilityPrivate, ArchivedAt: archivedTime()}
	r := NewResolver(newFakeWorkspaceRepo(ws))
	_, err := r.ResolveForRead(context.Background(), ws.ID, owner())
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestResolveForReadAllowsOwner(t *testing.T) {
	ws := rag.Workspace{ID: uuid.New(), OwnerUserID: 1, Visibility: rag.VisibilityPrivate}
	r := NewResolver(newFakeWorkspaceRepo(ws))
	got, err := r.ResolveForRead(context.Background(), ws.ID, owner())
	require.NoError(t, err)
	require.Equal(t, ws.ID, got.ID)
}

func TestResolveForReadDeniesStrangerOnPrivateWorkspace(t *testing.T) {
	ws := rag.Workspace{ID: uuid.New(), OwnerUserID: 1, Visibility: rag.VisibilityPrivate}
	r := NewResolver(newFakeWorkspaceRepo(ws))
	_, err := r.ResolveForRead(context.Background(), ws.ID, stranger())
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestResolveForReadAllowsAnyAuthenticatedActorOnOrgReadWorkspace(t *testing.T) {
	ws := rag.Workspace{ID: uuid.New(), OwnerUserID: 1, Visibility: rag.VisibilityOrgRead}
	r := NewResolver(newFakeWorkspaceRepo(ws))
	got, err := r.ResolveForRead(context.Background(), ws.ID, stranger())
	require.NoError(t, err)
	require.Equal(t, ws.ID, got.ID)
}

func TestResolveForReadDeniesUnauthenticatedActorOnOrgReadWorkspace(t *testing.T) {
	ws := rag.Workspace{ID: uuid.New(), OwnerUserID: 1, Visibility: rag.VisibilityOrgRead}
	r := NewResolver(newFakeWorkspaceRepo(ws))
	_, err := r.ResolveForRead(context.Background(), ws.ID, anon())
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestResolveForReadAllowsACLGrantedUserOnSharedWorkspace(t *testing.T) {
	grantee := Actor{UserID: 42, Authenticated: true}
	ws := rag.Workspace{ID: uuid.New(), OwnerUserID: 1, Visibility: rag.VisibilityShared, ACL: &rag.WorkspaceACL{AllowedUserIDs: []int64{42}}}
	r := NewResolver(newFakeWorkspaceRepo(ws))
	got, err := r.ResolveForRead(context.Background(), ws.ID, grantee)
	require.NoError(t, err)
	require.Equal(t, ws.ID, got.ID)
}

func TestResolveForReadDeniesNonGrantedUserOnSharedWorkspace(t *testing.T) {
	ws := rag.Workspace{ID: uuid.New(), OwnerUserID: 1, Visibility: rag.VisibilityShared, ACL: &rag.WorkspaceACL{AllowedUserIDs: []int64{42}}}
	r := NewResolver(newFakeWorkspaceRepo(ws))
	_, err := r.ResolveForRead(context.Background(), ws.ID, stranger())
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestResolveForReadReturnsNotFoundWhenWorkspaceMissing(t *testing.T) {
	r := NewResolver(newFakeWorkspaceRepo())
	_, err := r.ResolveForRead(context.Background(), uuid.New(), owner())
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestResolveForWriteAllowsOwner(t *testing.T) {
	ws := rag.Workspace{ID: uuid.New(), OwnerUserID: 1, Visibility: rag.VisibilityPrivate}
	r := NewResolver(newFakeWorkspaceRepo(ws))
	got, err := r.ResolveForWrite(context.Background(), ws.ID, owner())
	require.NoError(t, err)
	require.Equal(t, ws.ID, got.ID)
}

func TestResolveForWriteAllowsAdmin(t *testing.T) {
	ws := rag.Workspace{ID: uuid.New(), OwnerUserID: 1, Visibility: rag.VisibilityPrivate}
	r := NewResolver(newFakeWorkspaceRepo(ws))
	got, err := r.ResolveForWrite(context.Background(), ws.ID, admin())
	require.NoError(t, err)
	require.Equal(t, ws.ID, got.ID)
}

// TestResolveForWriteDeniesACLGrantedUserOnSharedWorkspace is the
// write-privilege-escalation regression: ACL grantees of a SHARED workspace
// may read but must never write.
func TestResolveForWriteDeniesACLGrantedUserOnSharedWorkspace(t *testing.T) {
	grantee := Actor{UserID: 42, Authenticated: true}
	ws := rag.Workspace{ID: uuid.New(), OwnerUserID: 1, Visibility: rag.VisibilityShared, ACL: &rag.WorkspaceACL{AllowedUserIDs: []int64{42}}}
	r := NewResolver(newFakeWorkspaceRepo(ws))
	_, err := r.ResolveForWrite(context.Background(), ws.ID, grantee)
	require.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestResolveForWriteDeniesStranger(t *testing.T) {
	ws := rag.Workspace{ID: uuid.New(), OwnerUserID: 1, Visibility: rag.VisibilityOrgRead}
	r := NewResolver(newFakeWorkspaceRepo(ws))
	_, err := r.ResolveForWrite(context.Background(), ws.ID, stranger())
	require.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestResolveForWriteReturnsNotFoundForArchivedOwnerWorkspace(t *testing.T) {
	ws := rag.Workspace{ID: uuid.New(), OwnerUserID: 1, Visibility: rag.VisibilityPrivate, ArchivedAt: archivedTime()}
	r := NewResolver(newFakeWorkspaceRepo(ws))
	_, err := r.ResolveForWrite(context.Background(), ws.ID, owner())
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestResolveForWriteReturnsConflictForArchivedAdminWorkspace(t *testing.T) {
	ws := rag.Workspace{ID: uuid.New(), OwnerUserID: 1, Visibility: rag.VisibilityPrivate, ArchivedAt: archivedTime()}
	r := NewResolver(newFakeWorkspaceRepo(ws))
	_, err := r.ResolveForWrite(context.Background(), ws.ID, admin())
	require.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestResolveForWriteReturnsNotFoundWhenWorkspaceMissing(t *testing.T) {
	r := NewResolver(newFakeWorkspaceRepo())
	_, err := r.ResolveForWrite(context.Background(), uuid.New(), owner())
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}
