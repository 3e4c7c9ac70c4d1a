package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/auth"
	domrag "github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

type fakeWorkspaceRepo struct {
	byID map[uuid.UUID]domrag.Workspace
}

func newFakeWorkspaceRepo() *fakeWorkspaceRepo {
	return &fakeWorkspaceRepo{byID: make(map[uuid.UUID]domrag.Workspace)}
}

func (r *fakeWorkspaceRepo) Create(_ context.Context, ws domrag.Workspace) (domrag.Workspace, error) {
	r.byID[ws.ID] = ws
	return ws, nil
}

func (r *fakeWorkspaceRepo) Get(_ context.Context, id uuid.UUID) (domrag.Workspace, bool, error) {
	ws, ok := r.byID[id]
	return ws, ok, nil
}

func (r *fakeWorkspaceRepo) Archive(_ context.Context, id uuid.UUID) error {
	delete(r.byID, id)
	return nil
}

func (r *fakeWorkspaceRepo) Update(_ context.Context, ws domrag.Workspace) (domrag.Workspace, error) {
	r.byID[ws.ID] = ws
	return ws, nil
}

func newTestHandler(repo *fakeWorkspaceRepo) *Handler {
	return &Handler{
		auth:       fakeAuthService{},
		workspaces: domrag.NewWorkspaceService(repo),
		logger:     testLogger(),
	}
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateWorkspaceRequiresAuthentication(t *testing.T) {
	h := newTestHandler(newFakeWorkspaceRepo())
	req := httptest.NewRequest("POST", "/api/v1/workspaces", strings.NewReader(`{"name":"docs"}`))
	rec := httptest.NewRecorder()
	h.CreateWorkspace(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateWorkspaceSucceedsForAuthenticatedActor(t *testing.T) {
	h := newTestHandler(newFakeWorkspaceRepo())
	req := httptest.NewRequest("POST", "/api/v1/workspaces", strings.NewReader(`{"name":"docs","visibility":"PRIVATE"}`))
	req = req.WithContext(withClaims(req.Context(), auth1()))
	rec := httptest.NewRecorder()
	h.CreateWorkspace(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var ws domrag.Workspace
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ws))
	require.Equal(t, "docs", ws.Name)
	require.Equal(t, domrag.VisibilityPrivate, ws.Visibility)
}

func TestCreateWorkspaceRejectsInvalidBody(t *testing.T) {
	h := newTestHandler(newFakeWorkspaceRepo())
	req := httptest.NewRequest("POST", "/api/v1/workspaces", strings.NewReader(`{bad json`))
	req = req.WithContext(withClaims(req.Context(), auth1()))
	rec := httptest.NewRecorder()
	h.CreateWorkspace(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetWorkspaceReturnsNotFound(t *testing.T) {
	h := newTestHandler(newFakeWorkspaceRepo())
	req := httptest.NewRequest("GET", "/api/v1/workspaces/"+uuid.New().String(), nil)
	req = withChiParam(req, "workspaceID", uuid.New().String())
	rec := httptest.NewRecorder()
	h.GetWorkspace(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetWorkspaceRejectsMalformedID(t *testing.T) {
	h := newTestHandler(newFakeWorkspaceRepo())
	req := httptest.NewRequest("GET", "/api/v1/workspaces/not-a-uuid", nil)
	req = withChiParam(req, "workspaceID", "not-a-uuid")
	rec := httptest.NewRecorder()
	h.GetWorkspace(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArchiveWorkspaceRejectsNonOwner(t *testing.T) {
	repo := newFakeWorkspaceRepo()
	h := newTestHandler(repo)

	createReq := httptest.NewRequest("POST", "/api/v1/workspaces", strings.NewReader(`{"name":"docs"}`))
	createReq = createReq.WithContext(withClaims(createReq.Context(), auth1()))
	createRec := httptest.NewRecorder()
	h.CreateWorkspace(createRec, createReq)
	require.Equal(t, http.StatusCreated, createRec.Code)
	var ws domrag.Workspace
	require.NoError(t, json.NewDecoder(createRec.Body).Decode(&ws))

	archiveReq := httptest.NewRequest("DELETE", "/api/v1/workspaces/"+ws.ID.String(), nil)
	archiveReq = withChiParam(archiveReq, "workspaceID", ws.ID.String())
	archiveReq = archiveReq.WithContext(withClaims(archiveReq.Context(), auth2()))
	archiveRec := httptest.NewRecorder()
	h.ArchiveWorkspace(archiveRec, archiveReq)
	require.Equal(t, http.StatusForbidden, archiveRec.Code)
}

func auth1() auth.Claims { return auth.Claims{UserID: 1} }
func auth2() auth.Claims { return auth.Claims{UserID: 2} }
