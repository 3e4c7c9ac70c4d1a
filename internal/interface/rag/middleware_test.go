package rag

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/auth"
)

type fakeAuthService struct {
	claims    auth.Claims
	claimsErr error
}

func (f fakeAuthService) Register(context.Context, auth.RegisterRequest) (auth.UserView, error) {
	return auth.UserView{}, nil
}
func (f fakeAuthService) Login(context.Context, auth.LoginRequest) (auth.LoginResponse, error) {
	return auth.LoginResponse{}, nil
}
func (f fakeAuthService) GoogleAuthURL(context.Context, string, string) (string, error) {
	return "", nil
}
func (f fakeAuthService) GoogleCallback(context.Context, string, string) (auth.LoginResponse, error) {
	return auth.LoginResponse{}, nil
}
func (f fakeAuthService) ValidateToken(context.Context, string) (auth.Claims, error) {
	return f.claims, f.claimsErr
}
func (f fakeAuthService) Refresh(context.Context, string) (auth.LoginResponse, error) {
	return auth.LoginResponse{}, nil
}
func (f fakeAuthService) Profile(context.Context, int64) (auth.UserView, error) {
	return auth.UserView{}, nil
}
func (f fakeAuthService) Logout(context.Context, int64) error { return nil }

var _ auth.Service = fakeAuthService{}

func TestAuthMiddlewarePassesThroughWithNoHeader(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, ok := claimsFromContext(r.Context())
		require.False(t, ok)
	})
	mw := authMiddleware(fakeAuthService{}, testLogger())
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	require.True(t, called)
}

func TestAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	mw := authMiddleware(fakeAuthService{}, testLogger())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next should not be called")
	})
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "not-bearer")
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareAttachesClaimsForValidToken(t *testing.T) {
	claims := auth.Claims{UserID: 7, Role: "member"}
	mw := authMiddleware(fakeAuthService{claims: claims}, testLogger())
	var gotClaims auth.Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := claimsFromContext(r.Context())
		require.True(t, ok)
		gotClaims = c
	})
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	require.Equal(t, claims, gotClaims)
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	mw := requireAuth(testLogger())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next should not be called")
	})
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthAllowsAuthenticated(t *testing.T) {
	mw := requireAuth(testLogger())
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	req := httptest.NewRequest("GET", "/", nil).WithContext(withClaims(context.Background(), auth.Claims{UserID: 1}))
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	require.True(t, called)
}

func TestCORSMiddlewareAllowsWildcard(t *testing.T) {
	mw := corsMiddleware([]string{"*"})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddlewareShortCircuitsOptions(t *testing.T) {
	mw := corsMiddleware([]string{"https://example.com"})
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	req := httptest.NewRequest("OPTIONS", "/", nil)
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	require.False(t, called)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIPRateLimiterExhaustsBurst(t *testing.T) {
	limiter := newIPRateLimiter(60, 2)
	require.True(t, limiter.allow("1.2.3.4"))
	require.True(t, limiter.allow("1.2.3.4"))
	require.False(t, limiter.allow("1.2.3.4"))
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	require.Equal(t, "203.0.113.5", clientIP(req))
}

func TestRecoverMiddlewareTurnsPanicInto500(t *testing.T) {
	mw := recoverMiddleware(testLogger())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
