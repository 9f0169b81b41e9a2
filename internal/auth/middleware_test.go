package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rising-bsm/rising/internal/auth"
	_ "github.com/rising-bsm/rising/testing"
)

func newAuthenticator(t *testing.T, opts ...auth.VerifierOption) (*auth.Authenticator, *auth.Verifier, *auth.RevocationRegistry) {
	t.Helper()
	v, err := auth.NewVerifier(testSecret, 15*time.Minute, opts...)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	mr := miniredis.RunT(t)
	registry := auth.NewRevocationRegistry(redis.NewClient(&redis.Options{Addr: mr.Addr()}), true, nil)
	return auth.NewAuthenticator(v, registry, nil), v, registry
}

// protect wraps a terminal handler that records the principal it sees.
func protect(a *auth.Authenticator, seen *auth.Principal) http.Handler {
	return a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
			*seen = principal
		}
		w.WriteHeader(http.StatusNoContent)
	}))
}

func issueToken(t *testing.T, v *auth.Verifier) string {
	t.Helper()
	token, _, err := v.Issue(auth.User{ID: 42, Name: "Dana", Email: "dana@example.com", Role: "manager"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	a, _, _ := newAuthenticator(t)
	var seen auth.Principal

	rec := httptest.NewRecorder()
	protect(a, &seen).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/requests", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if seen.UserID != 0 {
		t.Fatalf("handler must not run without credentials")
	}
}

func TestMiddlewareRejectsGarbageToken(t *testing.T) {
	a, _, _ := newAuthenticator(t)
	var seen auth.Principal

	req := httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	rec := httptest.NewRecorder()
	protect(a, &seen).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddlewareRejectsExpiredToken(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a, v, _ := newAuthenticator(t, auth.WithClock(func() time.Time { return clock }))
	token := issueToken(t, v)
	clock = clock.Add(2 * time.Hour)
	var seen auth.Principal

	req := httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protect(a, &seen).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Token Expired") {
		t.Fatalf("expired tokens should get the expiry problem, got %s", rec.Body.String())
	}
}

func TestMiddlewareRejectsRevokedToken(t *testing.T) {
	a, v, registry := newAuthenticator(t)
	token := issueToken(t, v)
	if err := registry.Revoke(context.Background(), token, time.Now().Add(15*time.Minute), "logout"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	var seen auth.Principal

	req := httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protect(a, &seen).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Token Revoked") {
		t.Fatalf("revoked tokens should get the revocation problem, got %s", rec.Body.String())
	}
	if seen.UserID != 0 {
		t.Fatalf("handler must not run with a revoked token")
	}
}

func TestMiddlewarePropagatesPrincipal(t *testing.T) {
	a, v, _ := newAuthenticator(t)
	token := issueToken(t, v)
	var seen auth.Principal

	req := httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protect(a, &seen).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if seen.UserID != 42 || seen.Role != "manager" || seen.Email != "dana@example.com" {
		t.Fatalf("principal should reach the handler, got %+v", seen)
	}
}

func TestMiddlewareAcceptsCookieToken(t *testing.T) {
	a, v, _ := newAuthenticator(t)
	token := issueToken(t, v)
	var seen auth.Principal

	req := httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	rec := httptest.NewRecorder()
	protect(a, &seen).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 via cookie fallback, got %d", rec.Code)
	}
	if seen.UserID != 42 {
		t.Fatalf("principal should reach the handler, got %+v", seen)
	}
}
