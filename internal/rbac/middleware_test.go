package rbac_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rising-bsm/rising/internal/auth"
	"github.com/rising-bsm/rising/internal/rbac"
	_ "github.com/rising-bsm/rising/testing"
)

func newMiddleware(t *testing.T, store rbac.OverrideStore) rbac.Middleware {
	t.Helper()
	resolver := rbac.NewResolver(store)
	cache := rbac.NewPermissionCache(time.Minute)
	return rbac.Middleware{Gate: rbac.NewGate(resolver, cache, true, nil)}
}

func protectedRequest(t *testing.T, mw func(http.Handler) http.Handler, principal *auth.Principal) *httptest.ResponseRecorder {
	t.Helper()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if principal != nil {
		req = req.WithContext(auth.ContextWithPrincipal(req.Context(), *principal))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRequireAllWithoutPrincipal(t *testing.T) {
	mw := newMiddleware(t, &stubOverrides{})

	rec := protectedRequest(t, mw.RequireAll(rbac.PermUsersView), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAllForbidden(t *testing.T) {
	mw := newMiddleware(t, &stubOverrides{})
	employee := auth.Principal{UserID: 7, Role: rbac.RoleEmployee}

	rec := protectedRequest(t, mw.RequireAll(rbac.PermRequestsManage), &employee)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireAllAllowed(t *testing.T) {
	mw := newMiddleware(t, &stubOverrides{})
	manager := auth.Principal{UserID: 3, Role: rbac.RoleManager}

	rec := protectedRequest(t, mw.RequireAll(rbac.PermRequestsView, rbac.PermRequestsManage), &manager)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestRequireAnyAllowsPartialHold(t *testing.T) {
	mw := newMiddleware(t, &stubOverrides{})
	employee := auth.Principal{UserID: 7, Role: rbac.RoleEmployee}

	rec := protectedRequest(t, mw.RequireAny(rbac.PermRequestsManage, rbac.PermRequestsView), &employee)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestRequireAllStoreFailureIsServerError(t *testing.T) {
	store := &stubOverrides{err: errTimeout{}}
	mw := newMiddleware(t, store)
	employee := auth.Principal{UserID: 7, Role: rbac.RoleEmployee}

	rec := protectedRequest(t, mw.RequireAll(rbac.PermRequestsView), &employee)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("resolution failure must not allow, expected 500 got %d", rec.Code)
	}
}

type errTimeout struct{}

func (errTimeout) Error() string { return "i/o timeout" }
