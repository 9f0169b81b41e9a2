package rbac_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rising-bsm/rising/internal/auth"
	"github.com/rising-bsm/rising/internal/rbac"
	_ "github.com/rising-bsm/rising/testing"
)

func newGate(t *testing.T, store rbac.OverrideStore, adminBypass bool, opts ...rbac.GateOption) *rbac.Gate {
	t.Helper()
	resolver := rbac.NewResolver(store)
	cache := rbac.NewPermissionCache(time.Minute)
	return rbac.NewGate(resolver, cache, adminBypass, nil, opts...)
}

func TestGateAdminBypassSkipsResolver(t *testing.T) {
	store := &stubOverrides{}
	var decisions []string
	gate := newGate(t, store, true, rbac.WithDecisionObserver(func(d string) {
		decisions = append(decisions, d)
	}))
	admin := auth.Principal{UserID: 1, Role: rbac.RoleAdmin}

	err := gate.Authorize(context.Background(), admin, []string{rbac.PermUsersEdit, rbac.PermPermissionsEdit}, rbac.ModeAll)
	if err != nil {
		t.Fatalf("admin should be authorized: %v", err)
	}
	if store.calls != 0 {
		t.Fatalf("bypass must not consult the override store, got %d calls", store.calls)
	}
	if len(decisions) != 1 || decisions[0] != "bypass" {
		t.Fatalf("expected a bypass decision, got %v", decisions)
	}
}

func TestGateAdminWithoutBypassStillResolves(t *testing.T) {
	store := &stubOverrides{}
	gate := newGate(t, store, false)
	admin := auth.Principal{UserID: 1, Role: rbac.RoleAdmin}

	if err := gate.Authorize(context.Background(), admin, []string{rbac.PermUsersEdit}, rbac.ModeAll); err != nil {
		t.Fatalf("admin defaults cover the catalog: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected one resolver call, got %d", store.calls)
	}
}

func TestGateDeniesMissingPermission(t *testing.T) {
	gate := newGate(t, &stubOverrides{}, true)
	employee := auth.Principal{UserID: 7, Role: rbac.RoleEmployee}

	err := gate.Authorize(context.Background(), employee, []string{rbac.PermRequestsManage}, rbac.ModeAll)
	if !errors.Is(err, rbac.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestGateGrantTakesEffectAfterInvalidation(t *testing.T) {
	store := &stubOverrides{}
	gate := newGate(t, store, true)
	employee := auth.Principal{UserID: 7, Role: rbac.RoleEmployee}
	ctx := context.Background()
	required := []string{rbac.PermRequestsManage}

	if err := gate.Authorize(ctx, employee, required, rbac.ModeAll); !errors.Is(err, rbac.ErrForbidden) {
		t.Fatalf("expected a denial before the grant, got %v", err)
	}

	store.granted = []string{rbac.PermRequestsManage}
	gate.InvalidateUser(employee.UserID)

	if err := gate.Authorize(ctx, employee, required, rbac.ModeAll); err != nil {
		t.Fatalf("grant should authorize after invalidation: %v", err)
	}
}

func TestGateModeAny(t *testing.T) {
	gate := newGate(t, &stubOverrides{}, true)
	employee := auth.Principal{UserID: 7, Role: rbac.RoleEmployee}
	ctx := context.Background()
	mixed := []string{rbac.PermRequestsManage, rbac.PermRequestsView}

	if err := gate.Authorize(ctx, employee, mixed, rbac.ModeAny); err != nil {
		t.Fatalf("one held permission should satisfy ModeAny: %v", err)
	}
	if err := gate.Authorize(ctx, employee, mixed, rbac.ModeAll); !errors.Is(err, rbac.ErrForbidden) {
		t.Fatalf("ModeAll should still deny, got %v", err)
	}
}

func TestGateEmptyRequirementAllows(t *testing.T) {
	store := &stubOverrides{}
	gate := newGate(t, store, false)
	user := auth.Principal{UserID: 9, Role: rbac.RoleUser}

	if err := gate.Authorize(context.Background(), user, nil, rbac.ModeAll); err != nil {
		t.Fatalf("empty requirements should allow: %v", err)
	}
	if store.calls != 0 {
		t.Fatalf("empty requirements should not hit the resolver")
	}
}

func TestGateStoreFailureDenies(t *testing.T) {
	store := &stubOverrides{err: errors.New("connection refused")}
	var decisions []string
	gate := newGate(t, store, true, rbac.WithDecisionObserver(func(d string) {
		decisions = append(decisions, d)
	}))
	employee := auth.Principal{UserID: 7, Role: rbac.RoleEmployee}

	err := gate.Authorize(context.Background(), employee, []string{rbac.PermRequestsView}, rbac.ModeAll)
	if !errors.Is(err, rbac.ErrResolution) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
	if len(decisions) != 1 || decisions[0] != "error" {
		t.Fatalf("expected an error decision, got %v", decisions)
	}
}

func TestGateEffectivePermissionsIgnoresBypass(t *testing.T) {
	store := &stubOverrides{}
	gate := newGate(t, store, true)
	admin := auth.Principal{UserID: 1, Role: rbac.RoleAdmin}

	set, err := gate.EffectivePermissions(context.Background(), admin)
	if err != nil {
		t.Fatalf("effective permissions: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("listing the set must resolve for real, got %d calls", store.calls)
	}
	if len(set) != len(rbac.Catalog()) {
		t.Fatalf("admin defaults should cover the whole catalog, got %d", len(set))
	}
}
