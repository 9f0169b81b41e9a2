package rbac_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rising-bsm/rising/internal/rbac"
	_ "github.com/rising-bsm/rising/testing"
)

type stubOverrides struct {
	granted []string
	revoked []string
	err     error
	calls   int
}

func (s *stubOverrides) UserOverrides(ctx context.Context, userID int64) ([]string, []string, error) {
	s.calls++
	return s.granted, s.revoked, s.err
}

func TestResolveRoleDefaultsOnly(t *testing.T) {
	resolver := rbac.NewResolver(&stubOverrides{})

	set, err := resolver.Resolve(context.Background(), 7, rbac.RoleEmployee)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, p := range []string{rbac.PermRequestsView, rbac.PermCustomersView, rbac.PermDashboardView} {
		if !set.Has(p) {
			t.Fatalf("employee defaults should include %s", p)
		}
	}
	if set.Has(rbac.PermRequestsManage) {
		t.Fatalf("employee defaults must not include %s", rbac.PermRequestsManage)
	}
	if len(set) != 5 {
		t.Fatalf("expected 5 employee defaults, got %d", len(set))
	}
}

func TestResolveAppliesOverrides(t *testing.T) {
	store := &stubOverrides{
		granted: []string{rbac.PermRequestsManage},
		revoked: []string{rbac.PermInvoicesView},
	}
	resolver := rbac.NewResolver(store)

	set, err := resolver.Resolve(context.Background(), 7, rbac.RoleEmployee)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !set.Has(rbac.PermRequestsManage) {
		t.Fatalf("granted permission should be present")
	}
	if set.Has(rbac.PermInvoicesView) {
		t.Fatalf("revoked permission should be absent")
	}
}

func TestResolveRevokeWinsOverGrant(t *testing.T) {
	store := &stubOverrides{
		granted: []string{rbac.PermUsersEdit},
		revoked: []string{rbac.PermUsersEdit},
	}
	resolver := rbac.NewResolver(store)

	set, err := resolver.Resolve(context.Background(), 7, rbac.RoleManager)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if set.Has(rbac.PermUsersEdit) {
		t.Fatalf("a revoke must win over a grant for the same permission")
	}
}

func TestResolveUnknownRole(t *testing.T) {
	resolver := rbac.NewResolver(&stubOverrides{})

	if _, err := resolver.Resolve(context.Background(), 7, "superuser"); !errors.Is(err, rbac.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestResolveStoreFailure(t *testing.T) {
	resolver := rbac.NewResolver(&stubOverrides{err: errors.New("connection refused")})

	if _, err := resolver.Resolve(context.Background(), 7, rbac.RoleUser); !errors.Is(err, rbac.ErrResolution) {
		t.Fatalf("expected an ErrResolution-wrapped error, got %v", err)
	}
}

func TestRoleUserHasNoDefaults(t *testing.T) {
	resolver := rbac.NewResolver(&stubOverrides{})

	set, err := resolver.Resolve(context.Background(), 7, rbac.RoleUser)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("role user should start with an empty set, got %v", set.Keys())
	}
}
