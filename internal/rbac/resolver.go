package rbac

import (
	"context"
	"fmt"
	"strings"
)

// OverrideStore loads per-user permission overrides. Reads are idempotent;
// the resolver makes no writes.
type OverrideStore interface {
	UserOverrides(ctx context.Context, userID int64) (granted, revoked []string, err error)
}

// Resolver computes the effective permission set for a user:
// (role defaults ∪ explicit grants) − explicit revokes. Deterministic given
// identical catalog and override inputs.
type Resolver struct {
	store OverrideStore
}

// NewResolver constructs a Resolver.
func NewResolver(store OverrideStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the effective permission set. A store failure yields an
// error wrapping ErrResolution; callers must deny on that error.
func (r *Resolver) Resolve(ctx context.Context, userID int64, role string) (PermissionSet, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	defaults, err := RoleDefaults(role)
	if err != nil {
		return nil, err
	}
	granted, revoked, err := r.store.UserOverrides(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load overrides for user %d: %v", ErrResolution, userID, err)
	}

	set := make(PermissionSet, len(defaults)+len(granted))
	for _, p := range defaults {
		set[p] = struct{}{}
	}
	for _, p := range normalizePermissions(granted) {
		set[p] = struct{}{}
	}
	for _, p := range normalizePermissions(revoked) {
		delete(set, p)
	}
	return set, nil
}
