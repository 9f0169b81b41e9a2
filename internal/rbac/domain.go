package rbac

import (
	"errors"
	"strings"
)

// Roles supported by the platform. Each user carries exactly one.
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleEmployee = "employee"
	RoleUser     = "user"
)

// Effect of a per-user override.
const (
	EffectGrant  = "grant"
	EffectRevoke = "revoke"
)

var (
	// ErrForbidden indicates a valid principal with an insufficient
	// permission set.
	ErrForbidden = errors.New("rbac: forbidden")
	// ErrResolution indicates the override store was unreachable. Callers
	// must never convert this into an implicit allow.
	ErrResolution = errors.New("rbac: permission resolution failed")
	// ErrUnknownRole indicates a role outside the static catalog.
	ErrUnknownRole = errors.New("rbac: unknown role")
	// ErrUnknownPermission indicates a permission outside the static catalog.
	ErrUnknownPermission = errors.New("rbac: unknown permission")
)

// Override is a per-user grant or revoke layered on the role defaults.
type Override struct {
	UserID     int64  `json:"user_id"`
	Permission string `json:"permission"`
	Effect     string `json:"effect"`
}

// PermissionSet is a resolved effective permission set. Treat as read-only:
// instances are shared between the cache and its callers.
type PermissionSet map[string]struct{}

// Has reports whether the set contains the permission.
func (s PermissionSet) Has(permission string) bool {
	_, ok := s[permission]
	return ok
}

// HasAll reports whether every permission is present.
func (s PermissionSet) HasAll(permissions []string) bool {
	for _, p := range permissions {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one permission is present.
func (s PermissionSet) HasAny(permissions []string) bool {
	for _, p := range permissions {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// Keys returns the permissions in the set, unordered.
func (s PermissionSet) Keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}

// ValidRole reports whether the role is part of the static catalog.
func ValidRole(role string) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleAdmin, RoleManager, RoleEmployee, RoleUser:
		return true
	}
	return false
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if _, ok := unique[p]; ok {
			continue
		}
		unique[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
