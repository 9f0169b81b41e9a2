package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rising-bsm/rising/internal/shared"
)

// AdminStore describes the writes behind the admin permission endpoints.
type AdminStore interface {
	OverrideStore
	ListOverrides(ctx context.Context, userID int64) ([]Override, error)
	UpsertOverride(ctx context.Context, userID int64, permission, effect string) error
	DeleteOverride(ctx context.Context, userID int64, permission string) error
	SetUserRole(ctx context.Context, userID int64, role string) error
}

// Service carries the admin-facing mutations of the permission model. Every
// mutation invalidates the user's cached permission set before returning, so
// the zero-staleness invariant holds for the response that confirmed the
// write.
type Service struct {
	store  AdminStore
	cache  *PermissionCache
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs the rbac Service.
func NewService(store AdminStore, cache *PermissionCache, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: cache, audit: audit, logger: logger}
}

// Grant adds an explicit grant override for the user.
func (s *Service) Grant(ctx context.Context, actorID, userID int64, permission string) error {
	permission, err := validPermission(permission)
	if err != nil {
		return err
	}
	if err := s.store.UpsertOverride(ctx, userID, permission, EffectGrant); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	s.recordAudit(ctx, actorID, shared.AuditActionPermissionGrant, userID, map[string]any{"permission": permission})
	return nil
}

// Revoke adds an explicit revoke override for the user.
func (s *Service) Revoke(ctx context.Context, actorID, userID int64, permission string) error {
	permission, err := validPermission(permission)
	if err != nil {
		return err
	}
	if err := s.store.UpsertOverride(ctx, userID, permission, EffectRevoke); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	s.recordAudit(ctx, actorID, shared.AuditActionPermissionRevoke, userID, map[string]any{"permission": permission})
	return nil
}

// ClearOverride removes an override, restoring the role default for that
// permission.
func (s *Service) ClearOverride(ctx context.Context, actorID, userID int64, permission string) error {
	permission, err := validPermission(permission)
	if err != nil {
		return err
	}
	if err := s.store.DeleteOverride(ctx, userID, permission); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	return nil
}

// SetRole changes the user's primary role.
func (s *Service) SetRole(ctx context.Context, actorID, userID int64, role string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if !ValidRole(role) {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	if err := s.store.SetUserRole(ctx, userID, role); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	s.recordAudit(ctx, actorID, shared.AuditActionRoleChange, userID, map[string]any{"role": role})
	return nil
}

// Overrides lists the override rows for a user.
func (s *Service) Overrides(ctx context.Context, userID int64) ([]Override, error) {
	return s.store.ListOverrides(ctx, userID)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, userID int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func validPermission(permission string) (string, error) {
	permission = strings.ToLower(strings.TrimSpace(permission))
	if !KnownPermission(permission) {
		return "", fmt.Errorf("%w: %s", ErrUnknownPermission, permission)
	}
	return permission, nil
}
