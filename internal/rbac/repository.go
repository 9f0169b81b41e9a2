package rbac

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore provides PostgreSQL backed persistence for permission overrides
// and role assignments.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a store.
func NewStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// UserOverrides loads the explicit grants and revokes for a user.
func (s *PgStore) UserOverrides(ctx context.Context, userID int64) (granted, revoked []string, err error) {
	rows, err := s.pool.Query(ctx, `SELECT permission, effect FROM user_permission_overrides WHERE user_id = $1 ORDER BY permission`, userID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var permission, effect string
		if err := rows.Scan(&permission, &effect); err != nil {
			return nil, nil, err
		}
		switch effect {
		case EffectGrant:
			granted = append(granted, permission)
		case EffectRevoke:
			revoked = append(revoked, permission)
		}
	}
	return granted, revoked, rows.Err()
}

// ListOverrides returns every override row for a user.
func (s *PgStore) ListOverrides(ctx context.Context, userID int64) ([]Override, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id, permission, effect FROM user_permission_overrides WHERE user_id = $1 ORDER BY permission`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var overrides []Override
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.UserID, &o.Permission, &o.Effect); err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// UpsertOverride stores a grant or revoke for (user, permission), replacing
// any previous effect.
func (s *PgStore) UpsertOverride(ctx context.Context, userID int64, permission, effect string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO user_permission_overrides (user_id, permission, effect, created_at) VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, permission) DO UPDATE SET effect = EXCLUDED.effect, created_at = NOW()`, userID, permission, effect)
	return err
}

// DeleteOverride removes the override for (user, permission).
func (s *PgStore) DeleteOverride(ctx context.Context, userID int64, permission string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM user_permission_overrides WHERE user_id = $1 AND permission = $2`, userID, permission)
	return err
}

// SetUserRole updates the user's primary role.
func (s *PgStore) SetUserRole(ctx context.Context, userID int64, role string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, userID, role)
	return err
}
