package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rising-bsm/rising/internal/shared"
)

// PgRepository provides PostgreSQL backed persistence for the auth service.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// FindUserByEmail loads an account by lowercase email.
func (r *PgRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, email, name, password_hash, role, is_active, created_at, updated_at FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

// FindUserByID loads an account by primary key.
func (r *PgRepository) FindUserByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, email, name, password_hash, role, is_active, created_at, updated_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// CreateRefreshToken inserts a refresh token record.
func (r *PgRepository) CreateRefreshToken(ctx context.Context, token RefreshToken) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked, created_at) VALUES ($1, $2, $3, $4, false, NOW())`,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt)
	return err
}

// FindRefreshToken loads a refresh token by id.
func (r *PgRepository) FindRefreshToken(ctx context.Context, id string) (*RefreshToken, error) {
	var token RefreshToken
	err := r.pool.QueryRow(ctx, `SELECT id, user_id, token_hash, expires_at, created_at, revoked FROM refresh_tokens WHERE id = $1`, id).
		Scan(&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt, &token.CreatedAt, &token.Revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &token, nil
}

// MarkRefreshTokenRevoked flags a single refresh token as revoked.
func (r *PgRepository) MarkRefreshTokenRevoked(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE refresh_tokens SET revoked = true WHERE id = $1`, id)
	return err
}

// RevokeUserRefreshTokens flags every live refresh token of a user as revoked.
func (r *PgRepository) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE refresh_tokens SET revoked = true WHERE user_id = $1 AND NOT revoked`, userID)
	return err
}

// DeleteExpiredRefreshTokens removes rows whose expiry is in the past.
func (r *PgRepository) DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ActiveUserIDs lists users that logged in since the given instant, most
// recent first. Used by the permission cache warmup job.
func (r *PgRepository) ActiveUserIDs(ctx context.Context, since time.Time, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT user_id FROM refresh_tokens WHERE created_at >= $1 AND NOT revoked ORDER BY user_id LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
