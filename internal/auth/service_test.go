package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rising-bsm/rising/internal/auth"
	"github.com/rising-bsm/rising/internal/shared"
	_ "github.com/rising-bsm/rising/testing"
)

type memoryRepo struct {
	users  map[int64]*auth.User
	tokens map[string]*auth.RefreshToken
}

func newMemoryRepo(users ...*auth.User) *memoryRepo {
	repo := &memoryRepo{users: map[int64]*auth.User{}, tokens: map[string]*auth.RefreshToken{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *memoryRepo) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) FindUserByID(ctx context.Context, id int64) (*auth.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memoryRepo) CreateRefreshToken(ctx context.Context, token auth.RefreshToken) error {
	copied := token
	r.tokens[token.ID] = &copied
	return nil
}

func (r *memoryRepo) FindRefreshToken(ctx context.Context, id string) (*auth.RefreshToken, error) {
	t, ok := r.tokens[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *memoryRepo) MarkRefreshTokenRevoked(ctx context.Context, id string) error {
	t, ok := r.tokens[id]
	if !ok {
		return shared.ErrNotFound
	}
	t.Revoked = true
	return nil
}

func (r *memoryRepo) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	for _, t := range r.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (r *memoryRepo) DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	var removed int64
	for id, t := range r.tokens {
		if t.ExpiresAt.Before(before) {
			delete(r.tokens, id)
			removed++
		}
	}
	return removed, nil
}

func testUser(t *testing.T) *auth.User {
	t.Helper()
	hash, err := auth.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &auth.User{
		ID:           42,
		Email:        "dana@example.com",
		Name:         "Dana",
		PasswordHash: hash,
		Role:         "manager",
		IsActive:     true,
	}
}

func newService(t *testing.T, repo auth.Repository) *auth.Service {
	t.Helper()
	v, err := auth.NewVerifier(testSecret, 15*time.Minute)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	mr := miniredis.RunT(t)
	registry := auth.NewRevocationRegistry(redis.NewClient(&redis.Options{Addr: mr.Addr()}), true, nil)
	return auth.NewService(repo, v, registry, nil, nil)
}

func TestLoginIssuesTokenPair(t *testing.T) {
	repo := newMemoryRepo(testUser(t))
	svc := newService(t, repo)

	pair, user, err := svc.Login(context.Background(), "Dana@Example.com ", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != 42 {
		t.Fatalf("expected user 42, got %d", user.ID)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens to be set")
	}
	if len(repo.tokens) != 1 {
		t.Fatalf("expected one stored refresh token, got %d", len(repo.tokens))
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	repo := newMemoryRepo(testUser(t))
	svc := newService(t, repo)

	if _, _, err := svc.Login(context.Background(), "dana@example.com", "wrong-password"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	user := testUser(t)
	user.IsActive = false
	svc := newService(t, newMemoryRepo(user))

	if _, _, err := svc.Login(context.Background(), "dana@example.com", "correct-horse"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	repo := newMemoryRepo(testUser(t))
	svc := newService(t, repo)
	ctx := context.Background()

	pair, _, err := svc.Login(ctx, "dana@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	rotated, _, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatalf("refresh should rotate the token")
	}

	// The spent token must be unusable.
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, auth.ErrTokenExpired) {
		t.Fatalf("reusing a rotated token should fail, got %v", err)
	}

	// The fresh one still works.
	if _, _, err := svc.Refresh(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("fresh token should refresh: %v", err)
	}
}

func TestRefreshRejectsTamperedSecret(t *testing.T) {
	repo := newMemoryRepo(testUser(t))
	svc := newService(t, repo)
	ctx := context.Background()

	pair, _, err := svc.Login(ctx, "dana@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	id, _, err := splitTestToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("split token: %v", err)
	}
	if _, _, err := svc.Refresh(ctx, id+".forged-secret"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	// A mismatched secret burns the stored token.
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, auth.ErrTokenExpired) {
		t.Fatalf("token should be revoked after a forged presentation, got %v", err)
	}
}

func TestRefreshRejectsMalformedToken(t *testing.T) {
	svc := newService(t, newMemoryRepo(testUser(t)))
	if _, _, err := svc.Refresh(context.Background(), "no-separator"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestLogoutRevokesEverything(t *testing.T) {
	repo := newMemoryRepo(testUser(t))
	v, err := auth.NewVerifier(testSecret, 15*time.Minute)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	mr := miniredis.RunT(t)
	registry := auth.NewRevocationRegistry(redis.NewClient(&redis.Options{Addr: mr.Addr()}), true, nil)
	svc := auth.NewService(repo, v, registry, nil, nil)
	ctx := context.Background()

	pair, _, err := svc.Login(ctx, "dana@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := v.Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if err := svc.Logout(ctx, pair.AccessToken, claims); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if !registry.IsRevoked(ctx, pair.AccessToken) {
		t.Fatalf("access token should be denied after logout")
	}
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, auth.ErrTokenExpired) {
		t.Fatalf("refresh token should be revoked after logout, got %v", err)
	}
}

func TestHashPasswordRejectsShortInput(t *testing.T) {
	if _, err := auth.HashPassword("short"); err == nil {
		t.Fatalf("expected an error for a short password")
	}
}

func TestPurgeExpiredRefreshTokens(t *testing.T) {
	repo := newMemoryRepo(testUser(t))
	svc := newService(t, repo)
	ctx := context.Background()

	if _, _, err := svc.Login(ctx, "dana@example.com", "correct-horse"); err != nil {
		t.Fatalf("login: %v", err)
	}
	for _, tok := range repo.tokens {
		tok.ExpiresAt = time.Now().Add(-time.Hour)
	}

	removed, err := svc.PurgeExpiredRefreshTokens(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 || len(repo.tokens) != 0 {
		t.Fatalf("expected the expired token to be removed, removed=%d left=%d", removed, len(repo.tokens))
	}
}

func splitTestToken(raw string) (id, secret string, err error) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == '.' {
			return raw[:i], raw[i+1:], nil
		}
	}
	return "", "", errors.New("malformed token")
}
