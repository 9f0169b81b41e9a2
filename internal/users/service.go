package users

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rising-bsm/rising/internal/auth"
	"github.com/rising-bsm/rising/internal/rbac"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, email, name, passwordHash, role string) (User, error)
	UpdateUser(ctx context.Context, id int64, upd Update) (User, error)
}

// Invalidator evicts cached permission sets when an account changes.
type Invalidator interface {
	Invalidate(userID int64)
}

// Service implements user administration.
type Service struct {
	repo   RepositoryPort
	cache  Invalidator
	logger *slog.Logger
}

// NewService constructs a service. cache may be nil.
func NewService(repo RepositoryPort, cache Invalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// Get returns a single account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// Create registers a new account with a default role.
func (s *Service) Create(ctx context.Context, email, name, password, role string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if role == "" {
		role = rbac.RoleUser
	}
	if !rbac.ValidRole(role) {
		return User{}, rbac.ErrUnknownRole
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.CreateUser(ctx, email, name, hash, role)
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Update applies a partial update. Password, if set, is hashed before storage.
// A change to active status evicts the cached permission set so it takes
// effect on the next request.
func (s *Service) Update(ctx context.Context, id int64, upd Update) (User, error) {
	if upd.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*upd.Email))
		upd.Email = &normalized
	}
	if upd.Password != nil {
		hash, err := auth.HashPassword(*upd.Password)
		if err != nil {
			return User{}, err
		}
		upd.Password = &hash
	}
	user, err := s.repo.UpdateUser(ctx, id, upd)
	if err != nil {
		return User{}, err
	}
	if upd.IsActive != nil && s.cache != nil {
		s.cache.Invalidate(id)
	}
	return user, nil
}

// Deactivate disables an account and evicts its cached permissions.
func (s *Service) Deactivate(ctx context.Context, id int64) (User, error) {
	inactive := false
	user, err := s.repo.UpdateUser(ctx, id, Update{IsActive: &inactive})
	if err != nil {
		return User{}, err
	}
	if s.cache != nil {
		s.cache.Invalidate(id)
	}
	s.logger.Info("user deactivated", "user_id", id)
	return user, nil
}
