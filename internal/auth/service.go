package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/rising-bsm/rising/internal/shared"
)

const defaultRefreshTTL = 14 * 24 * time.Hour

// Repository describes persistence required by the auth service.
type Repository interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id int64) (*User, error)
	CreateRefreshToken(ctx context.Context, token RefreshToken) error
	FindRefreshToken(ctx context.Context, id string) (*RefreshToken, error)
	MarkRefreshTokenRevoked(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID int64) error
	DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error)
}

// Service wraps login, token refresh and logout flows.
type Service struct {
	repo       Repository
	verifier   *Verifier
	registry   *RevocationRegistry
	audit      *shared.AuditLogger
	logger     *slog.Logger
	refreshTTL time.Duration
	now        func() time.Time
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithServiceClock overrides the time source, for tests.
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the auth Service.
func NewService(repo Repository, verifier *Verifier, registry *RevocationRegistry, audit *shared.AuditLogger, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{
		repo:       repo,
		verifier:   verifier,
		registry:   registry,
		audit:      audit,
		logger:     logger,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Login validates credentials and issues a fresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, *User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	pair, err := s.mintTokens(ctx, *user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	s.recordAudit(ctx, user.ID, shared.AuditActionLogin, nil)
	return pair, user, nil
}

// Refresh rotates the presented refresh token and issues a new pair. The old
// token is revoked before new credentials are returned; presenting a token
// whose secret does not match the stored hash revokes it outright.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, *User, error) {
	tokenID, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, nil, ErrInvalidToken
	}
	record, err := s.repo.FindRefreshToken(ctx, tokenID)
	if err != nil {
		return TokenPair{}, nil, ErrInvalidToken
	}
	if record.Revoked || !s.now().Before(record.ExpiresAt) {
		return TokenPair{}, nil, ErrTokenExpired
	}
	if !secureCompareHash(record.TokenHash, secret) {
		_ = s.repo.MarkRefreshTokenRevoked(ctx, record.ID)
		return TokenPair{}, nil, ErrInvalidToken
	}
	user, err := s.repo.FindUserByID(ctx, record.UserID)
	if err != nil {
		return TokenPair{}, nil, ErrInvalidToken
	}
	if !user.IsActive {
		_ = s.repo.MarkRefreshTokenRevoked(ctx, record.ID)
		return TokenPair{}, nil, ErrInvalidToken
	}
	if err := s.repo.MarkRefreshTokenRevoked(ctx, record.ID); err != nil {
		return TokenPair{}, nil, err
	}
	pair, err := s.mintTokens(ctx, *user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	s.recordAudit(ctx, user.ID, shared.AuditActionRefresh, nil)
	return pair, user, nil
}

// Logout revokes the presented access token and every refresh token of the
// principal. The access token stays denied until its natural expiry.
func (s *Service) Logout(ctx context.Context, rawToken string, claims *Claims) error {
	principal, err := claims.Principal()
	if err != nil {
		return err
	}
	if err := s.registry.Revoke(ctx, rawToken, claims.ExpiresAt.Time, "logout"); err != nil {
		return err
	}
	if err := s.repo.RevokeUserRefreshTokens(ctx, principal.UserID); err != nil {
		return err
	}
	s.recordAudit(ctx, principal.UserID, shared.AuditActionLogout, nil)
	return nil
}

// Me loads the account behind the principal.
func (s *Service) Me(ctx context.Context, userID int64) (*User, error) {
	return s.repo.FindUserByID(ctx, userID)
}

// PurgeExpiredRefreshTokens deletes refresh token rows past their natural
// expiry, bounding table growth. Called from the background worker.
func (s *Service) PurgeExpiredRefreshTokens(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredRefreshTokens(ctx, s.now())
}

// HashPassword produces a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("auth: password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) mintTokens(ctx context.Context, user User) (TokenPair, error) {
	accessToken, accessExp, err := s.verifier.Issue(user)
	if err != nil {
		return TokenPair{}, err
	}
	refreshString, record, err := s.generateRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.repo.CreateRefreshToken(ctx, record); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshString,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

func (s *Service) generateRefreshToken(userID int64) (string, RefreshToken, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", RefreshToken{}, err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	tokenID := uuid.NewString()
	sum := sha256.Sum256([]byte(secret))
	record := RefreshToken{
		ID:        tokenID,
		UserID:    userID,
		TokenHash: hex.EncodeToString(sum[:]),
		ExpiresAt: s.now().Add(s.refreshTTL),
	}
	return tokenID + "." + secret, record, nil
}

func (s *Service) recordAudit(ctx context.Context, userID int64, action string, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  userID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func splitRefreshToken(raw string) (id, secret string, err error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return parts[0], parts[1], nil
}

func secureCompareHash(expectedHash, secret string) bool {
	sum := sha256.Sum256([]byte(secret))
	actual := hex.EncodeToString(sum[:])
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}
