package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "auth:revoked:"

// RevocationRegistry is a process-wide denylist of invalidated access tokens,
// backed by Redis. Entries are keyed by the SHA-256 hash of the token so raw
// token values are never stored, and carry a TTL equal to the token's
// remaining natural lifetime so the store garbage-collects them itself.
//
// When the backend is unreachable the registry follows the configured policy:
// fail closed treats every token as revoked, fail open logs and lets the
// request through.
type RevocationRegistry struct {
	client     *redis.Client
	failClosed bool
	logger     *slog.Logger
	now        func() time.Time
}

// NewRevocationRegistry constructs a registry. failClosed selects the
// backend-unavailable policy.
func NewRevocationRegistry(client *redis.Client, failClosed bool, logger *slog.Logger) *RevocationRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &RevocationRegistry{
		client:     client,
		failClosed: failClosed,
		logger:     logger,
		now:        time.Now,
	}
}

// Revoke adds the token to the denylist until its natural expiry.
func (r *RevocationRegistry) Revoke(ctx context.Context, token string, expiresAt time.Time, reason string) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		// The token is already past its expiry; the verifier rejects it anyway.
		return nil
	}
	key := revokedKeyPrefix + hashToken(token)
	if reason == "" {
		reason = "revoked"
	}
	return r.client.Set(ctx, key, reason, ttl).Err()
}

// IsRevoked reports whether the token is on the denylist. It must be
// consulted after signature verification on every request: a token can be
// structurally valid yet revoked.
func (r *RevocationRegistry) IsRevoked(ctx context.Context, token string) bool {
	key := revokedKeyPrefix + hashToken(token)
	err := r.client.Get(ctx, key).Err()
	if err == nil {
		return true
	}
	if err == redis.Nil {
		return false
	}
	if r.failClosed {
		r.logger.Error("revocation registry unavailable, failing closed", slog.Any("error", err))
		return true
	}
	r.logger.Warn("revocation registry unavailable, failing open", slog.Any("error", err))
	return false
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
