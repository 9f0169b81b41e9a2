package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rising-bsm/rising/internal/platform/httpx"
)

const (
	authHeader      = "Authorization"
	bearerScheme    = "Bearer "
	authTokenCookie = "auth_token"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the verified claims attached by the Authenticator.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	v, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return v, ok && v != nil
}

// Authenticator verifies bearer credentials and attaches the principal to the
// request context. Per-request pipeline: extract token, verify signature and
// expiry, consult the revocation registry, build the principal from claims.
type Authenticator struct {
	verifier *Verifier
	registry *RevocationRegistry
	logger   *slog.Logger
}

// NewAuthenticator constructs the middleware.
func NewAuthenticator(verifier *Verifier, registry *RevocationRegistry, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{verifier: verifier, registry: registry, logger: logger}
}

// Middleware rejects requests without a valid, non-revoked token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractToken(r)
		if err != nil {
			RespondAuthError(w, err)
			return
		}
		claims, err := a.verifier.Verify(token)
		if err != nil {
			RespondAuthError(w, err)
			return
		}
		if a.registry.IsRevoked(r.Context(), token) {
			RespondAuthError(w, ErrTokenRevoked)
			return
		}
		principal, err := claims.Principal()
		if err != nil {
			RespondAuthError(w, err)
			return
		}
		ctx := ContextWithPrincipal(r.Context(), principal)
		ctx = ContextWithToken(ctx, token)
		ctx = context.WithValue(ctx, claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RespondAuthError writes the RFC7807 response for an authentication error.
func RespondAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "missing bearer token")
	case errors.Is(err, ErrTokenExpired):
		httpx.Problem(w, http.StatusUnauthorized, "Token Expired", "access token expired; use the refresh flow")
	case errors.Is(err, ErrTokenRevoked):
		httpx.Problem(w, http.StatusUnauthorized, "Token Revoked", "token has been revoked")
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrInvalidCredentials):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func extractToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if header != "" {
		if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerScheme)) {
			return "", ErrInvalidToken
		}
		token := strings.TrimSpace(header[len(bearerScheme):])
		if token == "" {
			return "", ErrUnauthenticated
		}
		return token, nil
	}
	if cookie, err := r.Cookie(authTokenCookie); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token, nil
		}
	}
	return "", ErrUnauthenticated
}
