package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rising-bsm/rising/internal/auth"
	"github.com/rising-bsm/rising/internal/platform/httpx"
)

// Middleware wires the authorization gate into HTTP routing.
type Middleware struct {
	Gate   *Gate
	Logger *slog.Logger
}

// RequireAll ensures the principal holds every listed permission.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.require(ModeAll, perms)
}

// RequireAny ensures the principal holds at least one listed permission.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.require(ModeAny, perms)
}

func (m Middleware) require(mode Mode, perms []string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				auth.RespondAuthError(w, auth.ErrUnauthenticated)
				return
			}
			err := m.Gate.Authorize(r.Context(), principal, normalized, mode)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, ErrForbidden):
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient permissions")
			default:
				if m.Logger != nil {
					m.Logger.Error("authorization gate", slog.Int64("user_id", principal.UserID), slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			}
		})
	}
}
