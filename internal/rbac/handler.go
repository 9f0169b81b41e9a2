package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rising-bsm/rising/internal/auth"
	"github.com/rising-bsm/rising/internal/platform/httpx"
)

// Handler exposes the permission catalog, the check endpoint and the admin
// override mutations.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	gate      *Gate
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, gate *Gate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		gate:      gate,
		validator: validator.New(),
	}
}

// MountRoutes registers rbac endpoints. The caller wraps them in the
// authenticator and the appropriate permission middleware.
func (h *Handler) MountRoutes(r chi.Router, mw Middleware) {
	r.With(mw.RequireAll(PermPermissionsView)).Get("/permissions/catalog", h.handleCatalog)
	r.Post("/permissions/check", h.handleCheck)
	r.Get("/permissions/effective", h.handleEffective)
	r.Route("/permissions/users/{userID}", func(r chi.Router) {
		r.With(mw.RequireAll(PermPermissionsView)).Get("/", h.handleOverrides)
		r.With(mw.RequireAll(PermPermissionsEdit)).Post("/grant", h.handleGrant)
		r.With(mw.RequireAll(PermPermissionsEdit)).Post("/revoke", h.handleRevoke)
		r.With(mw.RequireAll(PermPermissionsEdit)).Delete("/{permission}", h.handleClear)
		r.With(mw.RequireAll(PermUsersEdit)).Put("/role", h.handleSetRole)
	})
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"permissions": Catalog(),
		"roles":       []string{RoleAdmin, RoleManager, RoleEmployee, RoleUser},
	})
}

type checkRequest struct {
	Permissions []string `json:"permissions" validate:"required,min=1"`
	Mode        string   `json:"mode" validate:"omitempty,oneof=all any"`
}

// handleCheck reports whether the calling principal holds the listed
// permissions. It answers allowed=false rather than 403 so automation can
// probe its own capabilities.
func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		auth.RespondAuthError(w, auth.ErrUnauthenticated)
		return
	}
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "permissions list is required")
		return
	}
	mode := ModeAll
	if strings.EqualFold(req.Mode, "any") {
		mode = ModeAny
	}
	err := h.gate.Authorize(r.Context(), principal, req.Permissions, mode)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, map[string]any{"allowed": true})
	case errors.Is(err, ErrForbidden):
		httpx.JSON(w, http.StatusOK, map[string]any{"allowed": false})
	default:
		h.logger.Error("permission check", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) handleOverrides(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}
	overrides, err := h.service.Overrides(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if overrides == nil {
		overrides = []Override{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"overrides": overrides})
}

type overrideRequest struct {
	Permission string `json:"permission" validate:"required"`
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	h.mutateOverride(w, r, h.service.Grant)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	h.mutateOverride(w, r, h.service.Revoke)
}

func (h *Handler) mutateOverride(w http.ResponseWriter, r *http.Request, mutate func(ctx context.Context, actorID, userID int64, permission string) error) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}
	actor, _ := auth.PrincipalFromContext(r.Context())
	var req overrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "permission is required")
		return
	}
	if err := mutate(r.Context(), actor.UserID, userID, req.Permission); err != nil {
		h.respondMutationError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleEffective returns the caller's resolved effective permission set.
func (h *Handler) handleEffective(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		auth.RespondAuthError(w, auth.ErrUnauthenticated)
		return
	}
	set, err := h.gate.EffectivePermissions(r.Context(), principal)
	if err != nil {
		h.logger.Error("effective permissions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":        principal.Role,
		"permissions": sortedKeys(set),
	})
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}
	actor, _ := auth.PrincipalFromContext(r.Context())
	permission := chi.URLParam(r, "permission")
	if err := h.service.ClearOverride(r.Context(), actor.UserID, userID, permission); err != nil {
		h.respondMutationError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}
	actor, _ := auth.PrincipalFromContext(r.Context())
	var req setRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "role is required")
		return
	}
	if err := h.service.SetRole(r.Context(), actor.UserID, userID, req.Role); err != nil {
		h.respondMutationError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "userID")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return 0, false
	}
	return userID, true
}

func (h *Handler) respondMutationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownPermission), errors.Is(err, ErrUnknownRole):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func sortedKeys(set PermissionSet) []string {
	keys := set.Keys()
	sort.Strings(keys)
	return keys
}
