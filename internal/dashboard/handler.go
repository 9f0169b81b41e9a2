package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rising-bsm/rising/internal/platform/httpx"
	"github.com/rising-bsm/rising/internal/rbac"
)

// Handler exposes the dashboard over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the dashboard routes on r.
func (h *Handler) MountRoutes(r chi.Router, mw rbac.Middleware) {
	r.With(mw.RequireAll(rbac.PermDashboardView)).Get("/dashboard", h.handleOverview)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}
