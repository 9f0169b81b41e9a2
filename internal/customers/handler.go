package customers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rising-bsm/rising/internal/auth"
	"github.com/rising-bsm/rising/internal/platform/httpx"
	"github.com/rising-bsm/rising/internal/rbac"
	"github.com/rising-bsm/rising/internal/shared"
)

// Handler exposes customer routes over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a handler.
func NewHandler(logger *slog.Logger, service *Service, v *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validator: v}
}

// MountRoutes registers the customer routes on r.
func (h *Handler) MountRoutes(r chi.Router, mw rbac.Middleware) {
	r.Route("/customers", func(r chi.Router) {
		r.With(mw.RequireAll(rbac.PermCustomersView)).Get("/", h.handleList)
		r.With(mw.RequireAll(rbac.PermCustomersView)).Get("/stats", h.handleStats)
		r.With(mw.RequireAll(rbac.PermCustomersEdit)).Post("/", h.handleCreate)
		r.Route("/{customerID}", func(r chi.Router) {
			r.With(mw.RequireAll(rbac.PermCustomersView)).Get("/", h.handleGet)
			r.With(mw.RequireAll(rbac.PermCustomersEdit)).Patch("/", h.handleUpdate)
			r.With(mw.RequireAll(rbac.PermCustomersEdit)).Delete("/", h.handleDelete)
			r.With(mw.RequireAll(rbac.PermCustomersView)).Get("/notes", h.handleNotes)
			r.With(mw.RequireAll(rbac.PermCustomersEdit)).Post("/notes", h.handleAddNote)
		})
	})
}

type customerRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`
}

type customerUpdateRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	City    *string `json:"city"`
	Country *string `json:"country"`
}

type noteRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	list, err := h.service.List(r.Context(), r.URL.Query().Get("search"), shared.Pagination{Page: page, PerPage: perPage})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []Customer{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.customerIDParam(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), Customer{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		City:    req.City,
		Country: req.Country,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.customerIDParam(w, r)
	if !ok {
		return
	}
	var req customerUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.Update(r.Context(), id, Update{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		City:    req.City,
		Country: req.Country,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.customerIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.customerIDParam(w, r)
	if !ok {
		return
	}
	notes, err := h.service.Notes(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if notes == nil {
		notes = []Note{}
	}
	httpx.JSON(w, http.StatusOK, notes)
}

func (h *Handler) handleAddNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.customerIDParam(w, r)
	if !ok {
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "missing credentials")
		return
	}
	var req noteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	note, err := h.service.AddNote(r.Context(), id, principal.UserID, req.Text)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, note)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) customerIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "customer id must be a positive integer")
		return 0, false
	}
	return id, true
}
