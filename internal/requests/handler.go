package requests

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rising-bsm/rising/internal/auth"
	"github.com/rising-bsm/rising/internal/platform/httpx"
	"github.com/rising-bsm/rising/internal/rbac"
	"github.com/rising-bsm/rising/internal/shared"
)

// Handler exposes contact request routes over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a handler.
func NewHandler(logger *slog.Logger, service *Service, v *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validator: v}
}

// MountRoutes registers the request routes on r. The intake POST stays
// open for the public contact form; everything else sits behind the
// authenticator and the permission gate.
func (h *Handler) MountRoutes(r chi.Router, authenticate func(http.Handler) http.Handler, mw rbac.Middleware) {
	r.Route("/requests", func(r chi.Router) {
		r.Post("/", h.handleSubmit)
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.With(mw.RequireAll(rbac.PermRequestsView)).Get("/", h.handleList)
			r.With(mw.RequireAll(rbac.PermRequestsView)).Get("/stats", h.handleStats)
			r.Route("/{requestID}", func(r chi.Router) {
				r.With(mw.RequireAll(rbac.PermRequestsView)).Get("/", h.handleGet)
				r.With(mw.RequireAll(rbac.PermRequestsManage)).Patch("/status", h.handleUpdateStatus)
				r.With(mw.RequireAll(rbac.PermRequestsManage)).Post("/assign", h.handleAssign)
				r.With(mw.RequireAll(rbac.PermRequestsManage)).Post("/convert", h.handleConvert)
				r.With(mw.RequireAll(rbac.PermRequestsView)).Get("/notes", h.handleNotes)
				r.With(mw.RequireAll(rbac.PermRequestsManage)).Post("/notes", h.handleAddNote)
			})
		})
	})
}

type submitRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone"`
	Service string `json:"service" validate:"required"`
	Message string `json:"message" validate:"max=4000"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type assignRequest struct {
	ProcessorID int64 `json:"processorId" validate:"required,gt=0"`
}

type convertRequest struct {
	StartsAt time.Time `json:"startsAt" validate:"required"`
	Note     string    `json:"note" validate:"max=2000"`
}

type noteRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.Submit(r.Context(), Intake{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Service: req.Service,
		Message: req.Message,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	page, perPage := shared.PageParams(r)
	list, err := h.service.List(r.Context(), status, shared.Pagination{Page: page, PerPage: perPage})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []Request{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestIDParam(w, r)
	if !ok {
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestIDParam(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestIDParam(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.Assign(r.Context(), id, req.ProcessorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleConvert(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestIDParam(w, r)
	if !ok {
		return
	}
	var req convertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.Convert(r.Context(), id, req.StartsAt, req.Note)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestIDParam(w, r)
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
	id, ok := h.requestIDParam(w, r)
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

func (h *Handler) requestIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request id must be a positive integer")
		return 0, false
	}
	return id, true
}
