package appointments

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rising-bsm/rising/internal/platform/httpx"
	"github.com/rising-bsm/rising/internal/rbac"
	"github.com/rising-bsm/rising/internal/shared"
)

// Handler exposes appointment routes over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a handler.
func NewHandler(logger *slog.Logger, service *Service, v *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validator: v}
}

// MountRoutes registers the appointment routes on r.
func (h *Handler) MountRoutes(r chi.Router, mw rbac.Middleware) {
	r.Route("/appointments", func(r chi.Router) {
		r.With(mw.RequireAll(rbac.PermAppointmentsView)).Get("/", h.handleList)
		r.With(mw.RequireAll(rbac.PermAppointmentsView)).Get("/stats", h.handleStats)
		r.With(mw.RequireAll(rbac.PermAppointmentsManage)).Post("/", h.handleCreate)
		r.Route("/{appointmentID}", func(r chi.Router) {
			r.With(mw.RequireAll(rbac.PermAppointmentsView)).Get("/", h.handleGet)
			r.With(mw.RequireAll(rbac.PermAppointmentsManage)).Patch("/", h.handleUpdate)
			r.With(mw.RequireAll(rbac.PermAppointmentsManage)).Post("/cancel", h.handleCancel)
		})
	})
}

type createAppointmentRequest struct {
	CustomerID int64     `json:"customerId" validate:"required,gt=0"`
	Title      string    `json:"title" validate:"required"`
	StartsAt   time.Time `json:"startsAt" validate:"required"`
	EndsAt     time.Time `json:"endsAt"`
	Location   string    `json:"location"`
	Note       string    `json:"note" validate:"max=2000"`
}

type updateAppointmentRequest struct {
	Title    *string    `json:"title" validate:"omitempty,min=1"`
	StartsAt *time.Time `json:"startsAt"`
	EndsAt   *time.Time `json:"endsAt"`
	Location *string    `json:"location"`
	Note     *string    `json:"note" validate:"omitempty,max=2000"`
	Status   *string    `json:"status"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	from, to, err := rangeParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	page, perPage := shared.PageParams(r)
	list, err := h.service.List(r.Context(), from, to, r.URL.Query().Get("status"), shared.Pagination{Page: page, PerPage: perPage})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []Appointment{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.appointmentIDParam(w, r)
	if !ok {
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), Appointment{
		CustomerID: req.CustomerID,
		Title:      req.Title,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
		Location:   req.Location,
		Note:       req.Note,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.appointmentIDParam(w, r)
	if !ok {
		return
	}
	var req updateAppointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.Update(r.Context(), id, Update{
		Title:    req.Title,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		Location: req.Location,
		Note:     req.Note,
		Status:   req.Status,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.appointmentIDParam(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	cancelled, err := h.service.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cancelled)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) appointmentIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "appointmentID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "appointment id must be a positive integer")
		return 0, false
	}
	return id, true
}

func rangeParams(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()
	from = time.Now().Truncate(24 * time.Hour)
	if v := q.Get("from"); v != "" {
		from, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, err
		}
	}
	if v := q.Get("to"); v != "" {
		to, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, err
		}
	}
	return from, to, nil
}
