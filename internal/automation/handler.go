package automation

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rising-bsm/rising/internal/platform/httpx"
	"github.com/rising-bsm/rising/internal/rbac"
)

// Handler exposes automation routes over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a handler.
func NewHandler(logger *slog.Logger, service *Service, v *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validator: v}
}

// MountRoutes registers the automation routes on r.
func (h *Handler) MountRoutes(r chi.Router, mw rbac.Middleware) {
	r.Route("/automation", func(r chi.Router) {
		r.With(mw.RequireAll(rbac.PermAutomationView)).Get("/webhooks", h.handleListWebhooks)
		r.With(mw.RequireAll(rbac.PermAutomationManage)).Post("/webhooks", h.handleCreateWebhook)
		r.With(mw.RequireAll(rbac.PermAutomationManage)).Post("/webhooks/{webhookID}/trigger", h.handleTrigger)
		r.With(mw.RequireAll(rbac.PermAutomationView)).Get("/schedules", h.handleListSchedules)
		r.With(mw.RequireAll(rbac.PermAutomationManage)).Post("/schedules", h.handleCreateSchedule)
		r.With(mw.RequireAll(rbac.PermAutomationView)).Get("/executions", h.handleListExecutions)
	})
}

type createWebhookRequest struct {
	Name       string            `json:"name" validate:"required,max=200"`
	URL        string            `json:"url" validate:"required,max=2000"`
	EntityType string            `json:"entityType" validate:"required"`
	EventType  string            `json:"eventType" validate:"required"`
	Headers    map[string]string `json:"headers"`
	Active     *bool             `json:"active"`
}

type triggerRequest struct {
	Payload map[string]any `json:"payload"`
}

type createScheduleRequest struct {
	Name     string         `json:"name" validate:"required,max=200"`
	Cron     string         `json:"cron" validate:"required"`
	TaskType string         `json:"taskType" validate:"required"`
	Payload  map[string]any `json:"payload"`
	Timezone string         `json:"timezone"`
	Active   *bool          `json:"active"`
}

func (h *Handler) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req createWebhookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	created, err := h.service.CreateWebhook(r.Context(), Webhook{
		Name:       req.Name,
		URL:        req.URL,
		EntityType: req.EntityType,
		EventType:  req.EventType,
		Headers:    req.Headers,
		Active:     active,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.service.ListWebhooks(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if hooks == nil {
		hooks = []Webhook{}
	}
	httpx.JSON(w, http.StatusOK, hooks)
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	id, ok := h.webhookIDParam(w, r)
	if !ok {
		return
	}
	// The payload body is optional.
	var req triggerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	exec, err := h.service.Trigger(r.Context(), id, req.Payload)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, exec)
}

func (h *Handler) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	created, err := h.service.CreateSchedule(r.Context(), Schedule{
		Name:     req.Name,
		Cron:     req.Cron,
		TaskType: req.TaskType,
		Payload:  req.Payload,
		Timezone: req.Timezone,
		Active:   active,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.service.ListSchedules(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if schedules == nil {
		schedules = []Schedule{}
	}
	httpx.JSON(w, http.StatusOK, schedules)
}

func (h *Handler) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	executions, err := h.service.ListExecutions(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if executions == nil {
		executions = []Execution{}
	}
	httpx.JSON(w, http.StatusOK, executions)
}

func (h *Handler) webhookIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "webhookID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "webhook id must be a positive integer")
		return 0, false
	}
	return id, true
}
