package invoices

import (
	"context"
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

// Handler exposes invoice routes over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a handler.
func NewHandler(logger *slog.Logger, service *Service, v *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validator: v}
}

// MountRoutes registers the invoice routes on r.
func (h *Handler) MountRoutes(r chi.Router, mw rbac.Middleware) {
	r.Route("/invoices", func(r chi.Router) {
		r.With(mw.RequireAll(rbac.PermInvoicesView)).Get("/", h.handleList)
		r.With(mw.RequireAll(rbac.PermInvoicesView)).Get("/stats", h.handleStats)
		r.With(mw.RequireAll(rbac.PermInvoicesManage)).Post("/", h.handleCreate)
		r.Route("/{invoiceID}", func(r chi.Router) {
			r.With(mw.RequireAll(rbac.PermInvoicesView)).Get("/", h.handleGet)
			r.With(mw.RequireAll(rbac.PermInvoicesManage)).Post("/send", h.handleSend)
			r.With(mw.RequireAll(rbac.PermInvoicesManage)).Post("/pay", h.handleMarkPaid)
			r.With(mw.RequireAll(rbac.PermInvoicesManage)).Post("/void", h.handleVoid)
		})
	})
}

type lineItemRequest struct {
	Description  string `json:"description" validate:"required"`
	Quantity     int64  `json:"quantity" validate:"required,gt=0"`
	UnitPriceMin int64  `json:"unitPriceMinor" validate:"gte=0"`
	TaxRateBasis int64  `json:"taxRateBasisPoints" validate:"gte=0,lte=10000"`
}

type createInvoiceRequest struct {
	CustomerID int64             `json:"customerId" validate:"required,gt=0"`
	Currency   string            `json:"currency" validate:"required,len=3"`
	DueAt      time.Time         `json:"dueAt"`
	Items      []lineItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	list, err := h.service.List(r.Context(), r.URL.Query().Get("status"), shared.Pagination{Page: page, PerPage: perPage})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []Invoice{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceIDParam(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	items := make([]LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, LineItem{
			Description:  item.Description,
			Quantity:     item.Quantity,
			UnitPriceMin: item.UnitPriceMin,
			TaxRateBasis: item.TaxRateBasis,
		})
	}
	inv, err := h.service.Create(r.Context(), req.CustomerID, req.Currency, req.DueAt, items)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.Send)
}

func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.MarkPaid)
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.Void)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (Invoice, error)) {
	id, ok := h.invoiceIDParam(w, r)
	if !ok {
		return
	}
	inv, err := fn(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) invoiceIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invoice id must be a positive integer")
		return 0, false
	}
	return id, true
}
