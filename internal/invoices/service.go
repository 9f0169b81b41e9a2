package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rising-bsm/rising/internal/shared"
)

// DefaultPaymentTerm is applied when a draft omits the due date.
const DefaultPaymentTerm = 14 * 24 * time.Hour

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context, status string, p shared.Pagination) ([]Invoice, error)
	Get(ctx context.Context, id int64) (Invoice, error)
	// Create persists the invoice and assigns its sequential number.
	Create(ctx context.Context, inv Invoice) (Invoice, error)
	UpdateStatus(ctx context.Context, id int64, status string) (Invoice, error)
	Stats(ctx context.Context) (Stats, error)
}

// Service implements invoicing.
type Service struct {
	repo      RepositoryPort
	formatter *AmountFormatter
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs a service.
func NewService(repo RepositoryPort, formatter *AmountFormatter, logger *slog.Logger) *Service {
	return &Service{repo: repo, formatter: formatter, logger: logger, now: time.Now}
}

// List returns invoices filtered by status.
func (s *Service) List(ctx context.Context, status string, p shared.Pagination) ([]Invoice, error) {
	if status != "" && !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	list, err := s.repo.List(ctx, status, p)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Display = s.formatter.Format(list[i].TotalMin, list[i].Currency)
	}
	return list, nil
}

// Get returns an invoice with line items.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	inv.Display = s.formatter.Format(inv.TotalMin, inv.Currency)
	return inv, nil
}

// Create issues a draft invoice. Totals are derived from the line items and
// the number is allocated from the per-year sequence.
func (s *Service) Create(ctx context.Context, customerID int64, currency string, dueAt time.Time, items []LineItem) (Invoice, error) {
	if len(items) == 0 {
		return Invoice{}, fmt.Errorf("%w: an invoice needs at least one line item", shared.ErrValidation)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return Invoice{}, fmt.Errorf("%w: currency must be a three-letter ISO code", shared.ErrValidation)
	}
	var subtotal, tax int64
	for i := range items {
		if items[i].Quantity <= 0 || items[i].UnitPriceMin < 0 {
			return Invoice{}, fmt.Errorf("%w: line items need a positive quantity and a non-negative price", shared.ErrValidation)
		}
		items[i].AmountMin = items[i].Quantity * items[i].UnitPriceMin
		subtotal += items[i].AmountMin
		tax += items[i].AmountMin * items[i].TaxRateBasis / 10000
	}
	issuedAt := s.now()
	if dueAt.IsZero() {
		dueAt = issuedAt.Add(DefaultPaymentTerm)
	}
	inv, err := s.repo.Create(ctx, Invoice{
		CustomerID:  customerID,
		Status:      StatusDraft,
		Currency:    currency,
		SubtotalMin: subtotal,
		TaxMin:      tax,
		TotalMin:    subtotal + tax,
		IssuedAt:    issuedAt,
		DueAt:       dueAt,
		Items:       items,
	})
	if err != nil {
		return Invoice{}, err
	}
	inv.Display = s.formatter.Format(inv.TotalMin, inv.Currency)
	s.logger.Info("invoice issued", "invoice_id", inv.ID, "number", inv.Number, "total_minor", inv.TotalMin)
	return inv, nil
}

// Send marks a draft as sent.
func (s *Service) Send(ctx context.Context, id int64) (Invoice, error) {
	return s.transition(ctx, id, StatusDraft, StatusSent)
}

// MarkPaid marks a sent invoice as paid.
func (s *Service) MarkPaid(ctx context.Context, id int64) (Invoice, error) {
	return s.transition(ctx, id, StatusSent, StatusPaid)
}

// Void cancels a draft or sent invoice. Paid invoices cannot be voided.
func (s *Service) Void(ctx context.Context, id int64) (Invoice, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if current.Status != StatusDraft && current.Status != StatusSent {
		return Invoice{}, fmt.Errorf("%w: cannot void a %s invoice", shared.ErrConflict, current.Status)
	}
	return s.repo.UpdateStatus(ctx, id, StatusVoid)
}

// Stats aggregates invoices.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}

func (s *Service) transition(ctx context.Context, id int64, from, to string) (Invoice, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if current.Status != from {
		return Invoice{}, fmt.Errorf("%w: invoice %d is %s, expected %s", shared.ErrConflict, id, current.Status, from)
	}
	inv, err := s.repo.UpdateStatus(ctx, id, to)
	if err != nil {
		return Invoice{}, err
	}
	inv.Display = s.formatter.Format(inv.TotalMin, inv.Currency)
	return inv, nil
}
