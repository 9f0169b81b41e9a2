package invoices

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rising-bsm/rising/internal/platform/db"
	"github.com/rising-bsm/rising/internal/shared"
)

const invoiceColumns = `id, customer_id, number, status, currency, subtotal_minor, tax_minor, total_minor, issued_at, due_at, paid_at, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns invoices filtered by status ("" for all), newest first.
func (r *Repository) List(ctx context.Context, status string, p shared.Pagination) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
		WHERE ($1 = '' OR status = $1)
		ORDER BY issued_at DESC
		LIMIT $2 OFFSET $3`, status, p.PerPage, p.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Get fetches an invoice with its line items.
func (r *Repository) Get(ctx context.Context, id int64) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, err
	}
	items, err := r.items(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	inv.Items = items
	return inv, nil
}

// Create inserts an invoice and its line items in one transaction. The
// invoice number is allocated from the per-year sequence inside that same
// transaction, so a failed insert rolls the allocation back.
func (r *Repository) Create(ctx context.Context, inv Invoice) (Invoice, error) {
	var created Invoice
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		year := inv.IssuedAt.Year()
		var seq int64
		if err := tx.QueryRow(ctx, `INSERT INTO invoice_sequences (year, value)
			VALUES ($1, 1)
			ON CONFLICT (year) DO UPDATE SET value = invoice_sequences.value + 1
			RETURNING value`, year).Scan(&seq); err != nil {
			return err
		}
		inv.Number = fmt.Sprintf("INV-%d-%04d", year, seq)
		row := tx.QueryRow(ctx, `INSERT INTO invoices (customer_id, number, status, currency, subtotal_minor, tax_minor, total_minor, issued_at, due_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
			RETURNING `+invoiceColumns,
			inv.CustomerID, inv.Number, inv.Status, inv.Currency,
			inv.SubtotalMin, inv.TaxMin, inv.TotalMin, inv.IssuedAt, inv.DueAt)
		var err error
		created, err = scanInvoice(row)
		if err != nil {
			return err
		}
		for _, item := range inv.Items {
			var stored LineItem
			err := tx.QueryRow(ctx, `INSERT INTO invoice_items (invoice_id, description, quantity, unit_price_minor, amount_minor, tax_rate_basis_points)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id, invoice_id, description, quantity, unit_price_minor, amount_minor, tax_rate_basis_points`,
				created.ID, item.Description, item.Quantity, item.UnitPriceMin, item.AmountMin, item.TaxRateBasis).
				Scan(&stored.ID, &stored.InvoiceID, &stored.Description, &stored.Quantity,
					&stored.UnitPriceMin, &stored.AmountMin, &stored.TaxRateBasis)
			if err != nil {
				return err
			}
			created.Items = append(created.Items, stored)
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.Code == "23505":
			return Invoice{}, shared.ErrConflict
		case errors.As(err, &pgErr) && pgErr.Code == "23503":
			return Invoice{}, shared.ErrNotFound
		}
		return Invoice{}, err
	}
	return created, nil
}

// UpdateStatus transitions an invoice. paid_at is set when entering "paid".
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status string) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `UPDATE invoices SET
			status = $2,
			paid_at = CASE WHEN $2 = 'paid' THEN NOW() ELSE paid_at END,
			updated_at = NOW()
		WHERE id = $1 RETURNING `+invoiceColumns, id, status)
	return scanInvoice(row)
}

// Stats aggregates invoices.
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'paid'),
			COALESCE(SUM(total_minor) FILTER (WHERE status = 'sent'), 0)
		FROM invoices`).
		Scan(&s.Total, &s.Open, &s.Paid, &s.OutstandingMin)
	return s, err
}

func (r *Repository) items(ctx context.Context, invoiceID int64) ([]LineItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, description, quantity, unit_price_minor, amount_minor, tax_rate_basis_points
		FROM invoice_items WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LineItem
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description, &item.Quantity,
			&item.UnitPriceMin, &item.AmountMin, &item.TaxRateBasis); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.CustomerID, &inv.Number, &inv.Status, &inv.Currency,
		&inv.SubtotalMin, &inv.TaxMin, &inv.TotalMin, &inv.IssuedAt, &inv.DueAt, &inv.PaidAt,
		&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.ErrNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}
