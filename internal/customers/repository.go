package customers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rising-bsm/rising/internal/shared"
)

const customerColumns = `id, name, email, phone, address, city, country, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for customers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns customers matching the search term ("" for all), newest first.
func (r *Repository) List(ctx context.Context, search string, p shared.Pagination) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, search, p.PerPage, p.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get fetches a customer by id.
func (r *Repository) Get(ctx context.Context, id int64) (Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	return scanCustomer(row)
}

// Create inserts a new customer.
func (r *Repository) Create(ctx context.Context, c Customer) (Customer, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO customers (name, email, phone, address, city, country, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING `+customerColumns,
		c.Name, c.Email, c.Phone, c.Address, c.City, c.Country)
	created, err := scanCustomer(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Customer{}, shared.ErrConflict
		}
		return Customer{}, err
	}
	return created, nil
}

// EnsureByEmail finds the customer with the given email or inserts one.
func (r *Repository) EnsureByEmail(ctx context.Context, name, email, phone string) (Customer, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO customers (name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING `+customerColumns, name, email, phone)
	return scanCustomer(row)
}

// Update applies the non-nil fields of upd.
func (r *Repository) Update(ctx context.Context, id int64, upd Update) (Customer, error) {
	row := r.pool.QueryRow(ctx, `UPDATE customers SET
			name = COALESCE($2, name),
			email = COALESCE($3, email),
			phone = COALESCE($4, phone),
			address = COALESCE($5, address),
			city = COALESCE($6, city),
			country = COALESCE($7, country),
			updated_at = NOW()
		WHERE id = $1 RETURNING `+customerColumns,
		id, upd.Name, upd.Email, upd.Phone, upd.Address, upd.City, upd.Country)
	updated, err := scanCustomer(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Customer{}, shared.ErrConflict
		}
		return Customer{}, err
	}
	return updated, nil
}

// Delete removes a customer.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AddNote attaches a note to a customer.
func (r *Repository) AddNote(ctx context.Context, customerID, authorID int64, text string) (Note, error) {
	var n Note
	err := r.pool.QueryRow(ctx, `INSERT INTO customer_notes (customer_id, author_id, text, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, customer_id, author_id, text, created_at`, customerID, authorID, text).
		Scan(&n.ID, &n.CustomerID, &n.AuthorID, &n.Text, &n.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Note{}, shared.ErrNotFound
		}
		return Note{}, err
	}
	return n, nil
}

// Notes lists a customer's notes, newest first.
func (r *Repository) Notes(ctx context.Context, customerID int64) ([]Note, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, customer_id, author_id, text, created_at
		FROM customer_notes WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.CustomerID, &n.AuthorID, &n.Text, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Stats aggregates the registry.
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE created_at > NOW() - INTERVAL '30 days')
		FROM customers`).Scan(&s.Total, &s.AddedLast30d)
	return s, err
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.City, &c.Country, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, shared.ErrNotFound
		}
		return Customer{}, err
	}
	return c, nil
}
