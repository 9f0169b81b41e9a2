package requests

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rising-bsm/rising/internal/shared"
)

const requestColumns = `id, name, email, phone, service, message, status, processor_id, customer_id, appointment_id, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for contact requests.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new request in status "new".
func (r *Repository) Create(ctx context.Context, in Intake) (Request, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO contact_requests (name, email, phone, service, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING `+requestColumns,
		in.Name, in.Email, in.Phone, in.Service, in.Message, StatusNew)
	return scanRequest(row)
}

// List returns requests filtered by status ("" for all), newest first.
func (r *Repository) List(ctx context.Context, status string, p shared.Pagination) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM contact_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, status, p.PerPage, p.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Get fetches a request by id.
func (r *Repository) Get(ctx context.Context, id int64) (Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM contact_requests WHERE id = $1`, id)
	return scanRequest(row)
}

// UpdateStatus transitions a request to status.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status string) (Request, error) {
	row := r.pool.QueryRow(ctx, `UPDATE contact_requests SET status = $2, updated_at = NOW()
		WHERE id = $1 RETURNING `+requestColumns, id, status)
	return scanRequest(row)
}

// Assign sets the processor of a request and moves it to "in_progress".
func (r *Repository) Assign(ctx context.Context, id, processorID int64) (Request, error) {
	row := r.pool.QueryRow(ctx, `UPDATE contact_requests SET processor_id = $2, status = $3, updated_at = NOW()
		WHERE id = $1 RETURNING `+requestColumns, id, processorID, StatusInProgress)
	return scanRequest(row)
}

// Link attaches a customer and appointment to a completed request.
func (r *Repository) Link(ctx context.Context, id, customerID, appointmentID int64) (Request, error) {
	row := r.pool.QueryRow(ctx, `UPDATE contact_requests SET customer_id = $2, appointment_id = $3, status = $4, updated_at = NOW()
		WHERE id = $1 RETURNING `+requestColumns, id, customerID, appointmentID, StatusCompleted)
	return scanRequest(row)
}

// Stats aggregates request counts by status.
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'new'),
			COUNT(*) FILTER (WHERE status = 'in_progress'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM contact_requests`).
		Scan(&s.Total, &s.New, &s.InProgress, &s.Completed, &s.Cancelled)
	return s, err
}

// AddNote appends a note to a request.
func (r *Repository) AddNote(ctx context.Context, requestID, authorID int64, text string) (Note, error) {
	var n Note
	err := r.pool.QueryRow(ctx, `INSERT INTO request_notes (request_id, author_id, text, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, request_id, author_id, text, created_at`, requestID, authorID, text).
		Scan(&n.ID, &n.RequestID, &n.AuthorID, &n.Text, &n.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Note{}, shared.ErrNotFound
		}
		return Note{}, err
	}
	return n, nil
}

// Notes returns a request's notes, newest first.
func (r *Repository) Notes(ctx context.Context, requestID int64) ([]Note, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, request_id, author_id, text, created_at
		FROM request_notes WHERE request_id = $1 ORDER BY created_at DESC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.RequestID, &n.AuthorID, &n.Text, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.Name, &req.Email, &req.Phone, &req.Service, &req.Message,
		&req.Status, &req.ProcessorID, &req.CustomerID, &req.AppointmentID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, shared.ErrNotFound
		}
		return Request{}, err
	}
	return req, nil
}
