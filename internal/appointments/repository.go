package appointments

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rising-bsm/rising/internal/shared"
)

const appointmentColumns = `id, customer_id, title, starts_at, ends_at, location, note, status, cancel_reason, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for appointments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns appointments overlapping [from, to), optionally filtered by
// status, ordered by start time.
func (r *Repository) List(ctx context.Context, from, to time.Time, status string, p shared.Pagination) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments
		WHERE starts_at < $2 AND ends_at >= $1
		  AND ($3 = '' OR status = $3)
		ORDER BY starts_at
		LIMIT $4 OFFSET $5`, from, to, status, p.PerPage, p.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Get fetches an appointment by id.
func (r *Repository) Get(ctx context.Context, id int64) (Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

// Create inserts a new appointment.
func (r *Repository) Create(ctx context.Context, a Appointment) (Appointment, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO appointments (customer_id, title, starts_at, ends_at, location, note, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING `+appointmentColumns,
		a.CustomerID, a.Title, a.StartsAt, a.EndsAt, a.Location, a.Note, a.Status)
	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Appointment{}, shared.ErrNotFound
		}
		return Appointment{}, err
	}
	return created, nil
}

// Update applies the non-nil fields of upd.
func (r *Repository) Update(ctx context.Context, id int64, upd Update) (Appointment, error) {
	row := r.pool.QueryRow(ctx, `UPDATE appointments SET
			title = COALESCE($2, title),
			starts_at = COALESCE($3, starts_at),
			ends_at = COALESCE($4, ends_at),
			location = COALESCE($5, location),
			note = COALESCE($6, note),
			status = COALESCE($7, status),
			updated_at = NOW()
		WHERE id = $1 RETURNING `+appointmentColumns,
		id, upd.Title, upd.StartsAt, upd.EndsAt, upd.Location, upd.Note, upd.Status)
	return scanAppointment(row)
}

// Cancel marks an appointment cancelled with a reason.
func (r *Repository) Cancel(ctx context.Context, id int64, reason string) (Appointment, error) {
	row := r.pool.QueryRow(ctx, `UPDATE appointments SET status = $2, cancel_reason = $3, updated_at = NOW()
		WHERE id = $1 RETURNING `+appointmentColumns, id, StatusCancelled, reason)
	return scanAppointment(row)
}

// Stats aggregates appointments.
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE starts_at > NOW() AND status IN ('planned', 'confirmed')),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM appointments`).
		Scan(&s.Total, &s.Upcoming, &s.Completed, &s.Cancelled)
	return s, err
}

func scanAppointment(row pgx.Row) (Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.CustomerID, &a.Title, &a.StartsAt, &a.EndsAt, &a.Location, &a.Note,
		&a.Status, &a.CancelReason, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, shared.ErrNotFound
		}
		return Appointment{}, err
	}
	return a, nil
}
