package appointments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rising-bsm/rising/internal/shared"
)

// DefaultDuration is applied when a booking omits the end time.
const DefaultDuration = time.Hour

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context, from, to time.Time, status string, p shared.Pagination) ([]Appointment, error)
	Get(ctx context.Context, id int64) (Appointment, error)
	Create(ctx context.Context, a Appointment) (Appointment, error)
	Update(ctx context.Context, id int64, upd Update) (Appointment, error)
	Cancel(ctx context.Context, id int64, reason string) (Appointment, error)
	Stats(ctx context.Context) (Stats, error)
}

// Service implements appointment scheduling.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs a service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// List returns appointments overlapping [from, to).
func (s *Service) List(ctx context.Context, from, to time.Time, status string, p shared.Pagination) ([]Appointment, error) {
	if status != "" && !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	if to.IsZero() {
		to = from.AddDate(0, 1, 0)
	}
	if !to.After(from) {
		return nil, fmt.Errorf("%w: range end must be after range start", shared.ErrValidation)
	}
	return s.repo.List(ctx, from, to, status, p)
}

// Get returns a single appointment.
func (s *Service) Get(ctx context.Context, id int64) (Appointment, error) {
	return s.repo.Get(ctx, id)
}

// Create books a new appointment in status "planned".
func (s *Service) Create(ctx context.Context, a Appointment) (Appointment, error) {
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" {
		return Appointment{}, fmt.Errorf("%w: title is required", shared.ErrValidation)
	}
	if a.EndsAt.IsZero() {
		a.EndsAt = a.StartsAt.Add(DefaultDuration)
	}
	if !a.EndsAt.After(a.StartsAt) {
		return Appointment{}, fmt.Errorf("%w: end must be after start", shared.ErrValidation)
	}
	a.Status = StatusPlanned
	created, err := s.repo.Create(ctx, a)
	if err != nil {
		return Appointment{}, err
	}
	s.logger.Info("appointment booked", "appointment_id", created.ID, "customer_id", created.CustomerID)
	return created, nil
}

// Schedule books an appointment for a converted contact request and returns
// its id.
func (s *Service) Schedule(ctx context.Context, customerID int64, title string, startsAt time.Time, note string) (int64, error) {
	created, err := s.Create(ctx, Appointment{
		CustomerID: customerID,
		Title:      title,
		StartsAt:   startsAt,
		Note:       note,
	})
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

// Update applies a partial update. Cancelled appointments are immutable.
func (s *Service) Update(ctx context.Context, id int64, upd Update) (Appointment, error) {
	if upd.Status != nil && !ValidStatus(*upd.Status) {
		return Appointment{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, *upd.Status)
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if current.Status == StatusCancelled {
		return Appointment{}, fmt.Errorf("%w: appointment %d is cancelled", shared.ErrConflict, id)
	}
	return s.repo.Update(ctx, id, upd)
}

// Cancel marks an appointment cancelled. A reason is required.
func (s *Service) Cancel(ctx context.Context, id int64, reason string) (Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Appointment{}, fmt.Errorf("%w: a cancellation reason is required", shared.ErrValidation)
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if current.Status == StatusCancelled {
		return Appointment{}, fmt.Errorf("%w: appointment %d is already cancelled", shared.ErrConflict, id)
	}
	cancelled, err := s.repo.Cancel(ctx, id, reason)
	if err != nil {
		return Appointment{}, err
	}
	s.logger.Info("appointment cancelled", "appointment_id", id)
	return cancelled, nil
}

// Stats aggregates appointments.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}
