package requests

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rising-bsm/rising/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, in Intake) (Request, error)
	List(ctx context.Context, status string, p shared.Pagination) ([]Request, error)
	Get(ctx context.Context, id int64) (Request, error)
	UpdateStatus(ctx context.Context, id int64, status string) (Request, error)
	Assign(ctx context.Context, id, processorID int64) (Request, error)
	Link(ctx context.Context, id, customerID, appointmentID int64) (Request, error)
	AddNote(ctx context.Context, requestID, authorID int64, text string) (Note, error)
	Notes(ctx context.Context, requestID int64) ([]Note, error)
	Stats(ctx context.Context) (Stats, error)
}

// CustomerDirectory resolves or creates the customer record for a request.
type CustomerDirectory interface {
	EnsureCustomer(ctx context.Context, name, email, phone string) (int64, error)
}

// AppointmentScheduler books the appointment created during conversion.
type AppointmentScheduler interface {
	Schedule(ctx context.Context, customerID int64, title string, startsAt time.Time, note string) (int64, error)
}

// Service implements contact request processing.
type Service struct {
	repo      RepositoryPort
	customers CustomerDirectory
	scheduler AppointmentScheduler
	logger    *slog.Logger
}

// NewService constructs a service.
func NewService(repo RepositoryPort, customers CustomerDirectory, scheduler AppointmentScheduler, logger *slog.Logger) *Service {
	return &Service{repo: repo, customers: customers, scheduler: scheduler, logger: logger}
}

// Submit records a new public contact request.
func (s *Service) Submit(ctx context.Context, in Intake) (Request, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	req, err := s.repo.Create(ctx, in)
	if err != nil {
		return Request{}, err
	}
	s.logger.Info("contact request received", "request_id", req.ID, "service", req.Service)
	return req, nil
}

// List returns requests, optionally filtered to a single status.
func (s *Service) List(ctx context.Context, status string, p shared.Pagination) ([]Request, error) {
	if status != "" && !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	return s.repo.List(ctx, status, p)
}

// Get returns a single request.
func (s *Service) Get(ctx context.Context, id int64) (Request, error) {
	return s.repo.Get(ctx, id)
}

// UpdateStatus transitions a request. Completed and cancelled requests are
// terminal and reject further transitions.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (Request, error) {
	if !ValidStatus(status) {
		return Request{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if current.Status == StatusCompleted || current.Status == StatusCancelled {
		return Request{}, fmt.Errorf("%w: request %d is %s", shared.ErrConflict, id, current.Status)
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

// Assign hands a request to a processor and marks it in progress.
func (s *Service) Assign(ctx context.Context, id, processorID int64) (Request, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if current.Status == StatusCompleted || current.Status == StatusCancelled {
		return Request{}, fmt.Errorf("%w: request %d is %s", shared.ErrConflict, id, current.Status)
	}
	req, err := s.repo.Assign(ctx, id, processorID)
	if err != nil {
		return Request{}, err
	}
	s.logger.Info("contact request assigned", "request_id", id, "processor_id", processorID)
	return req, nil
}

// Convert turns a request into a customer and a booked appointment, then
// completes the request.
func (s *Service) Convert(ctx context.Context, id int64, startsAt time.Time, note string) (Request, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if current.Status == StatusCompleted || current.Status == StatusCancelled {
		return Request{}, fmt.Errorf("%w: request %d is %s", shared.ErrConflict, id, current.Status)
	}
	customerID, err := s.customers.EnsureCustomer(ctx, current.Name, current.Email, current.Phone)
	if err != nil {
		return Request{}, fmt.Errorf("ensure customer: %w", err)
	}
	appointmentID, err := s.scheduler.Schedule(ctx, customerID, current.Service, startsAt, note)
	if err != nil {
		return Request{}, fmt.Errorf("schedule appointment: %w", err)
	}
	req, err := s.repo.Link(ctx, id, customerID, appointmentID)
	if err != nil {
		return Request{}, err
	}
	s.logger.Info("contact request converted", "request_id", id, "customer_id", customerID, "appointment_id", appointmentID)
	return req, nil
}

// AddNote attaches a note authored by authorID.
func (s *Service) AddNote(ctx context.Context, requestID, authorID int64, text string) (Note, error) {
	return s.repo.AddNote(ctx, requestID, authorID, strings.TrimSpace(text))
}

// Notes lists a request's notes, newest first.
func (s *Service) Notes(ctx context.Context, requestID int64) ([]Note, error) {
	return s.repo.Notes(ctx, requestID)
}

// Stats aggregates request counts by status.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}
