package customers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rising-bsm/rising/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context, search string, p shared.Pagination) ([]Customer, error)
	Get(ctx context.Context, id int64) (Customer, error)
	Create(ctx context.Context, c Customer) (Customer, error)
	EnsureByEmail(ctx context.Context, name, email, phone string) (Customer, error)
	Update(ctx context.Context, id int64, upd Update) (Customer, error)
	Delete(ctx context.Context, id int64) error
	AddNote(ctx context.Context, customerID, authorID int64, text string) (Note, error)
	Notes(ctx context.Context, customerID int64) ([]Note, error)
	Stats(ctx context.Context) (Stats, error)
}

// Service implements the customer registry.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs a service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// List returns customers matching search.
func (s *Service) List(ctx context.Context, search string, p shared.Pagination) ([]Customer, error) {
	return s.repo.List(ctx, strings.TrimSpace(search), p)
}

// Get returns a single customer.
func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a new customer.
func (s *Service) Create(ctx context.Context, c Customer) (Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	created, err := s.repo.Create(ctx, c)
	if err != nil {
		return Customer{}, err
	}
	s.logger.Info("customer created", "customer_id", created.ID)
	return created, nil
}

// EnsureCustomer finds or creates the customer with the given email and
// returns its id. Used when converting a contact request.
func (s *Service) EnsureCustomer(ctx context.Context, name, email, phone string) (int64, error) {
	c, err := s.repo.EnsureByEmail(ctx, strings.TrimSpace(name), strings.ToLower(strings.TrimSpace(email)), phone)
	if err != nil {
		return 0, err
	}
	return c.ID, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id int64, upd Update) (Customer, error) {
	if upd.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*upd.Email))
		upd.Email = &normalized
	}
	return s.repo.Update(ctx, id, upd)
}

// Delete removes a customer.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("customer deleted", "customer_id", id)
	return nil
}

// AddNote attaches a note authored by authorID.
func (s *Service) AddNote(ctx context.Context, customerID, authorID int64, text string) (Note, error) {
	return s.repo.AddNote(ctx, customerID, authorID, strings.TrimSpace(text))
}

// Notes lists a customer's notes.
func (s *Service) Notes(ctx context.Context, customerID int64) ([]Note, error) {
	return s.repo.Notes(ctx, customerID)
}

// Stats aggregates the registry.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}
