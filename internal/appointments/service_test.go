package appointments

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rising-bsm/rising/internal/shared"
)

type mockRepository struct {
	appointments map[int64]*Appointment
	nextID       int64

	cancelCalls int
}

func newMockRepository() *mockRepository {
	return &mockRepository{appointments: make(map[int64]*Appointment)}
}

func (m *mockRepository) List(ctx context.Context, from, to time.Time, status string, p shared.Pagination) ([]Appointment, error) {
	var out []Appointment
	for _, a := range m.appointments {
		if a.StartsAt.Before(to) && !a.EndsAt.Before(from) {
			if status == "" || a.Status == status {
				out = append(out, *a)
			}
		}
	}
	return out, nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return Appointment{}, shared.ErrNotFound
	}
	return *a, nil
}

func (m *mockRepository) Create(ctx context.Context, a Appointment) (Appointment, error) {
	m.nextID++
	a.ID = m.nextID
	m.appointments[a.ID] = &a
	return a, nil
}

func (m *mockRepository) Update(ctx context.Context, id int64, upd Update) (Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return Appointment{}, shared.ErrNotFound
	}
	if upd.Title != nil {
		a.Title = *upd.Title
	}
	if upd.StartsAt != nil {
		a.StartsAt = *upd.StartsAt
	}
	if upd.EndsAt != nil {
		a.EndsAt = *upd.EndsAt
	}
	if upd.Status != nil {
		a.Status = *upd.Status
	}
	return *a, nil
}

func (m *mockRepository) Cancel(ctx context.Context, id int64, reason string) (Appointment, error) {
	m.cancelCalls++
	a, ok := m.appointments[id]
	if !ok {
		return Appointment{}, shared.ErrNotFound
	}
	a.Status = StatusCancelled
	a.CancelReason = reason
	return *a, nil
}

func (m *mockRepository) Stats(ctx context.Context) (Stats, error) {
	return Stats{Total: int64(len(m.appointments))}, nil
}

func newTestService() (*Service, *mockRepository) {
	repo := newMockRepository()
	return NewService(repo, slog.Default()), repo
}

func TestCreateDefaultsDuration(t *testing.T) {
	svc, _ := newTestService()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	a, err := svc.Create(context.Background(), Appointment{CustomerID: 3, Title: "Walkthrough", StartsAt: start})
	require.NoError(t, err)
	assert.Equal(t, StatusPlanned, a.Status)
	assert.Equal(t, start.Add(DefaultDuration), a.EndsAt)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	_, err := svc.Create(ctx, Appointment{CustomerID: 3, Title: "  ", StartsAt: start})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Appointment{CustomerID: 3, Title: "Walkthrough", StartsAt: start, EndsAt: start.Add(-time.Hour)})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestScheduleReturnsID(t *testing.T) {
	svc, repo := newTestService()

	id, err := svc.Schedule(context.Background(), 3, "Walkthrough", time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), "from request")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Len(t, repo.appointments, 1)
}

func TestCancelRequiresReason(t *testing.T) {
	svc, repo := newTestService()
	a, err := svc.Create(context.Background(), Appointment{CustomerID: 3, Title: "Walkthrough", StartsAt: time.Now()})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), a.ID, "   ")
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Zero(t, repo.cancelCalls)
}

func TestCancelledIsTerminal(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	a, err := svc.Create(ctx, Appointment{CustomerID: 3, Title: "Walkthrough", StartsAt: time.Now()})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, a.ID, "customer no-show")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "customer no-show", cancelled.CancelReason)

	_, err = svc.Cancel(ctx, a.ID, "again")
	require.ErrorIs(t, err, shared.ErrConflict)

	confirmed := StatusConfirmed
	_, err = svc.Update(ctx, a.ID, Update{Status: &confirmed})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestListRangeValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.List(ctx, from, from.Add(-time.Hour), "", shared.Pagination{Page: 1, PerPage: 20})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.List(ctx, from, time.Time{}, "postponed", shared.Pagination{Page: 1, PerPage: 20})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestListOverlapIncludesSpanningAppointments(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	dayStart := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	// Starts before the window, ends inside it.
	_, err := svc.Create(ctx, Appointment{
		CustomerID: 3,
		Title:      "Overnight install",
		StartsAt:   dayStart.Add(-2 * time.Hour),
		EndsAt:     dayStart.Add(3 * time.Hour),
	})
	require.NoError(t, err)

	list, err := svc.List(ctx, dayStart, dayStart.AddDate(0, 0, 1), "", shared.Pagination{Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
