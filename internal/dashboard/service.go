// Package dashboard aggregates operational stats for the overview screen.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rising-bsm/rising/internal/appointments"
	"github.com/rising-bsm/rising/internal/customers"
	"github.com/rising-bsm/rising/internal/invoices"
	"github.com/rising-bsm/rising/internal/requests"
)

const (
	cacheKey = "dashboard:stats"

	// DefaultCacheTTL bounds how stale the overview may get.
	DefaultCacheTTL = 5 * time.Minute
)

// Overview is the aggregated dashboard payload.
type Overview struct {
	Requests     requests.Stats     `json:"requests"`
	Customers    customers.Stats    `json:"customers"`
	Appointments appointments.Stats `json:"appointments"`
	Invoices     invoices.Stats     `json:"invoices"`
	GeneratedAt  time.Time          `json:"generatedAt"`
}

// RequestStats, CustomerStats, AppointmentStats and InvoiceStats expose the
// per-slice aggregations the dashboard composes.
type RequestStats interface {
	Stats(ctx context.Context) (requests.Stats, error)
}

type CustomerStats interface {
	Stats(ctx context.Context) (customers.Stats, error)
}

type AppointmentStats interface {
	Stats(ctx context.Context) (appointments.Stats, error)
}

type InvoiceStats interface {
	Stats(ctx context.Context) (invoices.Stats, error)
}

// Service computes the overview and caches it in Redis.
type Service struct {
	requests     RequestStats
	customers    CustomerStats
	appointments AppointmentStats
	invoices     InvoiceStats
	cache        *redis.Client
	ttl          time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewService constructs a service. cache may be nil, which disables caching.
func NewService(req RequestStats, cust CustomerStats, appt AppointmentStats, inv InvoiceStats, cache *redis.Client, logger *slog.Logger) *Service {
	return &Service{
		requests:     req,
		customers:    cust,
		appointments: appt,
		invoices:     inv,
		cache:        cache,
		ttl:          DefaultCacheTTL,
		logger:       logger,
		now:          time.Now,
	}
}

// Overview returns the cached overview, recomputing it on a miss.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKey).Bytes()
		switch {
		case err == nil:
			var cached Overview
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
			s.logger.Warn("discarding malformed dashboard cache entry")
		case !errors.Is(err, redis.Nil):
			s.logger.Warn("dashboard cache read failed", "error", err)
		}
	}
	return s.Refresh(ctx)
}

// Refresh recomputes the overview and rewrites the cache entry.
func (s *Service) Refresh(ctx context.Context) (Overview, error) {
	var overview Overview
	var err error
	if overview.Requests, err = s.requests.Stats(ctx); err != nil {
		return Overview{}, fmt.Errorf("request stats: %w", err)
	}
	if overview.Customers, err = s.customers.Stats(ctx); err != nil {
		return Overview{}, fmt.Errorf("customer stats: %w", err)
	}
	if overview.Appointments, err = s.appointments.Stats(ctx); err != nil {
		return Overview{}, fmt.Errorf("appointment stats: %w", err)
	}
	if overview.Invoices, err = s.invoices.Stats(ctx); err != nil {
		return Overview{}, fmt.Errorf("invoice stats: %w", err)
	}
	overview.GeneratedAt = s.now()
	if s.cache != nil {
		raw, err := json.Marshal(overview)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, raw, s.ttl).Err(); err != nil {
				s.logger.Warn("dashboard cache write failed", "error", err)
			}
		}
	}
	return overview, nil
}
