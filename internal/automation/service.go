package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rising-bsm/rising/internal/shared"
	"github.com/rising-bsm/rising/jobs"
)

// Delivery limits.
const (
	deliverTimeout        = 10 * time.Second
	defaultExecutionLimit = 20
	maxExecutionLimit     = 100
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	CreateWebhook(ctx context.Context, w Webhook) (Webhook, error)
	ListWebhooks(ctx context.Context) ([]Webhook, error)
	GetWebhook(ctx context.Context, id int64) (Webhook, error)
	CreateSchedule(ctx context.Context, s Schedule) (Schedule, error)
	ListSchedules(ctx context.Context) ([]Schedule, error)
	CreateExecution(ctx context.Context, webhookID int64, payload map[string]any) (Execution, error)
	GetExecution(ctx context.Context, id int64) (Execution, error)
	MarkExecution(ctx context.Context, id int64, status, detail string) (Execution, error)
	ListExecutions(ctx context.Context, limit int) ([]Execution, error)
}

// Enqueuer submits background tasks to the job queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Service implements webhook and scheduled task management. Triggering a
// webhook records a pending execution and hands delivery to the job queue;
// the worker calls Deliver to push the payload out.
type Service struct {
	repo   RepositoryPort
	queue  Enqueuer
	client *http.Client
	logger *slog.Logger
}

// NewService constructs a service.
func NewService(repo RepositoryPort, queue Enqueuer, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		queue:  queue,
		client: &http.Client{Timeout: deliverTimeout},
		logger: logger,
	}
}

// CreateWebhook registers an outbound webhook subscription.
func (s *Service) CreateWebhook(ctx context.Context, w Webhook) (Webhook, error) {
	w.Name = strings.TrimSpace(w.Name)
	if w.Name == "" {
		return Webhook{}, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	u, err := url.Parse(strings.TrimSpace(w.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Webhook{}, fmt.Errorf("%w: url must be absolute http(s)", shared.ErrValidation)
	}
	w.URL = u.String()
	if !ValidEntity(w.EntityType) {
		return Webhook{}, fmt.Errorf("%w: unknown entity type %q", shared.ErrValidation, w.EntityType)
	}
	if !ValidEvent(w.EventType) {
		return Webhook{}, fmt.Errorf("%w: unknown event type %q", shared.ErrValidation, w.EventType)
	}
	created, err := s.repo.CreateWebhook(ctx, w)
	if err != nil {
		return Webhook{}, err
	}
	s.logger.Info("webhook registered", "webhook_id", created.ID, "entity", created.EntityType, "event", created.EventType)
	return created, nil
}

// ListWebhooks returns all webhook subscriptions.
func (s *Service) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	return s.repo.ListWebhooks(ctx)
}

// Trigger records a pending execution for the webhook and enqueues its
// delivery. Inactive webhooks cannot be triggered.
func (s *Service) Trigger(ctx context.Context, webhookID int64, payload map[string]any) (Execution, error) {
	hook, err := s.repo.GetWebhook(ctx, webhookID)
	if err != nil {
		return Execution{}, err
	}
	if !hook.Active {
		return Execution{}, fmt.Errorf("%w: webhook %d is inactive", shared.ErrConflict, webhookID)
	}
	exec, err := s.repo.CreateExecution(ctx, webhookID, payload)
	if err != nil {
		return Execution{}, err
	}
	task, err := jobs.NewDeliverWebhookTask(exec.ID)
	if err != nil {
		return Execution{}, err
	}
	if _, err := s.queue.Enqueue(ctx, task, asynq.MaxRetry(3)); err != nil {
		if _, markErr := s.repo.MarkExecution(ctx, exec.ID, ExecutionFailed, "enqueue: "+err.Error()); markErr != nil {
			s.logger.Error("mark execution failed", "execution_id", exec.ID, "error", markErr)
		}
		return Execution{}, err
	}
	s.logger.Info("webhook triggered", "webhook_id", webhookID, "execution_id", exec.ID)
	return exec, nil
}

// Deliver posts a pending execution's payload to its webhook URL and records
// the outcome. Non-2xx responses count as failures.
func (s *Service) Deliver(ctx context.Context, executionID int64) error {
	exec, err := s.repo.GetExecution(ctx, executionID)
	if err != nil {
		return err
	}
	hook, err := s.repo.GetWebhook(ctx, exec.WebhookID)
	if err != nil {
		return err
	}
	body, err := json.Marshal(exec.Payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hook.Headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if _, markErr := s.repo.MarkExecution(ctx, executionID, ExecutionFailed, err.Error()); markErr != nil {
			return markErr
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if _, markErr := s.repo.MarkExecution(ctx, executionID, ExecutionFailed, detail); markErr != nil {
			return markErr
		}
		return fmt.Errorf("webhook %d: unexpected status %d", hook.ID, resp.StatusCode)
	}
	_, err = s.repo.MarkExecution(ctx, executionID, ExecutionDelivered, fmt.Sprintf("HTTP %d", resp.StatusCode))
	return err
}

// CreateSchedule registers a recurring background task.
func (s *Service) CreateSchedule(ctx context.Context, sched Schedule) (Schedule, error) {
	sched.Name = strings.TrimSpace(sched.Name)
	if sched.Name == "" {
		return Schedule{}, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	sched.Cron = strings.TrimSpace(sched.Cron)
	if fields := strings.Fields(sched.Cron); len(fields) != 5 {
		return Schedule{}, fmt.Errorf("%w: cron expression must have 5 fields", shared.ErrValidation)
	}
	if !ValidTaskType(sched.TaskType) {
		return Schedule{}, fmt.Errorf("%w: unknown task type %q", shared.ErrValidation, sched.TaskType)
	}
	if sched.Timezone == "" {
		sched.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(sched.Timezone); err != nil {
		return Schedule{}, fmt.Errorf("%w: unknown timezone %q", shared.ErrValidation, sched.Timezone)
	}
	created, err := s.repo.CreateSchedule(ctx, sched)
	if err != nil {
		return Schedule{}, err
	}
	s.logger.Info("schedule registered", "schedule_id", created.ID, "task_type", created.TaskType, "cron", created.Cron)
	return created, nil
}

// ListSchedules returns all scheduled task definitions.
func (s *Service) ListSchedules(ctx context.Context) ([]Schedule, error) {
	return s.repo.ListSchedules(ctx)
}

// ListExecutions returns the most recent executions. The limit defaults to
// 20 and is capped at 100.
func (s *Service) ListExecutions(ctx context.Context, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = defaultExecutionLimit
	}
	if limit > maxExecutionLimit {
		limit = maxExecutionLimit
	}
	return s.repo.ListExecutions(ctx, limit)
}
