package automation

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rising-bsm/rising/internal/shared"
)

// Repository provides PostgreSQL backed persistence for automation.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateWebhook inserts a webhook subscription.
func (r *Repository) CreateWebhook(ctx context.Context, w Webhook) (Webhook, error) {
	headers, err := json.Marshal(w.Headers)
	if err != nil {
		return Webhook{}, err
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO automation_webhooks (name, url, entity_type, event_type, headers, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, name, url, entity_type, event_type, headers, active, created_at, updated_at`,
		w.Name, w.URL, w.EntityType, w.EventType, headers, w.Active)
	return scanWebhook(row)
}

// ListWebhooks returns all webhook subscriptions, newest first.
func (r *Repository) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, url, entity_type, event_type, headers, active, created_at, updated_at
		FROM automation_webhooks ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetWebhook returns a single webhook subscription.
func (r *Repository) GetWebhook(ctx context.Context, id int64) (Webhook, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, url, entity_type, event_type, headers, active, created_at, updated_at
		FROM automation_webhooks WHERE id = $1`, id)
	return scanWebhook(row)
}

// CreateSchedule inserts a scheduled task definition.
func (r *Repository) CreateSchedule(ctx context.Context, s Schedule) (Schedule, error) {
	payload, err := json.Marshal(s.Payload)
	if err != nil {
		return Schedule{}, err
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO automation_schedules (name, cron, task_type, payload, timezone, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, name, cron, task_type, payload, timezone, active, created_at`,
		s.Name, s.Cron, s.TaskType, payload, s.Timezone, s.Active)
	return scanSchedule(row)
}

// ListSchedules returns all scheduled task definitions, newest first.
func (r *Repository) ListSchedules(ctx context.Context) ([]Schedule, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, cron, task_type, payload, timezone, active, created_at
		FROM automation_schedules ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateExecution inserts a pending execution for a webhook.
func (r *Repository) CreateExecution(ctx context.Context, webhookID int64, payload map[string]any) (Execution, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Execution{}, err
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO automation_executions (webhook_id, status, payload, detail, created_at)
		VALUES ($1, $2, $3, '', NOW())
		RETURNING id, webhook_id, status, payload, detail, created_at, delivered_at`,
		webhookID, ExecutionPending, data)
	exec, err := scanExecution(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Execution{}, shared.ErrNotFound
		}
		return Execution{}, err
	}
	return exec, nil
}

// GetExecution returns a single execution.
func (r *Repository) GetExecution(ctx context.Context, id int64) (Execution, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, webhook_id, status, payload, detail, created_at, delivered_at
		FROM automation_executions WHERE id = $1`, id)
	return scanExecution(row)
}

// MarkExecution records the outcome of a delivery attempt. The delivery
// timestamp is set only when the execution reaches "delivered".
func (r *Repository) MarkExecution(ctx context.Context, id int64, status, detail string) (Execution, error) {
	row := r.pool.QueryRow(ctx, `UPDATE automation_executions
		SET status = $2, detail = $3,
			delivered_at = CASE WHEN $2 = 'delivered' THEN NOW() ELSE delivered_at END
		WHERE id = $1
		RETURNING id, webhook_id, status, payload, detail, created_at, delivered_at`,
		id, status, detail)
	return scanExecution(row)
}

// ListExecutions returns the most recent executions.
func (r *Repository) ListExecutions(ctx context.Context, limit int) ([]Execution, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, webhook_id, status, payload, detail, created_at, delivered_at
		FROM automation_executions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanWebhook(row pgx.Row) (Webhook, error) {
	var w Webhook
	var headers []byte
	err := row.Scan(&w.ID, &w.Name, &w.URL, &w.EntityType, &w.EventType, &headers, &w.Active, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Webhook{}, shared.ErrNotFound
		}
		return Webhook{}, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &w.Headers); err != nil {
			return Webhook{}, err
		}
	}
	return w, nil
}

func scanSchedule(row pgx.Row) (Schedule, error) {
	var s Schedule
	var payload []byte
	err := row.Scan(&s.ID, &s.Name, &s.Cron, &s.TaskType, &payload, &s.Timezone, &s.Active, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Schedule{}, shared.ErrNotFound
		}
		return Schedule{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &s.Payload); err != nil {
			return Schedule{}, err
		}
	}
	return s, nil
}

func scanExecution(row pgx.Row) (Execution, error) {
	var e Execution
	var payload []byte
	err := row.Scan(&e.ID, &e.WebhookID, &e.Status, &payload, &e.Detail, &e.CreatedAt, &e.DeliveredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Execution{}, shared.ErrNotFound
		}
		return Execution{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return Execution{}, err
		}
	}
	return e, nil
}
