package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// WebhookDeliverer posts a pending webhook execution to its destination.
type WebhookDeliverer interface {
	Deliver(ctx context.Context, executionID int64) error
}

// DeliverWebhookJob pushes queued webhook executions out over HTTP.
type DeliverWebhookJob struct {
	deliverer WebhookDeliverer
	logger    *slog.Logger
}

// NewDeliverWebhookJob constructs the job.
func NewDeliverWebhookJob(deliverer WebhookDeliverer, logger *slog.Logger) *DeliverWebhookJob {
	return &DeliverWebhookJob{deliverer: deliverer, logger: logger}
}

// Handle processes TaskAutomationDeliver tasks.
func (j *DeliverWebhookJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload DeliverWebhookPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.ExecutionID <= 0 {
		return asynq.SkipRetry
	}
	if err := j.deliverer.Deliver(ctx, payload.ExecutionID); err != nil {
		j.logger.Error("deliver webhook", slog.Int64("execution_id", payload.ExecutionID), slog.Any("error", err))
		return err
	}
	j.logger.Info("webhook delivered", slog.Int64("execution_id", payload.ExecutionID))
	return nil
}
