// Package jobs contains the asynq background task definitions and worker
// plumbing.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskAuthPurgeTokens removes expired refresh tokens from storage.
	TaskAuthPurgeTokens = "auth:purge_tokens"
	// TaskRBACWarmCache pre-resolves permission sets for recently active
	// users.
	TaskRBACWarmCache = "rbac:warm_cache"
	// TaskDashboardRefresh recomputes the cached dashboard overview.
	TaskDashboardRefresh = "dashboard:refresh"
	// TaskAutomationDeliver posts a pending webhook execution to its
	// destination URL.
	TaskAutomationDeliver = "automation:deliver_webhook"
)

// WarmCachePayload bounds the warmup scan.
type WarmCachePayload struct {
	SinceHours int `json:"since_hours"`
	Limit      int `json:"limit"`
}

// NewPurgeTokensTask constructs the purge task.
func NewPurgeTokensTask() *asynq.Task {
	return asynq.NewTask(TaskAuthPurgeTokens, nil)
}

// NewWarmCacheTask constructs the warmup task.
func NewWarmCacheTask(payload WarmCachePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRBACWarmCache, data), nil
}

// NewDashboardRefreshTask constructs the dashboard refresh task.
func NewDashboardRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskDashboardRefresh, nil)
}

// DeliverWebhookPayload identifies the execution to deliver.
type DeliverWebhookPayload struct {
	ExecutionID int64 `json:"execution_id"`
}

// NewDeliverWebhookTask constructs the webhook delivery task.
func NewDeliverWebhookTask(executionID int64) (*asynq.Task, error) {
	data, err := json.Marshal(DeliverWebhookPayload{ExecutionID: executionID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAutomationDeliver, data), nil
}
