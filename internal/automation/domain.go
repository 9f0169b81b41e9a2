// Package automation manages outbound webhooks, scheduled tasks and the
// delivery executions produced when a webhook fires.
package automation

import "time"

// Entities a webhook can subscribe to.
const (
	EntityCustomer    = "customer"
	EntityRequest     = "request"
	EntityAppointment = "appointment"
)

// Events a webhook can subscribe to.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Scheduled task types.
const (
	TaskReport  = "report"
	TaskCleanup = "cleanup"
	TaskSync    = "sync"
)

// Execution statuses.
const (
	ExecutionPending   = "pending"
	ExecutionDelivered = "delivered"
	ExecutionFailed    = "failed"
)

// Webhook is an outbound HTTP subscription on entity lifecycle events.
type Webhook struct {
	ID         int64             `json:"id"`
	Name       string            `json:"name"`
	URL        string            `json:"url"`
	EntityType string            `json:"entityType"`
	EventType  string            `json:"eventType"`
	Headers    map[string]string `json:"headers,omitempty"`
	Active     bool              `json:"active"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// Schedule is a recurring background task definition.
type Schedule struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Cron      string         `json:"cron"`
	TaskType  string         `json:"taskType"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timezone  string         `json:"timezone"`
	Active    bool           `json:"active"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Execution records one delivery attempt chain for a triggered webhook.
type Execution struct {
	ID          int64          `json:"id"`
	WebhookID   int64          `json:"webhookId"`
	Status      string         `json:"status"`
	Payload     map[string]any `json:"payload,omitempty"`
	Detail      string         `json:"detail,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	DeliveredAt *time.Time     `json:"deliveredAt,omitempty"`
}

// ValidEntity reports whether e is a subscribable entity type.
func ValidEntity(e string) bool {
	switch e {
	case EntityCustomer, EntityRequest, EntityAppointment:
		return true
	}
	return false
}

// ValidEvent reports whether e is a subscribable event type.
func ValidEvent(e string) bool {
	switch e {
	case EventCreated, EventUpdated, EventDeleted:
		return true
	}
	return false
}

// ValidTaskType reports whether t is a known scheduled task type.
func ValidTaskType(t string) bool {
	switch t {
	case TaskReport, TaskCleanup, TaskSync:
		return true
	}
	return false
}
