package automation_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rising-bsm/rising/internal/automation"
	"github.com/rising-bsm/rising/internal/shared"
	"github.com/rising-bsm/rising/jobs"
	_ "github.com/rising-bsm/rising/testing"
)

type memoryRepo struct {
	webhookID   int64
	execID      int64
	schedID     int64
	webhooks    map[int64]automation.Webhook
	schedules   []automation.Schedule
	executions  map[int64]automation.Execution
	listedLimit int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		webhooks:   map[int64]automation.Webhook{},
		executions: map[int64]automation.Execution{},
	}
}

func (r *memoryRepo) CreateWebhook(ctx context.Context, w automation.Webhook) (automation.Webhook, error) {
	r.webhookID++
	w.ID = r.webhookID
	r.webhooks[w.ID] = w
	return w, nil
}

func (r *memoryRepo) ListWebhooks(ctx context.Context) ([]automation.Webhook, error) {
	var out []automation.Webhook
	for _, w := range r.webhooks {
		out = append(out, w)
	}
	return out, nil
}

func (r *memoryRepo) GetWebhook(ctx context.Context, id int64) (automation.Webhook, error) {
	w, ok := r.webhooks[id]
	if !ok {
		return automation.Webhook{}, shared.ErrNotFound
	}
	return w, nil
}

func (r *memoryRepo) CreateSchedule(ctx context.Context, s automation.Schedule) (automation.Schedule, error) {
	r.schedID++
	s.ID = r.schedID
	r.schedules = append(r.schedules, s)
	return s, nil
}

func (r *memoryRepo) ListSchedules(ctx context.Context) ([]automation.Schedule, error) {
	return r.schedules, nil
}

func (r *memoryRepo) CreateExecution(ctx context.Context, webhookID int64, payload map[string]any) (automation.Execution, error) {
	r.execID++
	e := automation.Execution{ID: r.execID, WebhookID: webhookID, Status: automation.ExecutionPending, Payload: payload}
	r.executions[e.ID] = e
	return e, nil
}

func (r *memoryRepo) GetExecution(ctx context.Context, id int64) (automation.Execution, error) {
	e, ok := r.executions[id]
	if !ok {
		return automation.Execution{}, shared.ErrNotFound
	}
	return e, nil
}

func (r *memoryRepo) MarkExecution(ctx context.Context, id int64, status, detail string) (automation.Execution, error) {
	e, ok := r.executions[id]
	if !ok {
		return automation.Execution{}, shared.ErrNotFound
	}
	e.Status = status
	e.Detail = detail
	if status == automation.ExecutionDelivered {
		now := time.Now()
		e.DeliveredAt = &now
	}
	r.executions[id] = e
	return e, nil
}

func (r *memoryRepo) ListExecutions(ctx context.Context, limit int) ([]automation.Execution, error) {
	r.listedLimit = limit
	return nil, nil
}

type stubQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *stubQueue) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func newService(repo automation.RepositoryPort, queue automation.Enqueuer) *automation.Service {
	return automation.NewService(repo, queue, slog.Default())
}

func registerWebhook(t *testing.T, svc *automation.Service, url string, active bool) automation.Webhook {
	t.Helper()
	hook, err := svc.CreateWebhook(context.Background(), automation.Webhook{
		Name:       "request intake feed",
		URL:        url,
		EntityType: automation.EntityRequest,
		EventType:  automation.EventCreated,
		Headers:    map[string]string{"X-Api-Key": "hunter2"},
		Active:     active,
	})
	if err != nil {
		t.Fatalf("create webhook: %v", err)
	}
	return hook
}

func TestCreateWebhookRejectsBadInput(t *testing.T) {
	svc := newService(newMemoryRepo(), &stubQueue{})
	ctx := context.Background()

	cases := []automation.Webhook{
		{Name: "", URL: "https://example.com/hook", EntityType: automation.EntityRequest, EventType: automation.EventCreated},
		{Name: "hook", URL: "ftp://example.com/hook", EntityType: automation.EntityRequest, EventType: automation.EventCreated},
		{Name: "hook", URL: "/relative", EntityType: automation.EntityRequest, EventType: automation.EventCreated},
		{Name: "hook", URL: "https://example.com/hook", EntityType: "invoice_run", EventType: automation.EventCreated},
		{Name: "hook", URL: "https://example.com/hook", EntityType: automation.EntityRequest, EventType: "archived"},
	}
	for _, in := range cases {
		if _, err := svc.CreateWebhook(ctx, in); !errors.Is(err, shared.ErrValidation) {
			t.Fatalf("webhook %+v: expected ErrValidation, got %v", in, err)
		}
	}
}

func TestTriggerEnqueuesDelivery(t *testing.T) {
	repo := newMemoryRepo()
	queue := &stubQueue{}
	svc := newService(repo, queue)
	hook := registerWebhook(t, svc, "https://example.com/hook", true)

	exec, err := svc.Trigger(context.Background(), hook.ID, map[string]any{"requestId": float64(7)})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if exec.Status != automation.ExecutionPending {
		t.Fatalf("fresh executions should be pending, got %q", exec.Status)
	}
	if len(queue.tasks) != 1 {
		t.Fatalf("expected 1 enqueued task, got %d", len(queue.tasks))
	}
	task := queue.tasks[0]
	if task.Type() != jobs.TaskAutomationDeliver {
		t.Fatalf("unexpected task type %q", task.Type())
	}
	var payload jobs.DeliverWebhookPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("decode task payload: %v", err)
	}
	if payload.ExecutionID != exec.ID {
		t.Fatalf("task should carry execution %d, got %d", exec.ID, payload.ExecutionID)
	}
}

func TestTriggerInactiveWebhook(t *testing.T) {
	repo := newMemoryRepo()
	queue := &stubQueue{}
	svc := newService(repo, queue)
	hook := registerWebhook(t, svc, "https://example.com/hook", false)

	if _, err := svc.Trigger(context.Background(), hook.ID, nil); !errors.Is(err, shared.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if len(queue.tasks) != 0 {
		t.Fatalf("inactive webhooks must not enqueue, got %d tasks", len(queue.tasks))
	}
}

func TestTriggerEnqueueFailureMarksExecutionFailed(t *testing.T) {
	repo := newMemoryRepo()
	queue := &stubQueue{err: errors.New("queue unavailable")}
	svc := newService(repo, queue)
	hook := registerWebhook(t, svc, "https://example.com/hook", true)

	if _, err := svc.Trigger(context.Background(), hook.ID, nil); err == nil {
		t.Fatal("expected enqueue error")
	}
	exec, err := repo.GetExecution(context.Background(), 1)
	if err != nil {
		t.Fatalf("get execution: %v", err)
	}
	if exec.Status != automation.ExecutionFailed {
		t.Fatalf("execution should be marked failed, got %q", exec.Status)
	}
}

func TestDeliverPostsPayload(t *testing.T) {
	var gotBody []byte
	var gotKey, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotKey = r.Header.Get("X-Api-Key")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := newMemoryRepo()
	svc := newService(repo, &stubQueue{})
	hook := registerWebhook(t, svc, srv.URL, true)
	exec, err := svc.Trigger(context.Background(), hook.ID, map[string]any{"requestId": float64(7)})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}

	if err := svc.Deliver(context.Background(), exec.ID); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if gotKey != "hunter2" {
		t.Fatalf("custom headers should be forwarded, got %q", gotKey)
	}
	if gotContentType != "application/json" {
		t.Fatalf("wrong content type %q", gotContentType)
	}
	var body map[string]any
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("decode delivered body: %v", err)
	}
	if body["requestId"] != float64(7) {
		t.Fatalf("payload should reach the destination, got %v", body)
	}

	delivered, err := repo.GetExecution(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("get execution: %v", err)
	}
	if delivered.Status != automation.ExecutionDelivered {
		t.Fatalf("execution should be delivered, got %q", delivered.Status)
	}
	if delivered.DeliveredAt == nil {
		t.Fatal("delivery timestamp should be set")
	}
}

func TestDeliverNon2xxMarksFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	repo := newMemoryRepo()
	svc := newService(repo, &stubQueue{})
	hook := registerWebhook(t, svc, srv.URL, true)
	exec, err := svc.Trigger(context.Background(), hook.ID, nil)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}

	if err := svc.Deliver(context.Background(), exec.ID); err == nil {
		t.Fatal("expected delivery error")
	}
	failed, err := repo.GetExecution(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("get execution: %v", err)
	}
	if failed.Status != automation.ExecutionFailed {
		t.Fatalf("execution should be failed, got %q", failed.Status)
	}
	if failed.Detail != "HTTP 502" {
		t.Fatalf("detail should carry the status, got %q", failed.Detail)
	}
}

func TestCreateScheduleValidation(t *testing.T) {
	svc := newService(newMemoryRepo(), &stubQueue{})
	ctx := context.Background()

	cases := []automation.Schedule{
		{Name: "", Cron: "0 6 * * *", TaskType: automation.TaskReport},
		{Name: "daily report", Cron: "every day", TaskType: automation.TaskReport},
		{Name: "daily report", Cron: "0 6 * * *", TaskType: "backup"},
		{Name: "daily report", Cron: "0 6 * * *", TaskType: automation.TaskReport, Timezone: "Mars/Olympus"},
	}
	for _, in := range cases {
		if _, err := svc.CreateSchedule(ctx, in); !errors.Is(err, shared.ErrValidation) {
			t.Fatalf("schedule %+v: expected ErrValidation, got %v", in, err)
		}
	}

	created, err := svc.CreateSchedule(ctx, automation.Schedule{
		Name: "daily report", Cron: "0 6 * * *", TaskType: automation.TaskReport, Active: true,
	})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if created.Timezone != "UTC" {
		t.Fatalf("timezone should default to UTC, got %q", created.Timezone)
	}
}

func TestListExecutionsClampsLimit(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, &stubQueue{})
	ctx := context.Background()

	if _, err := svc.ListExecutions(ctx, 0); err != nil {
		t.Fatalf("list executions: %v", err)
	}
	if repo.listedLimit != 20 {
		t.Fatalf("zero limit should default to 20, got %d", repo.listedLimit)
	}
	if _, err := svc.ListExecutions(ctx, 1000); err != nil {
		t.Fatalf("list executions: %v", err)
	}
	if repo.listedLimit != 100 {
		t.Fatalf("limit should cap at 100, got %d", repo.listedLimit)
	}
}
