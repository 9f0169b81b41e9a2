package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/rising-bsm/rising/internal/dashboard"
)

// OverviewRefresher recomputes the cached dashboard payload.
type OverviewRefresher interface {
	Refresh(ctx context.Context) (dashboard.Overview, error)
}

// DashboardRefreshJob keeps the dashboard cache warm between requests.
type DashboardRefreshJob struct {
	service OverviewRefresher
	logger  *slog.Logger
}

// NewDashboardRefreshJob constructs the job.
func NewDashboardRefreshJob(service OverviewRefresher, logger *slog.Logger) *DashboardRefreshJob {
	return &DashboardRefreshJob{service: service, logger: logger}
}

// Handle processes TaskDashboardRefresh tasks.
func (j *DashboardRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	overview, err := j.service.Refresh(ctx)
	if err != nil {
		j.logger.Error("refresh dashboard", slog.Any("error", err))
		return err
	}
	j.logger.Info("dashboard refreshed", slog.Time("generated_at", overview.GeneratedAt))
	return nil
}
