package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// TokenPurger removes expired refresh tokens.
type TokenPurger interface {
	PurgeExpiredRefreshTokens(ctx context.Context) (int64, error)
}

// PurgeTokensJob deletes refresh tokens past their expiry.
type PurgeTokensJob struct {
	purger TokenPurger
	logger *slog.Logger
}

// NewPurgeTokensJob constructs the job.
func NewPurgeTokensJob(purger TokenPurger, logger *slog.Logger) *PurgeTokensJob {
	return &PurgeTokensJob{purger: purger, logger: logger}
}

// Handle processes TaskAuthPurgeTokens tasks.
func (j *PurgeTokensJob) Handle(ctx context.Context, t *asynq.Task) error {
	removed, err := j.purger.PurgeExpiredRefreshTokens(ctx)
	if err != nil {
		j.logger.Error("purge refresh tokens", slog.Any("error", err))
		return err
	}
	j.logger.Info("purged refresh tokens", slog.Int64("removed", removed))
	return nil
}
