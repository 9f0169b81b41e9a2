package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rising-bsm/rising/internal/auth"
	"github.com/rising-bsm/rising/internal/rbac"
)

// UserDirectory looks up accounts for the warmup scan.
type UserDirectory interface {
	ActiveUserIDs(ctx context.Context, since time.Time, limit int) ([]int64, error)
	FindUserByID(ctx context.Context, id int64) (*auth.User, error)
}

// PermissionWarmer resolves a principal's permission set, filling the cache
// as a side effect.
type PermissionWarmer interface {
	EffectivePermissions(ctx context.Context, principal auth.Principal) (rbac.PermissionSet, error)
}

// WarmCacheJob pre-resolves permissions for users seen recently so their
// first request after a deploy does not pay the resolution cost.
type WarmCacheJob struct {
	users  UserDirectory
	warmer PermissionWarmer
	logger *slog.Logger
	now    func() time.Time
}

// NewWarmCacheJob constructs the job.
func NewWarmCacheJob(users UserDirectory, warmer PermissionWarmer, logger *slog.Logger) *WarmCacheJob {
	return &WarmCacheJob{users: users, warmer: warmer, logger: logger, now: time.Now}
}

// Handle processes TaskRBACWarmCache tasks.
func (j *WarmCacheJob) Handle(ctx context.Context, t *asynq.Task) error {
	payload := WarmCachePayload{SinceHours: 24, Limit: 200}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.SinceHours <= 0 {
		payload.SinceHours = 24
	}
	since := j.now().Add(-time.Duration(payload.SinceHours) * time.Hour)
	ids, err := j.users.ActiveUserIDs(ctx, since, payload.Limit)
	if err != nil {
		j.logger.Error("list active users", slog.Any("error", err))
		return err
	}
	warmed := 0
	for _, id := range ids {
		user, err := j.users.FindUserByID(ctx, id)
		if err != nil {
			continue
		}
		if !user.IsActive {
			continue
		}
		principal := auth.Principal{UserID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
		if _, err := j.warmer.EffectivePermissions(ctx, principal); err != nil {
			j.logger.Warn("warm permissions", slog.Int64("user_id", id), slog.Any("error", err))
			continue
		}
		warmed++
	}
	j.logger.Info("permission cache warmed", slog.Int("users", warmed))
	return nil
}
