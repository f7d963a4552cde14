package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/deployd/pkg/domain"
)

// LoggingHooks logs every lifecycle event.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSpawn: func(ctx context.Context, e *domain.ProcessEvent) {
			logger.InfoContext(ctx, "deployment_spawn",
				"process", e.Process,
				"backing", e.Backing,
				"tasks", e.Tasks,
			)
		},
		OnTaskDisposed: func(ctx context.Context, e *domain.TaskEvent) {
			if e.Error != nil {
				logger.WarnContext(ctx, "task_dispose", "process", e.Process, "task", e.Task, "err", e.Error)
				return
			}
			logger.DebugContext(ctx, "task_dispose", "process", e.Process, "task", e.Task)
		},
		OnDead: func(ctx context.Context, e *domain.ProcessEvent) {
			status := "unknown"
			if e.Status != nil {
				status = e.Status.String()
			}
			logger.InfoContext(ctx, "deployment_dead",
				"process", e.Process,
				"backing", e.Backing,
				"status", status,
			)
		},
	}
}
