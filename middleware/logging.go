package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/volshift/task"
)

// Logging returns middleware that logs stage start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) error {
		logger.Info("stage started",
			slog.String("stage", t.Stage.String()),
			slog.String("task_id", t.ID),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("stage failed",
				slog.String("stage", t.Stage.String()),
				slog.String("task_id", t.ID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("stage completed",
				slog.String("stage", t.Stage.String()),
				slog.String("task_id", t.ID),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
