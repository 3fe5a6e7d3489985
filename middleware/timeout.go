package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/workflow"
)

// Timeout returns middleware that bounds each stage invocation. Stages in
// overrides use their own deadline; the rest use def. A zero duration
// leaves the context alone.
func Timeout(logger *slog.Logger, def time.Duration, overrides map[workflow.Stage]time.Duration) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) error {
		d := def
		if o, ok := overrides[t.Stage]; ok {
			d = o
		}
		if d > 0 {
			logger.Debug("stage timeout set",
				slog.String("task_id", t.ID),
				slog.Duration("timeout", d),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
