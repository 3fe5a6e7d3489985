package cron

import (
	"context"
	"fmt"
)

// Definition is a typed entry. Params is bound when the entry is
// registered and handed to Run on every activation.
type Definition[T any] struct {
	// Name is the unique identifier for this entry.
	Name string

	// Schedule is a cron expression (e.g., "*/5 * * * *" or "@every 30s").
	Schedule string

	// Params is the fixed input for each run.
	Params T

	// Run does the work.
	Run func(ctx context.Context, params T) error
}

// RegisterDefinition adds def to s.
func RegisterDefinition[T any](s *Scheduler, def Definition[T]) error {
	if def.Run == nil {
		return fmt.Errorf("cron %q: no run function", def.Name)
	}
	params, run := def.Params, def.Run
	return s.Register(def.Name, def.Schedule, func(ctx context.Context) error {
		return run(ctx, params)
	})
}
