package ext

import (
	"context"
	"time"

	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/event"
	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/workflow"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Task lifecycle hooks
// ──────────────────────────────────────────────────

// TaskStarted is called when a poller hands a task to its stage handler.
type TaskStarted interface {
	OnTaskStarted(ctx context.Context, t *task.Task) error
}

// TaskCompleted is called after a stage handler returns nil.
type TaskCompleted interface {
	OnTaskCompleted(ctx context.Context, t *task.Task, elapsed time.Duration) error
}

// TaskFailed is called when a stage handler returns an error.
type TaskFailed interface {
	OnTaskFailed(ctx context.Context, t *task.Task, err error) error
}

// StageInitiated is called after a stage started its external operation
// and parked the token under resourceID.
type StageInitiated interface {
	OnStageInitiated(ctx context.Context, t *task.Task, resourceID string) error
}

// AttachRetrying is called after each failed attach attempt.
type AttachRetrying interface {
	OnAttachRetrying(ctx context.Context, t *task.Task, attempt int, err error) error
}

// ──────────────────────────────────────────────────
// Event hooks
// ──────────────────────────────────────────────────

// TokenRedeemed is called after a resumer resumed a run.
type TokenRedeemed interface {
	OnTokenRedeemed(ctx context.Context, stage workflow.Stage, resourceID string) error
}

// CorrelationMiss is called when an event of a kind that always belongs
// to a run finds no record.
type CorrelationMiss interface {
	OnCorrelationMiss(ctx context.Context, kind event.Kind, resourceID string) error
}

// ExecutionStarted is called after an alarm started a run.
type ExecutionStarted interface {
	OnExecutionStarted(ctx context.Context, executionARN, instanceID string) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// DLQ is called after an entry is written to the dead letter queue.
type DLQ interface {
	OnDLQ(ctx context.Context, e *dlq.Entry) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
