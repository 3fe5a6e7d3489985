package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/event"
	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/workflow"
)

// entry pairs a hook implementation with the extension name captured at
// registration time.
type entry[H any] struct {
	name string
	hook H
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// A nil *Registry is valid and emits nothing.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	taskStarted      []entry[TaskStarted]
	taskCompleted    []entry[TaskCompleted]
	taskFailed       []entry[TaskFailed]
	stageInitiated   []entry[StageInitiated]
	attachRetrying   []entry[AttachRetrying]
	tokenRedeemed    []entry[TokenRedeemed]
	correlationMiss  []entry[CorrelationMiss]
	executionStarted []entry[ExecutionStarted]
	dlq              []entry[DLQ]
	shutdown         []entry[Shutdown]
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(TaskStarted); ok {
		r.taskStarted = append(r.taskStarted, entry[TaskStarted]{name, h})
	}
	if h, ok := e.(TaskCompleted); ok {
		r.taskCompleted = append(r.taskCompleted, entry[TaskCompleted]{name, h})
	}
	if h, ok := e.(TaskFailed); ok {
		r.taskFailed = append(r.taskFailed, entry[TaskFailed]{name, h})
	}
	if h, ok := e.(StageInitiated); ok {
		r.stageInitiated = append(r.stageInitiated, entry[StageInitiated]{name, h})
	}
	if h, ok := e.(AttachRetrying); ok {
		r.attachRetrying = append(r.attachRetrying, entry[AttachRetrying]{name, h})
	}
	if h, ok := e.(TokenRedeemed); ok {
		r.tokenRedeemed = append(r.tokenRedeemed, entry[TokenRedeemed]{name, h})
	}
	if h, ok := e.(CorrelationMiss); ok {
		r.correlationMiss = append(r.correlationMiss, entry[CorrelationMiss]{name, h})
	}
	if h, ok := e.(ExecutionStarted); ok {
		r.executionStarted = append(r.executionStarted, entry[ExecutionStarted]{name, h})
	}
	if h, ok := e.(DLQ); ok {
		r.dlq = append(r.dlq, entry[DLQ]{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, entry[Shutdown]{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension {
	if r == nil {
		return nil
	}
	return r.extensions
}

// ──────────────────────────────────────────────────
// Task event emitters
// ──────────────────────────────────────────────────

// EmitTaskStarted notifies all extensions that implement TaskStarted.
func (r *Registry) EmitTaskStarted(ctx context.Context, t *task.Task) {
	if r == nil {
		return
	}
	for _, e := range r.taskStarted {
		r.check("OnTaskStarted", e.name, e.hook.OnTaskStarted(ctx, t))
	}
}

// EmitTaskCompleted notifies all extensions that implement TaskCompleted.
func (r *Registry) EmitTaskCompleted(ctx context.Context, t *task.Task, elapsed time.Duration) {
	if r == nil {
		return
	}
	for _, e := range r.taskCompleted {
		r.check("OnTaskCompleted", e.name, e.hook.OnTaskCompleted(ctx, t, elapsed))
	}
}

// EmitTaskFailed notifies all extensions that implement TaskFailed.
func (r *Registry) EmitTaskFailed(ctx context.Context, t *task.Task, taskErr error) {
	if r == nil {
		return
	}
	for _, e := range r.taskFailed {
		r.check("OnTaskFailed", e.name, e.hook.OnTaskFailed(ctx, t, taskErr))
	}
}

// EmitStageInitiated notifies all extensions that implement StageInitiated.
func (r *Registry) EmitStageInitiated(ctx context.Context, t *task.Task, resourceID string) {
	if r == nil {
		return
	}
	for _, e := range r.stageInitiated {
		r.check("OnStageInitiated", e.name, e.hook.OnStageInitiated(ctx, t, resourceID))
	}
}

// EmitAttachRetrying notifies all extensions that implement AttachRetrying.
func (r *Registry) EmitAttachRetrying(ctx context.Context, t *task.Task, attempt int, attachErr error) {
	if r == nil {
		return
	}
	for _, e := range r.attachRetrying {
		r.check("OnAttachRetrying", e.name, e.hook.OnAttachRetrying(ctx, t, attempt, attachErr))
	}
}

// ──────────────────────────────────────────────────
// Event emitters
// ──────────────────────────────────────────────────

// EmitTokenRedeemed notifies all extensions that implement TokenRedeemed.
func (r *Registry) EmitTokenRedeemed(ctx context.Context, stage workflow.Stage, resourceID string) {
	if r == nil {
		return
	}
	for _, e := range r.tokenRedeemed {
		r.check("OnTokenRedeemed", e.name, e.hook.OnTokenRedeemed(ctx, stage, resourceID))
	}
}

// EmitCorrelationMiss notifies all extensions that implement CorrelationMiss.
func (r *Registry) EmitCorrelationMiss(ctx context.Context, kind event.Kind, resourceID string) {
	if r == nil {
		return
	}
	for _, e := range r.correlationMiss {
		r.check("OnCorrelationMiss", e.name, e.hook.OnCorrelationMiss(ctx, kind, resourceID))
	}
}

// EmitExecutionStarted notifies all extensions that implement ExecutionStarted.
func (r *Registry) EmitExecutionStarted(ctx context.Context, executionARN, instanceID string) {
	if r == nil {
		return
	}
	for _, e := range r.executionStarted {
		r.check("OnExecutionStarted", e.name, e.hook.OnExecutionStarted(ctx, executionARN, instanceID))
	}
}

// ──────────────────────────────────────────────────
// Other emitters
// ──────────────────────────────────────────────────

// EmitDLQ notifies all extensions that implement DLQ.
func (r *Registry) EmitDLQ(ctx context.Context, d *dlq.Entry) {
	if r == nil {
		return
	}
	for _, e := range r.dlq {
		r.check("OnDLQ", e.name, e.hook.OnDLQ(ctx, d))
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	if r == nil {
		return
	}
	for _, e := range r.shutdown {
		r.check("OnShutdown", e.name, e.hook.OnShutdown(ctx))
	}
}

// check logs a warning when a lifecycle hook returns an error. Errors
// from hooks are never propagated.
func (r *Registry) check(hook, extName string, err error) {
	if err == nil {
		return
	}
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
