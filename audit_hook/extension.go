package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/event"
	"github.com/xraph/volshift/ext"
	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/workflow"
)

// Compile-time interface checks.
var (
	_ ext.Extension        = (*Extension)(nil)
	_ ext.TaskStarted      = (*Extension)(nil)
	_ ext.TaskCompleted    = (*Extension)(nil)
	_ ext.TaskFailed       = (*Extension)(nil)
	_ ext.StageInitiated   = (*Extension)(nil)
	_ ext.AttachRetrying   = (*Extension)(nil)
	_ ext.TokenRedeemed    = (*Extension)(nil)
	_ ext.CorrelationMiss  = (*Extension)(nil)
	_ ext.ExecutionStarted = (*Extension)(nil)
	_ ext.DLQ              = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail record.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges volshift lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Task lifecycle hooks ────────────────────────────

// OnTaskStarted implements ext.TaskStarted.
func (e *Extension) OnTaskStarted(ctx context.Context, t *task.Task) error {
	return e.record(ctx, ActionTaskStarted, SeverityInfo, OutcomeSuccess,
		ResourceTask, t.ID, CategoryTask, nil,
		"stage", t.Stage.String(),
	)
}

// OnTaskCompleted implements ext.TaskCompleted.
func (e *Extension) OnTaskCompleted(ctx context.Context, t *task.Task, elapsed time.Duration) error {
	return e.record(ctx, ActionTaskCompleted, SeverityInfo, OutcomeSuccess,
		ResourceTask, t.ID, CategoryTask, nil,
		"stage", t.Stage.String(),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnTaskFailed implements ext.TaskFailed.
func (e *Extension) OnTaskFailed(ctx context.Context, t *task.Task, taskErr error) error {
	return e.record(ctx, ActionTaskFailed, SeverityCritical, OutcomeFailure,
		ResourceTask, t.ID, CategoryTask, taskErr,
		"stage", t.Stage.String(),
		"code", task.ErrorCode(taskErr),
	)
}

// OnStageInitiated implements ext.StageInitiated.
func (e *Extension) OnStageInitiated(ctx context.Context, t *task.Task, resourceID string) error {
	return e.record(ctx, ActionStageInitiated, SeverityInfo, OutcomeSuccess,
		ResourceCorrelation, resourceID, CategoryTask, nil,
		"stage", t.Stage.String(),
		"task_id", t.ID,
	)
}

// OnAttachRetrying implements ext.AttachRetrying.
func (e *Extension) OnAttachRetrying(ctx context.Context, t *task.Task, attempt int, attachErr error) error {
	return e.record(ctx, ActionAttachRetrying, SeverityWarning, OutcomeFailure,
		ResourceTask, t.ID, CategoryTask, attachErr,
		"stage", t.Stage.String(),
		"attempt", attempt,
	)
}

// ── Event hooks ─────────────────────────────────────

// OnTokenRedeemed implements ext.TokenRedeemed.
func (e *Extension) OnTokenRedeemed(ctx context.Context, stage workflow.Stage, resourceID string) error {
	return e.record(ctx, ActionTokenRedeemed, SeverityInfo, OutcomeSuccess,
		ResourceCorrelation, resourceID, CategoryEvent, nil,
		"stage", stage.String(),
	)
}

// OnCorrelationMiss implements ext.CorrelationMiss.
func (e *Extension) OnCorrelationMiss(ctx context.Context, kind event.Kind, resourceID string) error {
	return e.record(ctx, ActionCorrelationMiss, SeverityWarning, OutcomeFailure,
		ResourceCorrelation, resourceID, CategoryEvent, nil,
		"kind", string(kind),
	)
}

// OnExecutionStarted implements ext.ExecutionStarted.
func (e *Extension) OnExecutionStarted(ctx context.Context, executionARN, instanceID string) error {
	return e.record(ctx, ActionExecutionStarted, SeverityInfo, OutcomeSuccess,
		ResourceExecution, executionARN, CategoryEvent, nil,
		"instance_id", instanceID,
	)
}

// ── DLQ hook ────────────────────────────────────────

// OnDLQ implements ext.DLQ.
func (e *Extension) OnDLQ(ctx context.Context, entry *dlq.Entry) error {
	return e.record(ctx, ActionDLQPushed, SeverityCritical, OutcomeFailure,
		ResourceDLQEntry, entry.ID.String(), CategoryDLQ, nil,
		"stage", entry.Stage.String(),
		"code", entry.Code,
		"resource_id", entry.ResourceID,
		"error", entry.Error,
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
