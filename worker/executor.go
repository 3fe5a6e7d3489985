// Package worker drives stage activities. A Pool polls the orchestrator
// for tasks and an Executor runs each one through middleware and its
// stage handler, settling failures on the DLQ and the orchestrator.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/ext"
	"github.com/xraph/volshift/initiator"
	"github.com/xraph/volshift/middleware"
	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/workflow"
)

// settleTimeout bounds the failure report sent after a handler gives up.
const settleTimeout = 10 * time.Second

// Executor runs a single task through middleware and its stage handler,
// then reports the result to extensions, the DLQ and the orchestrator.
type Executor struct {
	handlers    map[workflow.Stage]initiator.Handler
	redeemer    task.Redeemer
	extensions  *ext.Registry
	dlqService  *dlq.Service
	failStalled bool
	mw          middleware.Middleware
	logger      *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithFailStalled controls whether a parking stage that errors fails its
// token. attach-and-cleanup always fails its token.
func WithFailStalled(v bool) ExecutorOption {
	return func(e *Executor) { e.failStalled = v }
}

// WithMiddleware sets the middleware chain, outermost first.
func WithMiddleware(mws ...middleware.Middleware) ExecutorOption {
	return func(e *Executor) { e.mw = middleware.Chain(mws...) }
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	handlers map[workflow.Stage]initiator.Handler,
	redeemer task.Redeemer,
	extensions *ext.Registry,
	dlqService *dlq.Service,
	logger *slog.Logger,
	opts ...ExecutorOption,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		handlers:    handlers,
		redeemer:    redeemer,
		extensions:  extensions,
		dlqService:  dlqService,
		failStalled: true,
		mw:          middleware.Chain(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs t. On success it emits TaskCompleted. On failure it emits
// TaskFailed, records a DLQ entry and fails the token when the stage's
// policy says so. The handler error is returned unchanged.
func (e *Executor) Execute(ctx context.Context, t *task.Task) error {
	handler, ok := e.handlers[t.Stage]
	if !ok {
		err := fmt.Errorf("%w: %s", volshift.ErrNoStageHandler, t.Stage)
		e.handleFailure(ctx, t, err)
		return err
	}

	start := time.Now()
	terminal := func(ctx context.Context) error {
		return handler(ctx, t)
	}

	err := e.mw(ctx, t, terminal)
	if err != nil {
		e.handleFailure(ctx, t, err)
		return err
	}

	e.extensions.EmitTaskCompleted(ctx, t, time.Since(start))
	return nil
}

func (e *Executor) handleFailure(ctx context.Context, t *task.Task, handlerErr error) {
	e.extensions.EmitTaskFailed(ctx, t, handlerErr)

	code := task.ErrorCode(handlerErr)
	// The handler may have run out its own deadline; settle on a fresh one.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	e.sendToDLQ(settleCtx, t, code, handlerErr)

	if !e.shouldFail(t, handlerErr) {
		e.logger.Warn("stage failed, run left suspended",
			slog.String("task_id", t.ID),
			slog.String("stage", t.Stage.String()),
			slog.String("code", code),
			slog.String("error", handlerErr.Error()),
		)
		return
	}

	if err := e.redeemer.Fail(settleCtx, t.Token, code, handlerErr.Error()); err != nil {
		e.logger.Error("failed to fail task token",
			slog.String("task_id", t.ID),
			slog.String("stage", t.Stage.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	e.logger.Warn("stage failed, run ended",
		slog.String("task_id", t.ID),
		slog.String("stage", t.Stage.String()),
		slog.String("code", code),
		slog.String("error", handlerErr.Error()),
	)
}

func (e *Executor) shouldFail(t *task.Task, handlerErr error) bool {
	if errors.Is(handlerErr, volshift.ErrTokenRedeemed) {
		return false
	}
	if t.Stage == workflow.StageAttachAndCleanup {
		return true
	}
	return e.failStalled
}

func (e *Executor) sendToDLQ(ctx context.Context, t *task.Task, code string, handlerErr error) {
	if e.dlqService == nil {
		return
	}
	entry, err := e.dlqService.Push(ctx, dlq.Failure{
		Stage:      t.Stage,
		ResourceID: resourceOf(t),
		Code:       code,
		Err:        handlerErr,
		Input:      t.Input,
		Token:      t.Token,
	})
	if err != nil {
		e.logger.Error("failed to push task to DLQ",
			slog.String("task_id", t.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	e.extensions.EmitDLQ(ctx, entry)
}

// resourceOf picks the most specific resource named in the task input.
func resourceOf(t *task.Task) string {
	s, err := t.State()
	if err != nil {
		return ""
	}
	if s.WorkerInstance != nil && s.WorkerInstance.WorkerInstanceID != "" {
		return s.WorkerInstance.WorkerInstanceID
	}
	if s.TargetInstanceID != "" {
		return s.TargetInstanceID
	}
	return s.VolumeID
}
