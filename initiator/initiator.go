package initiator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/attach"
	"github.com/xraph/volshift/backoff"
	"github.com/xraph/volshift/cloud"
	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/ext"
	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/workflow"
)

// Handler runs one stage for one task.
type Handler func(ctx context.Context, t *task.Task) error

// Initiator holds what the stage handlers share.
type Initiator struct {
	compute  cloud.Compute
	storage  cloud.Storage
	commands cloud.Commands
	records  correlation.Store
	redeemer task.Redeemer
	config   volshift.Config

	extensions *ext.Registry
	logger     *slog.Logger
	attachOpts []attach.Option
}

// Option configures an Initiator.
type Option func(*Initiator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Initiator) { i.logger = l }
}

// WithExtensions sets the extension registry notified of initiated stages
// and attach retries.
func WithExtensions(r *ext.Registry) Option {
	return func(i *Initiator) { i.extensions = r }
}

// WithAttachOptions passes options to every attach retrier the handlers
// build.
func WithAttachOptions(opts ...attach.Option) Option {
	return func(i *Initiator) { i.attachOpts = append(i.attachOpts, opts...) }
}

// New creates an Initiator.
func New(
	compute cloud.Compute,
	storage cloud.Storage,
	commands cloud.Commands,
	records correlation.Store,
	redeemer task.Redeemer,
	cfg volshift.Config,
	opts ...Option,
) *Initiator {
	i := &Initiator{
		compute:  compute,
		storage:  storage,
		commands: commands,
		records:  records,
		redeemer: redeemer,
		config:   cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Handlers returns the handler for every stage.
func (i *Initiator) Handlers() map[workflow.Stage]Handler {
	return map[workflow.Stage]Handler{
		workflow.StageResize:           i.Resize,
		workflow.StageCreateInstance:   i.CreateInstance,
		workflow.StageCreateVolume:     i.CreateVolume,
		workflow.StageStopTarget:       i.StopTarget,
		workflow.StageShuffleAndCopy:   i.ShuffleAndCopy,
		workflow.StageAttachAndCleanup: i.AttachAndCleanup,
	}
}

// park records t's token under resourceID. A redelivered task whose token
// is already parked under the same key is not an error.
func (i *Initiator) park(ctx context.Context, t *task.Task, resourceID string) error {
	rec := &correlation.Record{ResourceID: resourceID, Stage: t.Stage, Token: t.Token}
	err := i.records.PutRecord(ctx, rec)
	if errors.Is(err, volshift.ErrWriteConflict) {
		existing, getErr := i.records.GetRecord(ctx, resourceID, t.Stage)
		if getErr == nil && existing.Token == t.Token {
			err = nil
		}
	}
	if err != nil {
		return fmt.Errorf("park %s: %w", rec.Key(), err)
	}

	i.logger.Info("stage initiated",
		slog.String("stage", t.Stage.String()),
		slog.String("task_id", t.ID),
		slog.String("resource_id", resourceID),
	)
	i.extensions.EmitStageInitiated(ctx, t, resourceID)
	return nil
}

// retrier builds an attach retrier for t from the configured policy.
func (i *Initiator) retrier(ctx context.Context, t *task.Task) *attach.Retrier {
	policy := attach.Policy{
		MaxAttempts: i.config.Attach.MaxAttempts,
		Permanent:   cloud.IsPermanent,
	}
	if i.config.Attach.Delay > 0 {
		policy.Backoff = backoff.NewConstant(i.config.Attach.Delay)
	}
	opts := []attach.Option{
		attach.WithLogger(i.logger),
		attach.WithProgress(func(attempt int, err error) {
			i.extensions.EmitAttachRetrying(ctx, t, attempt, err)
		}),
	}
	return attach.New(policy, append(opts, i.attachOpts...)...)
}

func external(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", volshift.ErrExternalCall, op, err)
}
