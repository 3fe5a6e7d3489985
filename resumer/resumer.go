package resumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/cloud"
	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/event"
	"github.com/xraph/volshift/ext"
	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/workflow"
)

// restoreTimeout bounds putting a taken record back after a failed
// redemption.
const restoreTimeout = 10 * time.Second

// Resumer routes completion events to the resumer for their kind.
type Resumer struct {
	records  correlation.Store
	redeemer task.Redeemer
	commands cloud.Commands
	tasks    cloud.Tasks

	dlq             *dlq.Service
	extensions      *ext.Registry
	logger          *slog.Logger
	filter          event.Filter
	candidates      []Candidate
	stateMachineARN string
}

// Option configures a Resumer.
type Option func(*Resumer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resumer) { r.logger = l }
}

// WithExtensions sets the extension registry.
func WithExtensions(reg *ext.Registry) Option {
	return func(r *Resumer) { r.extensions = reg }
}

// WithDLQ sets the dead letter queue that records lost tokens and failed
// stages.
func WithDLQ(s *dlq.Service) Option {
	return func(r *Resumer) { r.dlq = s }
}

// WithFilter replaces the event filter.
func WithFilter(f event.Filter) Option {
	return func(r *Resumer) { r.filter = f }
}

// WithCandidates replaces the ordered command stage candidates.
func WithCandidates(c ...Candidate) Option {
	return func(r *Resumer) { r.candidates = c }
}

// WithStateMachine sets the state machine alarms start.
func WithStateMachine(arn string) Option {
	return func(r *Resumer) { r.stateMachineARN = arn }
}

// New creates a Resumer.
func New(records correlation.Store, redeemer task.Redeemer, commands cloud.Commands, tasks cloud.Tasks, opts ...Option) *Resumer {
	r := &Resumer{
		records:    records,
		redeemer:   redeemer,
		commands:   commands,
		tasks:      tasks,
		logger:     slog.Default(),
		candidates: DefaultCandidates(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle processes one event. Events that fail the filter, or whose kind
// is unknown, are ignored without error.
func (r *Resumer) Handle(ctx context.Context, e *event.Envelope) (Outcome, error) {
	kind := e.Kind()
	if kind == event.KindUnknown || !r.filter.Match(e) {
		r.logger.Debug("event ignored",
			slog.String("source", e.Source),
			slog.String("detail_type", e.DetailType),
			slog.String("event_id", e.ID),
		)
		return OutcomeIgnored, nil
	}

	switch kind {
	case event.KindAlarmStateChange:
		return r.StartRun(ctx, e)
	case event.KindCommandStatusChange:
		return r.CommandCompleted(ctx, e)
	case event.KindAgentActive:
		return r.AgentActive(ctx, e)
	case event.KindVolumeNotification:
		return r.VolumeCreated(ctx, e)
	case event.KindInstanceStateChange:
		return r.InstanceStopped(ctx, e)
	}
	return OutcomeIgnored, nil
}

// resume takes the record for one unambiguous stage and redeems it with
// payload. No live record is a miss.
func (r *Resumer) resume(ctx context.Context, e *event.Envelope, resourceID string, stage workflow.Stage, payload any) (Outcome, error) {
	rec, err := r.records.TakeRecord(ctx, resourceID, stage)
	if errors.Is(err, volshift.ErrRecordNotFound) {
		r.miss(ctx, e, resourceID, stage)
		return OutcomeMissed, nil
	}
	if err != nil {
		return "", fmt.Errorf("take %s/%s: %w", resourceID, stage, err)
	}
	return r.redeem(ctx, e, rec, payload)
}

// redeem resumes the run parked in rec.
func (r *Resumer) redeem(ctx context.Context, e *event.Envelope, rec *correlation.Record, payload any) (Outcome, error) {
	out, err := r.settle(ctx, e, rec, func(ctx context.Context) error {
		return r.redeemer.Succeed(ctx, rec.Token, payload)
	})
	if err == nil && out == OutcomeRedeemed {
		r.logger.Info("token redeemed",
			slog.String("stage", rec.Stage.String()),
			slog.String("resource_id", rec.ResourceID),
			slog.String("event_id", e.ID),
		)
		r.extensions.EmitTokenRedeemed(ctx, rec.Stage, rec.ResourceID)
	}
	return out, err
}

// fail ends the run parked in rec with code and records the failure.
func (r *Resumer) fail(ctx context.Context, e *event.Envelope, rec *correlation.Record, code string, cause error) (Outcome, error) {
	out, err := r.settle(ctx, e, rec, func(ctx context.Context) error {
		return r.redeemer.Fail(ctx, rec.Token, code, cause.Error())
	})
	if err != nil {
		return out, err
	}
	r.logger.Warn("stage failed from event",
		slog.String("stage", rec.Stage.String()),
		slog.String("resource_id", rec.ResourceID),
		slog.String("code", code),
		slog.String("error", cause.Error()),
	)
	if out == OutcomeRedeemed {
		r.pushDLQ(ctx, e, dlq.Failure{
			Stage:      rec.Stage,
			ResourceID: rec.ResourceID,
			Code:       code,
			Err:        cause,
			Token:      rec.Token,
		})
	}
	return out, nil
}

// settle calls send for a taken record. A token the orchestrator no
// longer knows stays deleted and goes to the DLQ; any other failure puts
// the record back so a redelivered event can retry.
func (r *Resumer) settle(ctx context.Context, e *event.Envelope, rec *correlation.Record, send func(context.Context) error) (Outcome, error) {
	err := send(ctx)
	switch {
	case err == nil:
		return OutcomeRedeemed, nil

	case errors.Is(err, volshift.ErrTokenRedeemed):
		r.logger.Warn("token no longer accepted",
			slog.String("stage", rec.Stage.String()),
			slog.String("resource_id", rec.ResourceID),
			slog.String("error", err.Error()),
		)
		code := cloud.ErrorCode(err)
		if code == "" {
			code = workflow.ErrorInternal
		}
		r.pushDLQ(ctx, e, dlq.Failure{
			Stage:      rec.Stage,
			ResourceID: rec.ResourceID,
			Code:       code,
			Err:        err,
			Token:      rec.Token,
		})
		return OutcomeMissed, nil

	default:
		// The caller's context may be what failed the redemption.
		restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
		defer cancel()
		if putErr := r.records.PutRecord(restoreCtx, rec); putErr != nil && !errors.Is(putErr, volshift.ErrWriteConflict) {
			r.logger.Error("failed to restore correlation record",
				slog.String("stage", rec.Stage.String()),
				slog.String("resource_id", rec.ResourceID),
				slog.String("error", putErr.Error()),
			)
		}
		return "", fmt.Errorf("settle %s: %w", rec.Key(), err)
	}
}

func (r *Resumer) miss(ctx context.Context, e *event.Envelope, resourceID string, stage workflow.Stage) {
	r.logger.Warn("correlation miss",
		slog.String("kind", string(e.Kind())),
		slog.String("stage", stage.String()),
		slog.String("resource_id", resourceID),
		slog.String("event_id", e.ID),
	)
	r.extensions.EmitCorrelationMiss(ctx, e.Kind(), resourceID)
}

func (r *Resumer) pushDLQ(ctx context.Context, e *event.Envelope, f dlq.Failure) {
	if r.dlq == nil {
		return
	}
	if raw, err := json.Marshal(e); err == nil {
		f.Input = raw
	}
	entry, err := r.dlq.Push(ctx, f)
	if err != nil {
		r.logger.Error("failed to push to DLQ",
			slog.String("stage", f.Stage.String()),
			slog.String("resource_id", f.ResourceID),
			slog.String("error", err.Error()),
		)
		return
	}
	r.extensions.EmitDLQ(ctx, entry)
}
