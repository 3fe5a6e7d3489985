package resumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/event"
	"github.com/xraph/volshift/workflow"
)

// CommandCompleted handles a successful command status event. It looks
// up the invocation, then tries each candidate stage in order for the
// instance the command ran on. No live record under any candidate is
// ignored: most commands do not belong to a run.
func (r *Resumer) CommandCompleted(ctx context.Context, e *event.Envelope) (Outcome, error) {
	var d event.CommandStatusDetail
	if err := e.DecodeDetail(&d); err != nil {
		return "", err
	}
	if d.CommandID == "" {
		return "", fmt.Errorf("%w: command status event has no command-id", volshift.ErrInvalidEvent)
	}

	inv, err := r.invocation(ctx, d.CommandID)
	if err != nil {
		return "", err
	}

	for n, c := range r.candidates {
		rec, err := r.records.TakeRecord(ctx, inv.InstanceID, c.Stage)
		if errors.Is(err, volshift.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("take %s/%s: %w", inv.InstanceID, c.Stage, err)
		}
		r.warnShadowed(ctx, inv.InstanceID, r.candidates[n+1:])

		payload, perr := c.Payload(inv)
		if perr != nil {
			return r.fail(ctx, e, rec, workflow.ErrorMissingOutput, perr)
		}
		return r.redeem(ctx, e, rec, payload)
	}

	r.logger.Debug("command matched no stage",
		slog.String("command_id", inv.CommandID),
		slog.String("instance_id", inv.InstanceID),
	)
	return OutcomeIgnored, nil
}

// invocation returns the first invocation of the command with its first
// plugin's output.
func (r *Resumer) invocation(ctx context.Context, commandID string) (Invocation, error) {
	out, err := r.commands.ListCommandInvocations(ctx, &ssm.ListCommandInvocationsInput{
		CommandId: aws.String(commandID),
		Details:   true,
	})
	if err != nil {
		return Invocation{}, fmt.Errorf("%w: list invocations of %s: %w", volshift.ErrExternalCall, commandID, err)
	}
	if len(out.CommandInvocations) == 0 || aws.ToString(out.CommandInvocations[0].InstanceId) == "" {
		return Invocation{}, fmt.Errorf("%w: %s", volshift.ErrNoInvocation, commandID)
	}

	first := out.CommandInvocations[0]
	inv := Invocation{
		CommandID:  commandID,
		InstanceID: aws.ToString(first.InstanceId),
	}
	if len(first.CommandPlugins) > 0 {
		inv.Output = aws.ToString(first.CommandPlugins[0].Output)
	}
	return inv, nil
}

// warnShadowed logs when a lower priority candidate also holds a live
// record for the instance. Only the first candidate is acted on.
func (r *Resumer) warnShadowed(ctx context.Context, instanceID string, rest []Candidate) {
	for _, c := range rest {
		if _, err := r.records.GetRecord(ctx, instanceID, c.Stage); err == nil {
			r.logger.Warn("command matched several stages",
				slog.String("instance_id", instanceID),
				slog.String("shadowed_stage", c.Stage.String()),
			)
		}
	}
}
