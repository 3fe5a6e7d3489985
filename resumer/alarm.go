package resumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/event"
)

// maxExecutionName is the longest execution name the orchestrator accepts.
const maxExecutionName = 80

// StartRun starts a state machine execution with the alarm event as its
// input. The execution is named after the event id, so a redelivered
// alarm does not start a second run.
func (r *Resumer) StartRun(ctx context.Context, e *event.Envelope) (Outcome, error) {
	var d event.AlarmDetail
	if err := e.DecodeDetail(&d); err != nil {
		return "", err
	}
	instanceID, _, err := d.Target()
	if err != nil {
		return "", err
	}
	if r.stateMachineARN == "" {
		r.logger.Warn("alarm ignored, no state machine configured",
			slog.String("alarm", d.AlarmName),
		)
		return OutcomeIgnored, nil
	}

	input, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal alarm event: %w", err)
	}
	in := &sfn.StartExecutionInput{
		StateMachineArn: aws.String(r.stateMachineARN),
		Input:           aws.String(string(input)),
	}
	if name := executionName(e.ID); name != "" {
		in.Name = aws.String(name)
	}

	out, err := r.tasks.StartExecution(ctx, in)
	if err != nil {
		return "", fmt.Errorf("%w: start execution for %s: %w", volshift.ErrExternalCall, d.AlarmName, err)
	}

	arn := aws.ToString(out.ExecutionArn)
	r.logger.Info("run started",
		slog.String("alarm", d.AlarmName),
		slog.String("instance_id", instanceID),
		slog.String("execution_arn", arn),
	)
	r.extensions.EmitExecutionStarted(ctx, arn, instanceID)
	return OutcomeStarted, nil
}

func executionName(eventID string) string {
	if eventID == "" {
		return ""
	}
	name := "volshift-" + eventID
	if len(name) > maxExecutionName {
		name = name[:maxExecutionName]
	}
	return name
}
