package initiator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/workflow"
)

// AttachAndCleanup releases both volumes from the worker, attaches the
// replacement to the target as its root device, restarts the target,
// terminates the worker and redeems its own token with an empty payload.
//
// The target is never started before the attach succeeds. When the
// attach retrier gives up the returned error wraps
// volshift.ErrAttachExhausted and the worker and the target are left as
// they are for an operator.
func (i *Initiator) AttachAndCleanup(ctx context.Context, t *task.Task) error {
	state, err := stateFor(t)
	if err != nil {
		return err
	}
	worker := state.WorkerInstance.WorkerInstanceID
	replacement := state.WorkerInstance.ReplacementVolumeID

	for _, vol := range []string{replacement, state.VolumeID} {
		if _, err := i.storage.DetachVolume(ctx, &ec2.DetachVolumeInput{
			VolumeId:   aws.String(vol),
			InstanceId: aws.String(worker),
		}); err != nil {
			return external(fmt.Sprintf("detach %s from worker", vol), err)
		}
	}

	attempts, err := i.retrier(ctx, t).Do(ctx, func(ctx context.Context) error {
		_, err := i.storage.AttachVolume(ctx, &ec2.AttachVolumeInput{
			VolumeId:   aws.String(replacement),
			InstanceId: aws.String(state.TargetInstanceID),
			Device:     aws.String(i.config.Devices.Root),
		})
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, volshift.ErrAttachExhausted):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("attach replacement to target: %w", err)
	default:
		return external("attach replacement to target", err)
	}
	i.logger.Info("replacement attached",
		slog.String("volume_id", replacement),
		slog.String("instance_id", state.TargetInstanceID),
		slog.Int("attempts", attempts),
	)

	if _, err := i.compute.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{state.TargetInstanceID},
	}); err != nil {
		return external("start target instance", err)
	}
	if _, err := i.compute.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{worker},
	}); err != nil {
		return external("terminate worker instance", err)
	}

	if err := i.redeemer.Succeed(ctx, t.Token, workflow.Empty{}); err != nil {
		return fmt.Errorf("redeem cleanup token: %w", err)
	}
	return nil
}
