package initiator

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/task"
)

// ShuffleAndCopy moves the original volume from the stopped target onto
// the worker next to the replacement and starts the copy command. The
// token is parked under the worker, which runs the command.
//
// The original volume is still detaching when the first attach is made,
// so that attach goes through the bounded retrier.
func (i *Initiator) ShuffleAndCopy(ctx context.Context, t *task.Task) error {
	state, err := stateFor(t)
	if err != nil {
		return err
	}
	worker := state.WorkerInstance.WorkerInstanceID
	replacement := state.WorkerInstance.ReplacementVolumeID
	dev := i.config.Devices

	if _, err := i.storage.DetachVolume(ctx, &ec2.DetachVolumeInput{
		VolumeId:   aws.String(state.VolumeID),
		InstanceId: aws.String(state.TargetInstanceID),
	}); err != nil {
		return external("detach volume from target", err)
	}

	if _, err := i.retrier(ctx, t).Do(ctx, func(ctx context.Context) error {
		_, err := i.storage.AttachVolume(ctx, &ec2.AttachVolumeInput{
			VolumeId:   aws.String(state.VolumeID),
			InstanceId: aws.String(worker),
			Device:     aws.String(dev.TargetOnWorker),
		})
		return err
	}); err != nil {
		// Exhaustion here is an ordinary external failure, not the
		// cleanup stage's attach failure.
		return fmt.Errorf("%w: attach volume to worker: %v", volshift.ErrExternalCall, err)
	}

	if _, err := i.storage.AttachVolume(ctx, &ec2.AttachVolumeInput{
		VolumeId:   aws.String(replacement),
		InstanceId: aws.String(worker),
		Device:     aws.String(dev.ReplacementOnWorker),
	}); err != nil {
		return external("attach replacement to worker", err)
	}

	in := &ssm.SendCommandInput{
		DocumentName: aws.String(i.config.Commands.CopyDocument),
		InstanceIds:  []string{worker},
		CloudWatchOutputConfig: &ssmtypes.CloudWatchOutputConfig{
			CloudWatchOutputEnabled: i.config.Commands.CloudWatchOutput,
		},
	}
	if secs := int32(i.config.Commands.CopyTimeout.Seconds()); secs > 0 {
		in.TimeoutSeconds = aws.Int32(secs)
	}
	if _, err := i.commands.SendCommand(ctx, in); err != nil {
		return external(fmt.Sprintf("send copy command to %s", worker), err)
	}

	return i.park(ctx, t, worker)
}
