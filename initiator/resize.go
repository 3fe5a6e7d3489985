package initiator

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/event"
	"github.com/xraph/volshift/task"
)

// Resize grows the guest partition and asks the guest which volume backs
// it. The task input is the alarm event that started the run. The token
// is parked under the alarmed instance.
func (i *Initiator) Resize(ctx context.Context, t *task.Task) error {
	var env event.Envelope
	if err := t.Decode(&env); err != nil {
		return fmt.Errorf("%w: %w", volshift.ErrInvalidState, err)
	}
	var alarm event.AlarmDetail
	if err := env.DecodeDetail(&alarm); err != nil {
		return err
	}
	instanceID, drive, err := alarm.Target()
	if err != nil {
		return err
	}

	_, err = i.commands.SendCommand(ctx, &ssm.SendCommandInput{
		DocumentName: aws.String(i.config.Commands.ResizeDocument),
		InstanceIds:  []string{instanceID},
		Parameters:   map[string][]string{"DriveLetter": {drive}},
		CloudWatchOutputConfig: &ssmtypes.CloudWatchOutputConfig{
			CloudWatchOutputEnabled: i.config.Commands.CloudWatchOutput,
		},
	})
	if err != nil {
		return external("send resize command", err)
	}

	return i.park(ctx, t, instanceID)
}
