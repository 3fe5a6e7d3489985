package initiator

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/workflow"
)

// workerNameLen is how much of the task id goes into the worker's Name tag.
const workerNameLen = 10

// CreateInstance launches the worker in the target's availability zone.
// The token is parked under the new instance, which reports in once its
// agent comes online.
func (i *Initiator) CreateInstance(ctx context.Context, t *task.Task) error {
	state, err := stateFor(t)
	if err != nil {
		return err
	}

	desc, err := i.compute.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{state.TargetInstanceID},
	})
	if err != nil {
		return external("describe target instance", err)
	}
	zone := ""
	if len(desc.Reservations) > 0 && len(desc.Reservations[0].Instances) > 0 {
		if p := desc.Reservations[0].Instances[0].Placement; p != nil {
			zone = aws.ToString(p.AvailabilityZone)
		}
	}
	if zone == "" {
		return external("describe target instance",
			fmt.Errorf("no placement for %s", state.TargetInstanceID))
	}

	w := i.config.Worker
	out, err := i.compute.RunInstances(ctx, &ec2.RunInstancesInput{
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		InstanceType: ec2types.InstanceType(w.InstanceType),
		ImageId:      aws.String(w.ImageID),
		EbsOptimized: aws.Bool(true),
		KeyName:      aws.String(w.KeyName),
		Placement:    &ec2types.Placement{AvailabilityZone: aws.String(zone)},
		IamInstanceProfile: &ec2types.IamInstanceProfileSpecification{
			Name: aws.String(w.InstanceProfile),
		},
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags: []ec2types.Tag{{
				Key:   aws.String("Name"),
				Value: aws.String(w.NamePrefix + t.ShortID(workerNameLen)),
			}},
		}},
		ClientToken: aws.String(t.ID),
	})
	if err != nil {
		return external("run worker instance", err)
	}
	if len(out.Instances) == 0 || aws.ToString(out.Instances[0].InstanceId) == "" {
		return external("run worker instance", fmt.Errorf("no instance returned"))
	}

	return i.park(ctx, t, aws.ToString(out.Instances[0].InstanceId))
}

// CreateVolume creates the replacement volume, copying the placement,
// encryption and performance settings of the original. The token is
// parked under the new volume.
func (i *Initiator) CreateVolume(ctx context.Context, t *task.Task) error {
	state, err := stateFor(t)
	if err != nil {
		return err
	}
	size, err := state.SizeGiB()
	if err != nil {
		return err
	}

	desc, err := i.storage.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{
		VolumeIds: []string{state.VolumeID},
	})
	if err != nil {
		return external("describe source volume", err)
	}
	if len(desc.Volumes) == 0 {
		return external("describe source volume", fmt.Errorf("%s not found", state.VolumeID))
	}

	out, err := i.storage.CreateVolume(ctx, VolumeParams(desc.Volumes[0], size, t.ID))
	if err != nil {
		return external("create replacement volume", err)
	}
	volumeID := aws.ToString(out.VolumeId)
	if volumeID == "" {
		return external("create replacement volume", fmt.Errorf("no volume id returned"))
	}

	return i.park(ctx, t, volumeID)
}

// VolumeParams derives the replacement volume request from the source
// volume. Provisioned IOPS is copied for gp3, io1 and io2; throughput
// only for gp3.
func VolumeParams(src ec2types.Volume, sizeGiB int32, clientToken string) *ec2.CreateVolumeInput {
	in := &ec2.CreateVolumeInput{
		AvailabilityZone: src.AvailabilityZone,
		Encrypted:        src.Encrypted,
		VolumeType:       src.VolumeType,
		Size:             aws.Int32(sizeGiB),
	}
	if aws.ToBool(src.Encrypted) {
		in.KmsKeyId = src.KmsKeyId
	}
	switch src.VolumeType {
	case ec2types.VolumeTypeGp3, ec2types.VolumeTypeIo1, ec2types.VolumeTypeIo2:
		in.Iops = src.Iops
	}
	if src.VolumeType == ec2types.VolumeTypeGp3 {
		in.Throughput = src.Throughput
	}
	if clientToken != "" {
		in.ClientToken = aws.String(clientToken)
	}
	return in
}

// StopTarget stops the target instance. The token is parked under the
// target, which reports its stopped state.
func (i *Initiator) StopTarget(ctx context.Context, t *task.Task) error {
	state, err := stateFor(t)
	if err != nil {
		return err
	}

	if _, err := i.compute.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{state.TargetInstanceID},
	}); err != nil {
		return external("stop target instance", err)
	}

	return i.park(ctx, t, state.TargetInstanceID)
}

// stateFor decodes the task's state and checks it has what its stage
// reads.
func stateFor(t *task.Task) (workflow.State, error) {
	s, err := t.State()
	if err != nil {
		return workflow.State{}, fmt.Errorf("%w: %w", volshift.ErrInvalidState, err)
	}
	if err := s.Check(t.Stage); err != nil {
		return workflow.State{}, err
	}
	return s, nil
}
