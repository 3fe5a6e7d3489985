// Package cloudtest provides function-adapter fakes for the cloud
// capability interfaces. A nil function field returns an empty output and
// no error; every call is recorded by operation name.
package cloudtest

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/xraph/volshift/cloud"
)

var (
	_ cloud.Compute  = (*EC2)(nil)
	_ cloud.Storage  = (*EC2)(nil)
	_ cloud.Commands = (*SSM)(nil)
	_ cloud.Tasks    = (*SFN)(nil)
)

// Calls is an ordered log of operation names.
type Calls struct {
	mu    sync.Mutex
	names []string
}

func (c *Calls) add(name string) {
	c.mu.Lock()
	c.names = append(c.names, name)
	c.mu.Unlock()
}

// Names returns a copy of the recorded operation names.
func (c *Calls) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.names...)
}

// Count returns how many times name was called.
func (c *Calls) Count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.names {
		if v == name {
			n++
		}
	}
	return n
}

// EC2 fakes both Compute and Storage.
type EC2 struct {
	Calls

	DescribeInstancesFn  func(context.Context, *ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error)
	RunInstancesFn       func(context.Context, *ec2.RunInstancesInput) (*ec2.RunInstancesOutput, error)
	StartInstancesFn     func(context.Context, *ec2.StartInstancesInput) (*ec2.StartInstancesOutput, error)
	StopInstancesFn      func(context.Context, *ec2.StopInstancesInput) (*ec2.StopInstancesOutput, error)
	TerminateInstancesFn func(context.Context, *ec2.TerminateInstancesInput) (*ec2.TerminateInstancesOutput, error)
	DescribeVolumesFn    func(context.Context, *ec2.DescribeVolumesInput) (*ec2.DescribeVolumesOutput, error)
	CreateVolumeFn       func(context.Context, *ec2.CreateVolumeInput) (*ec2.CreateVolumeOutput, error)
	AttachVolumeFn       func(context.Context, *ec2.AttachVolumeInput) (*ec2.AttachVolumeOutput, error)
	DetachVolumeFn       func(context.Context, *ec2.DetachVolumeInput) (*ec2.DetachVolumeOutput, error)
}

func call[In, Out any](c *Calls, name string, fn func(context.Context, In) (*Out, error), ctx context.Context, in In) (*Out, error) {
	c.add(name)
	if fn == nil {
		return new(Out), nil
	}
	return fn(ctx, in)
}

func (f *EC2) DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return call(&f.Calls, "DescribeInstances", f.DescribeInstancesFn, ctx, in)
}

func (f *EC2) RunInstances(ctx context.Context, in *ec2.RunInstancesInput, _ ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	return call(&f.Calls, "RunInstances", f.RunInstancesFn, ctx, in)
}

func (f *EC2) StartInstances(ctx context.Context, in *ec2.StartInstancesInput, _ ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error) {
	return call(&f.Calls, "StartInstances", f.StartInstancesFn, ctx, in)
}

func (f *EC2) StopInstances(ctx context.Context, in *ec2.StopInstancesInput, _ ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
	return call(&f.Calls, "StopInstances", f.StopInstancesFn, ctx, in)
}

func (f *EC2) TerminateInstances(ctx context.Context, in *ec2.TerminateInstancesInput, _ ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	return call(&f.Calls, "TerminateInstances", f.TerminateInstancesFn, ctx, in)
}

func (f *EC2) DescribeVolumes(ctx context.Context, in *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
	return call(&f.Calls, "DescribeVolumes", f.DescribeVolumesFn, ctx, in)
}

func (f *EC2) CreateVolume(ctx context.Context, in *ec2.CreateVolumeInput, _ ...func(*ec2.Options)) (*ec2.CreateVolumeOutput, error) {
	return call(&f.Calls, "CreateVolume", f.CreateVolumeFn, ctx, in)
}

func (f *EC2) AttachVolume(ctx context.Context, in *ec2.AttachVolumeInput, _ ...func(*ec2.Options)) (*ec2.AttachVolumeOutput, error) {
	return call(&f.Calls, "AttachVolume", f.AttachVolumeFn, ctx, in)
}

func (f *EC2) DetachVolume(ctx context.Context, in *ec2.DetachVolumeInput, _ ...func(*ec2.Options)) (*ec2.DetachVolumeOutput, error) {
	return call(&f.Calls, "DetachVolume", f.DetachVolumeFn, ctx, in)
}

// SSM fakes Commands.
type SSM struct {
	Calls

	SendCommandFn            func(context.Context, *ssm.SendCommandInput) (*ssm.SendCommandOutput, error)
	ListCommandInvocationsFn func(context.Context, *ssm.ListCommandInvocationsInput) (*ssm.ListCommandInvocationsOutput, error)
}

func (f *SSM) SendCommand(ctx context.Context, in *ssm.SendCommandInput, _ ...func(*ssm.Options)) (*ssm.SendCommandOutput, error) {
	return call(&f.Calls, "SendCommand", f.SendCommandFn, ctx, in)
}

func (f *SSM) ListCommandInvocations(ctx context.Context, in *ssm.ListCommandInvocationsInput, _ ...func(*ssm.Options)) (*ssm.ListCommandInvocationsOutput, error) {
	return call(&f.Calls, "ListCommandInvocations", f.ListCommandInvocationsFn, ctx, in)
}

// SFN fakes Tasks.
type SFN struct {
	Calls

	GetActivityTaskFn   func(context.Context, *sfn.GetActivityTaskInput) (*sfn.GetActivityTaskOutput, error)
	SendTaskSuccessFn   func(context.Context, *sfn.SendTaskSuccessInput) (*sfn.SendTaskSuccessOutput, error)
	SendTaskFailureFn   func(context.Context, *sfn.SendTaskFailureInput) (*sfn.SendTaskFailureOutput, error)
	SendTaskHeartbeatFn func(context.Context, *sfn.SendTaskHeartbeatInput) (*sfn.SendTaskHeartbeatOutput, error)
	StartExecutionFn    func(context.Context, *sfn.StartExecutionInput) (*sfn.StartExecutionOutput, error)
}

func (f *SFN) GetActivityTask(ctx context.Context, in *sfn.GetActivityTaskInput, _ ...func(*sfn.Options)) (*sfn.GetActivityTaskOutput, error) {
	return call(&f.Calls, "GetActivityTask", f.GetActivityTaskFn, ctx, in)
}

func (f *SFN) SendTaskSuccess(ctx context.Context, in *sfn.SendTaskSuccessInput, _ ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error) {
	return call(&f.Calls, "SendTaskSuccess", f.SendTaskSuccessFn, ctx, in)
}

func (f *SFN) SendTaskFailure(ctx context.Context, in *sfn.SendTaskFailureInput, _ ...func(*sfn.Options)) (*sfn.SendTaskFailureOutput, error) {
	return call(&f.Calls, "SendTaskFailure", f.SendTaskFailureFn, ctx, in)
}

func (f *SFN) SendTaskHeartbeat(ctx context.Context, in *sfn.SendTaskHeartbeatInput, _ ...func(*sfn.Options)) (*sfn.SendTaskHeartbeatOutput, error) {
	return call(&f.Calls, "SendTaskHeartbeat", f.SendTaskHeartbeatFn, ctx, in)
}

func (f *SFN) StartExecution(ctx context.Context, in *sfn.StartExecutionInput, _ ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error) {
	return call(&f.Calls, "StartExecution", f.StartExecutionFn, ctx, in)
}
