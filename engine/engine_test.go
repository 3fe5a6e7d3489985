package engine_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/attach"
	"github.com/xraph/volshift/cloud"
	"github.com/xraph/volshift/cloud/cloudtest"
	"github.com/xraph/volshift/engine"
	"github.com/xraph/volshift/event"
	"github.com/xraph/volshift/resumer"
	"github.com/xraph/volshift/store/memory"
	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/workflow"
)

const volumeActivity = "arn:aws:states:us-east-1:123456789012:activity:create-volume"

type fixture struct {
	ec2   *cloudtest.EC2
	ssm   *cloudtest.SSM
	sfn   *cloudtest.SFN
	store *memory.Store
}

func newFixture() *fixture {
	return &fixture{
		ec2:   &cloudtest.EC2{},
		ssm:   &cloudtest.SSM{},
		sfn:   &cloudtest.SFN{},
		store: memory.New(),
	}
}

func (f *fixture) clients() *cloud.Clients {
	return &cloud.Clients{Compute: f.ec2, Storage: f.ec2, Commands: f.ssm, Tasks: f.sfn}
}

func (f *fixture) build(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	cfg := volshift.DefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond
	cfg.HeartbeatInterval = 0
	cfg.Concurrency = 1

	rt, err := volshift.New(
		volshift.WithStore(f.store),
		volshift.WithConfig(cfg),
		volshift.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)

	noWait := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	opts = append([]engine.Option{
		engine.WithAttachOptions(attach.WithSleep(noWait)),
		engine.WithMeterProvider(metric.NewMeterProvider()),
	}, opts...)
	eng, err := engine.Build(rt, f.clients(), opts...)
	require.NoError(t, err)
	return eng
}

func volumeEvent(t *testing.T, volumeID, result string) *event.Envelope {
	t.Helper()
	detail, err := json.Marshal(map[string]string{"event": "createVolume", "result": result})
	require.NoError(t, err)
	return &event.Envelope{
		ID:         "evt-vol",
		Source:     event.SourceEC2,
		DetailType: event.DetailVolumeNotification,
		Resources:  []string{"arn:aws:ec2:us-east-1:123456789012:volume/" + volumeID},
		Detail:     detail,
	}
}

func TestBuild_RequiresStore(t *testing.T) {
	rt, err := volshift.New()
	require.NoError(t, err)

	_, err = engine.Build(rt, newFixture().clients())
	assert.ErrorIs(t, err, volshift.ErrNoStore)
}

// A create-volume task is polled, parks its token under the new volume,
// and the volume notification resumes the run with the volume id.
func TestEngine_EndToEnd_CreateVolume(t *testing.T) {
	f := newFixture()

	var served atomic.Bool
	f.sfn.GetActivityTaskFn = func(ctx context.Context, in *sfn.GetActivityTaskInput) (*sfn.GetActivityTaskOutput, error) {
		if aws.ToString(in.ActivityArn) == volumeActivity && served.CompareAndSwap(false, true) {
			return &sfn.GetActivityTaskOutput{
				TaskToken: aws.String("tok-volume"),
				Input:     aws.String(`{"targetInstanceId":"i-0abc","volumeId":"vol-src","size":"200"}`),
			}, nil
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.ec2.DescribeVolumesFn = func(context.Context, *ec2.DescribeVolumesInput) (*ec2.DescribeVolumesOutput, error) {
		return &ec2.DescribeVolumesOutput{Volumes: []ec2types.Volume{{
			VolumeId:         aws.String("vol-src"),
			AvailabilityZone: aws.String("us-east-1a"),
			VolumeType:       ec2types.VolumeTypeGp3,
			Iops:             aws.Int32(3000),
			Throughput:       aws.Int32(125),
			Encrypted:        aws.Bool(false),
		}}}, nil
	}
	var createIn *ec2.CreateVolumeInput
	var mu sync.Mutex
	f.ec2.CreateVolumeFn = func(_ context.Context, in *ec2.CreateVolumeInput) (*ec2.CreateVolumeOutput, error) {
		mu.Lock()
		createIn = in
		mu.Unlock()
		return &ec2.CreateVolumeOutput{VolumeId: aws.String("vol-new")}, nil
	}
	var output atomic.Value
	f.sfn.SendTaskSuccessFn = func(_ context.Context, in *sfn.SendTaskSuccessInput) (*sfn.SendTaskSuccessOutput, error) {
		output.Store(aws.ToString(in.Output))
		return &sfn.SendTaskSuccessOutput{}, nil
	}

	eng := f.build(t, engine.WithActivities(map[workflow.Stage]string{
		workflow.StageCreateVolume: volumeActivity,
	}))
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))

	require.Eventually(t, func() bool {
		_, err := f.store.GetRecord(ctx, "vol-new", workflow.StageCreateVolume)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond, "token was not parked")

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, eng.Pool().Stop(stopCtx))

	mu.Lock()
	assert.Equal(t, int32(200), aws.ToInt32(createIn.Size))
	assert.Equal(t, task.DeriveID("tok-volume"), aws.ToString(createIn.ClientToken))
	mu.Unlock()

	outcome, err := eng.Handle(ctx, volumeEvent(t, "vol-new", "available"))
	require.NoError(t, err)
	assert.Equal(t, resumer.OutcomeRedeemed, outcome)
	assert.JSONEq(t, `{"volumeId":"vol-new"}`, output.Load().(string))

	// The record was consumed; a second delivery finds nothing.
	outcome, err = eng.Handle(ctx, volumeEvent(t, "vol-new", "available"))
	require.NoError(t, err)
	assert.Equal(t, resumer.OutcomeMissed, outcome)

	require.NoError(t, eng.Stop(stopCtx))
}

func TestEngine_FailedStageGoesToDLQ(t *testing.T) {
	f := newFixture()

	var served atomic.Bool
	f.sfn.GetActivityTaskFn = func(ctx context.Context, _ *sfn.GetActivityTaskInput) (*sfn.GetActivityTaskOutput, error) {
		if served.CompareAndSwap(false, true) {
			return &sfn.GetActivityTaskOutput{
				TaskToken: aws.String("tok-bad"),
				Input:     aws.String(`{"targetInstanceId":"i-0abc","volumeId":"vol-src","size":"not-a-number"}`),
			}, nil
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	var code atomic.Value
	f.sfn.SendTaskFailureFn = func(_ context.Context, in *sfn.SendTaskFailureInput) (*sfn.SendTaskFailureOutput, error) {
		code.Store(aws.ToString(in.Error))
		return &sfn.SendTaskFailureOutput{}, nil
	}

	eng := f.build(t, engine.WithActivities(map[workflow.Stage]string{
		workflow.StageCreateVolume: volumeActivity,
	}))
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))

	require.Eventually(t, func() bool {
		n, err := f.store.CountDLQ(ctx)
		return err == nil && n == 1
	}, 2*time.Second, 5*time.Millisecond, "failure was not recorded")

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, eng.Stop(stopCtx))

	assert.Equal(t, workflow.ErrorInvalidState, code.Load())
	assert.Equal(t, 0, f.ec2.Count("CreateVolume"))
}

func TestEngine_AlarmStartsRun(t *testing.T) {
	f := newFixture()
	f.sfn.StartExecutionFn = func(_ context.Context, in *sfn.StartExecutionInput) (*sfn.StartExecutionOutput, error) {
		assert.Equal(t, "arn:aws:states:us-east-1:123456789012:stateMachine:volshift", aws.ToString(in.StateMachineArn))
		return &sfn.StartExecutionOutput{ExecutionArn: aws.String("arn:exec")}, nil
	}
	eng := f.build(t, engine.WithStateMachine("arn:aws:states:us-east-1:123456789012:stateMachine:volshift"))

	env, err := event.Parse([]byte(`{
	  "id": "alarm-1",
	  "source": "aws.cloudwatch",
	  "detail-type": "CloudWatch Alarm State Change",
	  "detail": {
	    "alarmName": "EBS_Automation_i-0abc_D",
	    "state": {"value": "ALARM"},
	    "configuration": {"metrics": [{"metricStat": {"metric": {
	      "dimensions": {"instance": "D:", "InstanceId": "i-0abc"}
	    }}}]}
	  }
	}`))
	require.NoError(t, err)

	outcome, err := eng.Handle(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, resumer.OutcomeStarted, outcome)
	assert.Equal(t, 1, f.sfn.Count("StartExecution"))
}

func TestEngine_Definition(t *testing.T) {
	activities := make(map[workflow.Stage]string)
	for _, s := range workflow.Stages() {
		activities[s] = "arn:aws:states:us-east-1:123456789012:activity:" + string(s)
	}
	eng := newFixture().build(t, engine.WithActivities(activities))

	def := eng.Definition()
	require.NoError(t, def.Validate())
	doc, err := def.Render()
	require.NoError(t, err)
	assert.Contains(t, string(doc), workflow.ErrorAttachExhausted)
}

func TestEngine_DLQPurgeScheduled(t *testing.T) {
	eng := newFixture().build(t, engine.WithDLQRetention("@daily", 24*time.Hour))

	entries := eng.Scheduler().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, engine.DLQPurgeEntry, entries[0].Name)
	assert.Equal(t, "@daily", entries[0].Schedule)
}

func TestEngine_DLQPurgeDisabled(t *testing.T) {
	eng := newFixture().build(t, engine.WithDLQRetention("@hourly", 0))
	assert.Empty(t, eng.Scheduler().Entries())
}

func TestBuild_BadPurgeSchedule(t *testing.T) {
	f := newFixture()
	rt, err := volshift.New(volshift.WithStore(f.store))
	require.NoError(t, err)

	_, err = engine.Build(rt, f.clients(), engine.WithDLQRetention("whenever", time.Hour))
	assert.Error(t, err)
}
