package task_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/smithy-go"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/cloud/cloudtest"
	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/workflow"
)

func TestDeriveIDStable(t *testing.T) {
	a := task.DeriveID("token-1")
	b := task.DeriveID("token-1")
	c := task.DeriveID("token-2")
	if a != b {
		t.Errorf("same token gave %q and %q", a, b)
	}
	if a == c {
		t.Error("different tokens gave the same id")
	}
	if len(a) != 36 {
		t.Errorf("id %q is not a UUID string", a)
	}
}

func TestTaskState(t *testing.T) {
	tk := task.New(workflow.StageCreateVolume, "tok", []byte(`{"volumeId":"vol-1","size":"200","targetInstanceId":"i-1"}`))
	s, err := tk.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if s.VolumeID != "vol-1" || s.Size != "200" || s.TargetInstanceID != "i-1" {
		t.Errorf("State = %+v", s)
	}
	if got := tk.ShortID(10); len(got) != 10 || !strings.HasPrefix(tk.ID, got) {
		t.Errorf("ShortID = %q", got)
	}

	empty := task.New(workflow.StageResize, "tok", nil)
	if _, err := empty.State(); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestSFNSucceed(t *testing.T) {
	fake := &cloudtest.SFN{}
	var got *sfn.SendTaskSuccessInput
	fake.SendTaskSuccessFn = func(_ context.Context, in *sfn.SendTaskSuccessInput) (*sfn.SendTaskSuccessOutput, error) {
		got = in
		return &sfn.SendTaskSuccessOutput{}, nil
	}

	r := task.NewSFN(fake)
	if err := r.Succeed(context.Background(), "tok", workflow.VolumeOutput{VolumeID: "vol-9"}); err != nil {
		t.Fatalf("Succeed: %v", err)
	}
	if aws.ToString(got.TaskToken) != "tok" || aws.ToString(got.Output) != `{"volumeId":"vol-9"}` {
		t.Errorf("SendTaskSuccess input = %+v", got)
	}
}

func TestSFNTokenGone(t *testing.T) {
	fake := &cloudtest.SFN{
		SendTaskSuccessFn: func(context.Context, *sfn.SendTaskSuccessInput) (*sfn.SendTaskSuccessOutput, error) {
			return nil, fmt.Errorf("op: %w", &smithy.GenericAPIError{Code: "TaskTimedOut"})
		},
		SendTaskHeartbeatFn: func(context.Context, *sfn.SendTaskHeartbeatInput) (*sfn.SendTaskHeartbeatOutput, error) {
			return nil, errors.New("connection reset")
		},
	}
	r := task.NewSFN(fake)

	err := r.Succeed(context.Background(), "tok", workflow.Empty{})
	if !errors.Is(err, volshift.ErrTokenRedeemed) {
		t.Errorf("expected ErrTokenRedeemed, got %v", err)
	}
	err = r.Heartbeat(context.Background(), "tok")
	if err == nil || errors.Is(err, volshift.ErrTokenRedeemed) {
		t.Errorf("transient error misclassified: %v", err)
	}
}

func TestSFNFailTruncatesCause(t *testing.T) {
	fake := &cloudtest.SFN{}
	var got *sfn.SendTaskFailureInput
	fake.SendTaskFailureFn = func(_ context.Context, in *sfn.SendTaskFailureInput) (*sfn.SendTaskFailureOutput, error) {
		got = in
		return &sfn.SendTaskFailureOutput{}, nil
	}
	cause := strings.Repeat("x", 40000)
	if err := task.NewSFN(fake).Fail(context.Background(), "tok", workflow.ErrorExternalCall, cause); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if aws.ToString(got.Error) != workflow.ErrorExternalCall {
		t.Errorf("Error = %q", aws.ToString(got.Error))
	}
	if n := len(aws.ToString(got.Cause)); n != 32768 {
		t.Errorf("cause length = %d, want 32768", n)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", volshift.ErrAttachExhausted), workflow.ErrorAttachExhausted},
		{fmt.Errorf("x: %w", volshift.ErrMissingOutput), workflow.ErrorMissingOutput},
		{fmt.Errorf("x: %w", volshift.ErrInvalidState), workflow.ErrorInvalidState},
		{fmt.Errorf("x: %w", volshift.ErrInvalidEvent), workflow.ErrorInvalidState},
		{fmt.Errorf("x: %w", volshift.ErrExternalCall), workflow.ErrorExternalCall},
		{errors.New("other"), workflow.ErrorInternal},
	}
	for _, tt := range tests {
		if got := task.ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
