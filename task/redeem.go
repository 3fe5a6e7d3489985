package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/cloud"
	"github.com/xraph/volshift/workflow"
)

// Redeemer settles orchestrator tokens.
type Redeemer interface {
	// Succeed resumes the run with output marshalled as JSON.
	Succeed(ctx context.Context, token string, output any) error
	// Fail ends the task with an error code the state machine can match.
	Fail(ctx context.Context, token, code, cause string) error
	// Heartbeat keeps a long running task alive.
	Heartbeat(ctx context.Context, token string) error
}

// maxCause is the SendTaskFailure cause limit in characters.
const maxCause = 32768

// SFN redeems tokens through Step Functions. Errors for tokens the
// service no longer knows wrap volshift.ErrTokenRedeemed.
type SFN struct {
	api cloud.Tasks
}

var _ Redeemer = (*SFN)(nil)

// NewSFN returns a Step Functions redeemer.
func NewSFN(api cloud.Tasks) *SFN {
	return &SFN{api: api}
}

// Succeed sends SendTaskSuccess.
func (r *SFN) Succeed(ctx context.Context, token string, output any) error {
	body, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("volshift/task: marshal output: %w", err)
	}
	_, err = r.api.SendTaskSuccess(ctx, &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(token),
		Output:    aws.String(string(body)),
	})
	return classify("send task success", err)
}

// Fail sends SendTaskFailure.
func (r *SFN) Fail(ctx context.Context, token, code, cause string) error {
	_, err := r.api.SendTaskFailure(ctx, &sfn.SendTaskFailureInput{
		TaskToken: aws.String(token),
		Error:     aws.String(code),
		Cause:     aws.String(truncate(cause, maxCause)),
	})
	return classify("send task failure", err)
}

// Heartbeat sends SendTaskHeartbeat.
func (r *SFN) Heartbeat(ctx context.Context, token string) error {
	_, err := r.api.SendTaskHeartbeat(ctx, &sfn.SendTaskHeartbeatInput{
		TaskToken: aws.String(token),
	})
	return classify("send task heartbeat", err)
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if cloud.IsTokenGone(err) {
		return fmt.Errorf("volshift/task: %s: %w: %w", op, volshift.ErrTokenRedeemed, err)
	}
	return fmt.Errorf("volshift/task: %s: %w", op, err)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// ErrorCode maps a stage error to the code it fails its token with.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, volshift.ErrAttachExhausted):
		return workflow.ErrorAttachExhausted
	case errors.Is(err, volshift.ErrMissingOutput):
		return workflow.ErrorMissingOutput
	case errors.Is(err, volshift.ErrInvalidState), errors.Is(err, volshift.ErrInvalidEvent):
		return workflow.ErrorInvalidState
	case errors.Is(err, volshift.ErrExternalCall):
		return workflow.ErrorExternalCall
	}
	return workflow.ErrorInternal
}
