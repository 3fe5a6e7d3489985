package resumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/event"
	"github.com/xraph/volshift/workflow"
)

// volumeFailed is the result an EBS notification reports when creation
// did not complete.
const volumeFailed = "failed"

// AgentActive redeems create-instance once the worker's agent reports in.
func (r *Resumer) AgentActive(ctx context.Context, e *event.Envelope) (Outcome, error) {
	var d event.CloudTrailDetail
	if err := e.DecodeDetail(&d); err != nil {
		return "", err
	}
	id := d.RequestParameters.InstanceID
	if id == "" {
		return "", fmt.Errorf("%w: agent event has no instanceId", volshift.ErrInvalidEvent)
	}
	return r.resume(ctx, e, id, workflow.StageCreateInstance, workflow.InstanceOutput{InstanceID: id})
}

// VolumeCreated redeems create-volume when the replacement volume is
// available, and fails it when creation failed.
func (r *Resumer) VolumeCreated(ctx context.Context, e *event.Envelope) (Outcome, error) {
	var d event.VolumeDetail
	if err := e.DecodeDetail(&d); err != nil {
		return "", err
	}
	id, err := e.VolumeID()
	if err != nil {
		return "", err
	}

	if d.Result != volumeFailed {
		return r.resume(ctx, e, id, workflow.StageCreateVolume, workflow.VolumeOutput{VolumeID: id})
	}

	rec, err := r.records.TakeRecord(ctx, id, workflow.StageCreateVolume)
	if errors.Is(err, volshift.ErrRecordNotFound) {
		r.miss(ctx, e, id, workflow.StageCreateVolume)
		return OutcomeMissed, nil
	}
	if err != nil {
		return "", fmt.Errorf("take %s/%s: %w", id, workflow.StageCreateVolume, err)
	}
	cause := fmt.Errorf("%w: volume %s creation failed: %s", volshift.ErrExternalCall, id, d.Cause)
	return r.fail(ctx, e, rec, workflow.ErrorExternalCall, cause)
}

// InstanceStopped redeems stop-target.
func (r *Resumer) InstanceStopped(ctx context.Context, e *event.Envelope) (Outcome, error) {
	var d event.InstanceStateDetail
	if err := e.DecodeDetail(&d); err != nil {
		return "", err
	}
	if d.InstanceID == "" {
		return "", fmt.Errorf("%w: state change event has no instance-id", volshift.ErrInvalidEvent)
	}
	return r.resume(ctx, e, d.InstanceID, workflow.StageStopTarget, workflow.InstanceOutput{InstanceID: d.InstanceID})
}
