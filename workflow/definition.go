package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/volshift"
)

// State names used in the rendered document.
const (
	stateResize   = "Resize Volume and Get Volume ID"
	stateParallel = "Create Worker, Replacement Volume, and Stop Target"
	stateInstance = "Create Worker Instance"
	stateVolume   = "Create Replacement Volume"
	stateStop     = "Stop Target Instance"
	stateShuffle  = "Shuffle Volumes and Copy Data"
	stateAttach   = "Attach Replacement and Cleanup"
	stateFailed   = "Attach Failed"
)

// Definition declares the migration graph to the orchestrator. Every stage
// is served by an activity; Activities maps each stage to its ARN.
type Definition struct {
	Comment    string
	Activities map[Stage]string

	// CleanupHeartbeat is the heartbeat timeout on the attach-and-cleanup
	// task. Parked stages carry no heartbeat because nobody heartbeats a
	// token while it sits in the correlation store.
	CleanupHeartbeat time.Duration
}

// Validate checks that every stage has an activity.
func (d Definition) Validate() error {
	for _, s := range Stages() {
		if d.Activities[s] == "" {
			return fmt.Errorf("%w: no activity for %s", volshift.ErrNoStageHandler, s)
		}
	}
	return nil
}

// Render returns the Amazon States Language document for the graph.
func (d Definition) Render() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	branch := func(name string, s Stage) map[string]any {
		return map[string]any{
			"StartAt": name,
			"States": map[string]any{
				name: map[string]any{
					"Type":     "Task",
					"Resource": d.Activities[s],
					"End":      true,
				},
			},
		}
	}

	attach := map[string]any{
		"Type":     "Task",
		"Resource": d.Activities[StageAttachAndCleanup],
		"Catch": []any{
			map[string]any{
				"ErrorEquals": []string{ErrorAttachExhausted},
				"ResultPath":  "$.error",
				"Next":        stateFailed,
			},
		},
		"End": true,
	}
	if d.CleanupHeartbeat > 0 {
		attach["HeartbeatSeconds"] = int(d.CleanupHeartbeat / time.Second)
	}

	doc := map[string]any{
		"StartAt": stateResize,
		"States": map[string]any{
			stateResize: map[string]any{
				"Type":     "Task",
				"Resource": d.Activities[StageResize],
				"Next":     stateParallel,
			},
			stateParallel: map[string]any{
				"Type": "Parallel",
				"Branches": []any{
					branch(stateInstance, StageCreateInstance),
					branch(stateVolume, StageCreateVolume),
					branch(stateStop, StageStopTarget),
				},
				"ResultSelector": map[string]string{
					"workerInstanceId.$":    "$[0].instanceId",
					"replacementVolumeId.$": "$[1].volumeId",
				},
				"ResultPath": "$.workerInstance",
				"Next":       stateShuffle,
			},
			stateShuffle: map[string]any{
				"Type":       "Task",
				"Resource":   d.Activities[StageShuffleAndCopy],
				"ResultPath": nil,
				"Next":       stateAttach,
			},
			stateAttach: attach,
			stateFailed: map[string]any{
				"Type":  "Fail",
				"Error": ErrorAttachExhausted,
				"Cause": "replacement volume could not be attached to the target instance",
			},
		},
	}
	if d.Comment != "" {
		doc["Comment"] = d.Comment
	}

	return json.MarshalIndent(doc, "", "  ")
}
