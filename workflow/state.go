package workflow

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xraph/volshift"
)

// State is the document the orchestrator threads between stages.
type State struct {
	TargetInstanceID string          `json:"targetInstanceId,omitempty"`
	VolumeID         string          `json:"volumeId,omitempty"`
	Size             string          `json:"size,omitempty"`
	WorkerInstance   *WorkerInstance `json:"workerInstance,omitempty"`
}

// WorkerInstance is produced by the parallel join.
type WorkerInstance struct {
	WorkerInstanceID    string `json:"workerInstanceId"`
	ReplacementVolumeID string `json:"replacementVolumeId"`
}

// InstanceOutput is redeemed by create-instance and stop-target.
type InstanceOutput struct {
	InstanceID string `json:"instanceId"`
}

// VolumeOutput is redeemed by create-volume.
type VolumeOutput struct {
	VolumeID string `json:"volumeId"`
}

// Empty is redeemed by shuffle-and-copy and attach-and-cleanup.
type Empty struct{}

// WithWorker returns a copy of s carrying w.
func (s State) WithWorker(w WorkerInstance) State {
	s.WorkerInstance = &w
	return s
}

// Check verifies that s carries every field the given stage reads.
func (s State) Check(stage Stage) error {
	var missing []string
	need := func(name, v string) {
		if v == "" {
			missing = append(missing, name)
		}
	}

	switch stage {
	case StageCreateInstance, StageStopTarget:
		need("targetInstanceId", s.TargetInstanceID)
	case StageCreateVolume:
		need("volumeId", s.VolumeID)
		need("size", s.Size)
	case StageShuffleAndCopy, StageAttachAndCleanup:
		need("targetInstanceId", s.TargetInstanceID)
		need("volumeId", s.VolumeID)
		if s.WorkerInstance == nil {
			missing = append(missing, "workerInstance")
		} else {
			need("workerInstance.workerInstanceId", s.WorkerInstance.WorkerInstanceID)
			need("workerInstance.replacementVolumeId", s.WorkerInstance.ReplacementVolumeID)
		}
	case StageResize:
		// resize reads the alarm event, not State.
	default:
		return fmt.Errorf("%w: %q", volshift.ErrUnknownStage, stage)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s needs %s", volshift.ErrInvalidState, stage, strings.Join(missing, ", "))
	}
	return nil
}

// maxVolumeGiB is the largest size a block-storage volume accepts.
const maxVolumeGiB = 65536

// SizeGiB interprets Size as the replacement volume size in GiB. The
// resize command reports either GiB or bytes depending on the guest
// tooling; values above the largest possible volume are read as bytes and
// rounded up to whole GiB.
func (s State) SizeGiB() (int32, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s.Size), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: size %q is not a positive integer", volshift.ErrInvalidState, s.Size)
	}
	if n > maxVolumeGiB {
		const gib = 1 << 30
		n = (n + gib - 1) / gib
	}
	if n > maxVolumeGiB || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: size %q exceeds the volume limit", volshift.ErrInvalidState, s.Size)
	}
	return int32(n), nil
}
