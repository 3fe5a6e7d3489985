package workflow

import (
	"fmt"

	"github.com/xraph/volshift"
)

// Stage names one unit of workflow progress. It is also the range key of
// a correlation record.
type Stage string

const (
	StageResize           Stage = "resize"
	StageCreateInstance   Stage = "create-instance"
	StageCreateVolume     Stage = "create-volume"
	StageStopTarget       Stage = "stop-target"
	StageShuffleAndCopy   Stage = "shuffle-and-copy"
	StageAttachAndCleanup Stage = "attach-and-cleanup"
)

// Stages returns every stage in execution order. The three parallel
// branches are listed in branch order.
func Stages() []Stage {
	return []Stage{
		StageResize,
		StageCreateInstance,
		StageCreateVolume,
		StageStopTarget,
		StageShuffleAndCopy,
		StageAttachAndCleanup,
	}
}

// ParseStage converts s into a Stage.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", volshift.ErrUnknownStage, s)
	}
	return st, nil
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	switch s {
	case StageResize, StageCreateInstance, StageCreateVolume,
		StageStopTarget, StageShuffleAndCopy, StageAttachAndCleanup:
		return true
	}
	return false
}

// Parks reports whether the stage suspends on a correlation record.
// attach-and-cleanup completes inside its own invocation.
func (s Stage) Parks() bool {
	return s.Valid() && s != StageAttachAndCleanup
}

func (s Stage) String() string { return string(s) }
