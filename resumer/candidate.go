package resumer

import (
	"github.com/xraph/volshift/workflow"
)

// Invocation is the command run a status event refers to.
type Invocation struct {
	CommandID  string
	InstanceID string
	Output     string
}

// Candidate is one stage a command status event may belong to. Payload
// builds the redemption payload from the invocation; an error fails the
// stage instead.
type Candidate struct {
	Stage   workflow.Stage
	Payload func(inv Invocation) (any, error)
}

// DefaultCandidates returns the command stages in the order they are
// tried: resize, then shuffle-and-copy.
func DefaultCandidates() []Candidate {
	return []Candidate{
		{Stage: workflow.StageResize, Payload: resizePayload},
		{Stage: workflow.StageShuffleAndCopy, Payload: emptyPayload},
	}
}

func resizePayload(inv Invocation) (any, error) {
	res := ParseResizeOutput(inv.Output)
	if err := res.Err(); err != nil {
		return nil, err
	}
	return workflow.State{
		TargetInstanceID: inv.InstanceID,
		VolumeID:         res.Output.VolumeID,
		Size:             res.Output.Size,
	}, nil
}

func emptyPayload(Invocation) (any, error) {
	return workflow.Empty{}, nil
}
