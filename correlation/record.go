// Package correlation maps a (resource, stage) pair to the continuation
// token the orchestrator is blocked on.
//
// A stage puts a record once its external operation has been accepted;
// the resumer that later hears about the resource takes it. Take deletes
// and returns the record in one step, so a token can be redeemed at most
// once even when two resumers race on the same key.
package correlation

import "github.com/xraph/volshift/workflow"

// Record is one parked continuation token.
type Record struct {
	ResourceID string         `json:"resource_id"`
	Stage      workflow.Stage `json:"stage"`
	Token      string         `json:"token"`
}

// Key identifies a record.
type Key struct {
	ResourceID string
	Stage      workflow.Stage
}

// Key returns the record's primary key.
func (r *Record) Key() Key {
	return Key{ResourceID: r.ResourceID, Stage: r.Stage}
}

func (k Key) String() string {
	return k.ResourceID + "/" + string(k.Stage)
}
