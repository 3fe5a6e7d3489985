// Package task models one orchestrator task: the continuation token the
// state machine is suspended on, the stage it belongs to and the state
// document it was handed. A Redeemer settles a token exactly once.
package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/volshift/workflow"
)

// tokenSpace namespaces the name-based UUIDs derived from task tokens.
var tokenSpace = uuid.MustParse("6f1c8a52-8f7e-4c64-9a53-0d1b8f1f6c20")

// Task is one unit of work handed out by the orchestrator.
type Task struct {
	// ID is derived from Token, so a redelivered task keeps its ID.
	ID         string
	Token      string
	Stage      workflow.Stage
	Input      json.RawMessage
	ReceivedAt time.Time
}

// New builds a task, deriving its ID from the token.
func New(stage workflow.Stage, token string, input json.RawMessage) *Task {
	return &Task{
		ID:         DeriveID(token),
		Token:      token,
		Stage:      stage,
		Input:      input,
		ReceivedAt: time.Now().UTC(),
	}
}

// DeriveID returns a stable UUID (version 5) for a token. It doubles as
// the idempotency ClientToken for create calls.
func DeriveID(token string) string {
	return uuid.NewSHA1(tokenSpace, []byte(token)).String()
}

// State decodes the task input as the workflow state document.
func (t *Task) State() (workflow.State, error) {
	var s workflow.State
	if err := t.Decode(&s); err != nil {
		return workflow.State{}, err
	}
	return s, nil
}

// Decode unmarshals the task input into v.
func (t *Task) Decode(v any) error {
	if len(t.Input) == 0 {
		return fmt.Errorf("task %s: empty input", t.ID)
	}
	if err := json.Unmarshal(t.Input, v); err != nil {
		return fmt.Errorf("task %s: decode input: %w", t.ID, err)
	}
	return nil
}

// ShortID returns the first n characters of the ID.
func (t *Task) ShortID(n int) string {
	if n >= len(t.ID) {
		return t.ID
	}
	return t.ID[:n]
}
