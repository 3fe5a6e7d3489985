package dlq

import (
	"encoding/json"
	"time"

	"github.com/xraph/volshift/id"
	"github.com/xraph/volshift/workflow"
)

// Entry is one failed or stalled stage.
type Entry struct {
	ID         id.DLQID        `json:"id"`
	Stage      workflow.Stage  `json:"stage"`
	ResourceID string          `json:"resource_id,omitempty"`
	Code       string          `json:"code"`
	Error      string          `json:"error"`
	Input      json.RawMessage `json:"input,omitempty"`
	TokenHash  string          `json:"token_hash,omitempty"`
	FailedAt   time.Time       `json:"failed_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Resolved reports whether an operator has marked the entry handled.
func (e *Entry) Resolved() bool { return e.ResolvedAt != nil }
