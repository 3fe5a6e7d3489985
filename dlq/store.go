package dlq

import (
	"context"
	"time"

	"github.com/xraph/volshift/id"
	"github.com/xraph/volshift/workflow"
)

// ListOpts controls pagination and filtering for DLQ list queries.
type ListOpts struct {
	// Limit is the maximum number of entries to return. Zero means no limit.
	Limit int
	// Offset is the number of entries to skip.
	Offset int
	// Stage filters by stage. Empty means all stages.
	Stage workflow.Stage
	// Unresolved hides entries that have been resolved.
	Unresolved bool
}

// Store defines the persistence contract for the dead letter queue.
type Store interface {
	// PushDLQ adds an entry.
	PushDLQ(ctx context.Context, entry *Entry) error

	// ListDLQ returns entries matching opts, newest first.
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// GetDLQ retrieves an entry by ID.
	GetDLQ(ctx context.Context, entryID id.DLQID) (*Entry, error)

	// ResolveDLQ marks an entry handled.
	ResolveDLQ(ctx context.Context, entryID id.DLQID) error

	// PurgeDLQ removes entries with FailedAt before the given time and
	// returns how many were removed.
	PurgeDLQ(ctx context.Context, before time.Time) (int64, error)

	// CountDLQ returns the number of entries.
	CountDLQ(ctx context.Context) (int64, error)
}
