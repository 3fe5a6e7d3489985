package correlation

import (
	"context"

	"github.com/xraph/volshift/workflow"
)

// Store defines the persistence contract for correlation records. Every
// operation touches a single key; implementations must make each one
// atomic for that key.
type Store interface {
	// PutRecord stores a record. It fails with volshift.ErrWriteConflict
	// when a live record already exists for the key.
	PutRecord(ctx context.Context, r *Record) error

	// GetRecord returns the live record for the key or
	// volshift.ErrRecordNotFound.
	GetRecord(ctx context.Context, resourceID string, stage workflow.Stage) (*Record, error)

	// DeleteRecord removes the record. Deleting a missing key is not an
	// error.
	DeleteRecord(ctx context.Context, resourceID string, stage workflow.Stage) error

	// TakeRecord deletes the live record and returns it. When no record
	// exists it returns volshift.ErrRecordNotFound. Of any number of
	// concurrent takes for one key, at most one succeeds.
	TakeRecord(ctx context.Context, resourceID string, stage workflow.Stage) (*Record, error)
}
