package dlq

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/xraph/volshift/id"
	"github.com/xraph/volshift/workflow"
)

// Failure describes what went wrong in a stage.
type Failure struct {
	Stage      workflow.Stage
	ResourceID string
	Code       string
	Err        error
	Input      json.RawMessage
	Token      string
}

// Service provides high-level DLQ operations over a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a DLQ service.
func NewService(store Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Push builds an Entry from f and persists it. The token itself is never
// stored; a short hash lets an operator match the entry against
// orchestrator history.
func (s *Service) Push(ctx context.Context, f Failure) (*Entry, error) {
	now := s.now()
	entry := &Entry{
		ID:         id.NewDLQID(),
		Stage:      f.Stage,
		ResourceID: f.ResourceID,
		Code:       f.Code,
		Input:      f.Input,
		TokenHash:  TokenHash(f.Token),
		FailedAt:   now,
		CreatedAt:  now,
	}
	if f.Err != nil {
		entry.Error = f.Err.Error()
	}
	if err := s.store.PushDLQ(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Resolve marks an entry handled.
func (s *Service) Resolve(ctx context.Context, entryID id.DLQID) (*Entry, error) {
	if err := s.store.ResolveDLQ(ctx, entryID); err != nil {
		return nil, err
	}
	return s.store.GetDLQ(ctx, entryID)
}

// Purge removes entries that failed more than retention ago.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	return s.store.PurgeDLQ(ctx, s.now().Add(-retention))
}

// DLQStore returns the underlying store for list, get, purge and count.
func (s *Service) DLQStore() Store {
	return s.store
}

// TokenHash returns the first 16 hex digits of the token's SHA-256.
func TokenHash(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
