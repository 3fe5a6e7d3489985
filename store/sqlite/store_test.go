package sqlite_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/correlation/correlationtest"
	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/id"
	"github.com/xraph/volshift/store"
	"github.com/xraph/volshift/store/sqlite"
	"github.com/xraph/volshift/workflow"
)

var _ store.FullStore = (*sqlite.Store)(nil)

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()
	s, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "volshift.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestCorrelationConformance(t *testing.T) {
	correlationtest.Run(t, func(t *testing.T) correlation.Store { return openTestStore(t) })
}

func TestMigrateIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := sqlite.Open(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestDLQRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	failedAt := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	e := &dlq.Entry{
		ID:         id.NewDLQID(),
		Stage:      workflow.StageResize,
		ResourceID: "i-0abc",
		Code:       workflow.ErrorMissingOutput,
		Error:      "size not found",
		Input:      json.RawMessage(`{"detail":{}}`),
		TokenHash:  "0123456789abcdef",
		FailedAt:   failedAt,
		CreatedAt:  failedAt,
	}
	if err := s.PushDLQ(ctx, e); err != nil {
		t.Fatalf("PushDLQ: %v", err)
	}

	got, err := s.GetDLQ(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetDLQ: %v", err)
	}
	if got.ID != e.ID || got.Stage != e.Stage || got.Code != e.Code || string(got.Input) != string(e.Input) {
		t.Errorf("GetDLQ = %+v, want %+v", got, e)
	}
	if !got.FailedAt.Equal(failedAt) {
		t.Errorf("FailedAt = %v, want %v", got.FailedAt, failedAt)
	}
	if got.Resolved() {
		t.Error("new entry should not be resolved")
	}

	if err := s.ResolveDLQ(ctx, e.ID); err != nil {
		t.Fatalf("ResolveDLQ: %v", err)
	}
	open, err := s.ListDLQ(ctx, dlq.ListOpts{Unresolved: true})
	if err != nil {
		t.Fatalf("ListDLQ: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("expected no unresolved entries, got %d", len(open))
	}

	if _, err := s.GetDLQ(ctx, id.NewDLQID()); !errors.Is(err, volshift.ErrDLQNotFound) {
		t.Errorf("expected ErrDLQNotFound, got %v", err)
	}
	if err := s.ResolveDLQ(ctx, id.NewDLQID()); !errors.Is(err, volshift.ErrDLQNotFound) {
		t.Errorf("expected ErrDLQNotFound, got %v", err)
	}

	n, err := s.PurgeDLQ(ctx, failedAt.Add(time.Second))
	if err != nil {
		t.Fatalf("PurgeDLQ: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	if c, _ := s.CountDLQ(ctx); c != 0 {
		t.Errorf("CountDLQ = %d, want 0", c)
	}
}

func TestDLQListOrderAndPaging(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []id.DLQID
	for i := range 4 {
		e := &dlq.Entry{
			ID:        id.NewDLQID(),
			Stage:     workflow.StageCreateInstance,
			Code:      workflow.ErrorExternalCall,
			FailedAt:  base.Add(time.Duration(i) * time.Minute),
			CreatedAt: base,
		}
		if err := s.PushDLQ(ctx, e); err != nil {
			t.Fatalf("PushDLQ: %v", err)
		}
		ids = append(ids, e.ID)
	}

	page, err := s.ListDLQ(ctx, dlq.ListOpts{Offset: 1, Limit: 2})
	if err != nil {
		t.Fatalf("ListDLQ: %v", err)
	}
	if len(page) != 2 || page[0].ID != ids[2] || page[1].ID != ids[1] {
		t.Errorf("unexpected page: %v", page)
	}

	tail, err := s.ListDLQ(ctx, dlq.ListOpts{Offset: 3})
	if err != nil {
		t.Fatalf("ListDLQ offset only: %v", err)
	}
	if len(tail) != 1 || tail[0].ID != ids[0] {
		t.Errorf("unexpected tail: %v", tail)
	}
}
