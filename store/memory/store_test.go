package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/correlation/correlationtest"
	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/id"
	"github.com/xraph/volshift/store"
	"github.com/xraph/volshift/store/memory"
	"github.com/xraph/volshift/workflow"
)

var _ store.FullStore = (*memory.Store)(nil)

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := memory.New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

func TestCorrelationConformance(t *testing.T) {
	correlationtest.Run(t, func(_ *testing.T) correlation.Store { return memory.New() })
}

func TestRecordsSnapshot(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	_ = s.PutRecord(ctx, &correlation.Record{ResourceID: "b", Stage: workflow.StageResize, Token: "2"})
	_ = s.PutRecord(ctx, &correlation.Record{ResourceID: "a", Stage: workflow.StageResize, Token: "1"})

	got := s.Records()
	if len(got) != 2 || got[0].ResourceID != "a" || got[1].ResourceID != "b" {
		t.Errorf("unexpected snapshot: %+v", got)
	}
}

func newEntry(stage workflow.Stage, failedAt time.Time) *dlq.Entry {
	return &dlq.Entry{
		ID:        id.NewDLQID(),
		Stage:     stage,
		Code:      workflow.ErrorExternalCall,
		Error:     "boom",
		FailedAt:  failedAt,
		CreatedAt: failedAt,
	}
}

func TestDLQ(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	old := newEntry(workflow.StageCreateVolume, base)
	mid := newEntry(workflow.StageResize, base.Add(time.Minute))
	recent := newEntry(workflow.StageCreateVolume, base.Add(2*time.Minute))
	for _, e := range []*dlq.Entry{old, mid, recent} {
		if err := s.PushDLQ(ctx, e); err != nil {
			t.Fatalf("PushDLQ: %v", err)
		}
	}

	all, err := s.ListDLQ(ctx, dlq.ListOpts{})
	if err != nil {
		t.Fatalf("ListDLQ: %v", err)
	}
	if len(all) != 3 || all[0].ID != recent.ID || all[2].ID != old.ID {
		t.Fatalf("expected newest first, got %v", all)
	}

	vols, _ := s.ListDLQ(ctx, dlq.ListOpts{Stage: workflow.StageCreateVolume, Limit: 1})
	if len(vols) != 1 || vols[0].ID != recent.ID {
		t.Errorf("stage filter + limit: %v", vols)
	}

	if err := s.ResolveDLQ(ctx, mid.ID); err != nil {
		t.Fatalf("ResolveDLQ: %v", err)
	}
	open, _ := s.ListDLQ(ctx, dlq.ListOpts{Unresolved: true})
	if len(open) != 2 {
		t.Errorf("expected 2 unresolved, got %d", len(open))
	}

	got, err := s.GetDLQ(ctx, mid.ID)
	if err != nil {
		t.Fatalf("GetDLQ: %v", err)
	}
	if !got.Resolved() {
		t.Error("expected entry to be resolved")
	}

	if _, err := s.GetDLQ(ctx, id.NewDLQID()); !errors.Is(err, volshift.ErrDLQNotFound) {
		t.Errorf("expected ErrDLQNotFound, got %v", err)
	}
	if err := s.ResolveDLQ(ctx, id.NewDLQID()); !errors.Is(err, volshift.ErrDLQNotFound) {
		t.Errorf("expected ErrDLQNotFound, got %v", err)
	}

	n, err := s.PurgeDLQ(ctx, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("PurgeDLQ: %v", err)
	}
	if n != 2 {
		t.Errorf("purged %d, want 2", n)
	}
	if c, _ := s.CountDLQ(ctx); c != 1 {
		t.Errorf("CountDLQ = %d, want 1", c)
	}
}
