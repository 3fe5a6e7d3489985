// Package correlationtest is a conformance suite for correlation.Store
// implementations.
package correlationtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/workflow"
)

// Run executes the suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) correlation.Store) {
	t.Helper()

	t.Run("PutGetDelete", func(t *testing.T) { testPutGetDelete(t, newStore(t)) })
	t.Run("PutConflict", func(t *testing.T) { testPutConflict(t, newStore(t)) })
	t.Run("KeyedByStage", func(t *testing.T) { testKeyedByStage(t, newStore(t)) })
	t.Run("TakeOnce", func(t *testing.T) { testTakeOnce(t, newStore(t)) })
	t.Run("ConcurrentTake", func(t *testing.T) { testConcurrentTake(t, newStore(t)) })
	t.Run("DeleteMissing", func(t *testing.T) { testDeleteMissing(t, newStore(t)) })
	t.Run("PutAfterTake", func(t *testing.T) { testPutAfterTake(t, newStore(t)) })
}

func testPutGetDelete(t *testing.T, s correlation.Store) {
	ctx := context.Background()
	for _, stage := range workflow.Stages() {
		if !stage.Parks() {
			continue
		}
		rec := &correlation.Record{ResourceID: "i-0abc", Stage: stage, Token: "token-" + string(stage)}
		if err := s.PutRecord(ctx, rec); err != nil {
			t.Fatalf("PutRecord(%s): %v", stage, err)
		}

		got, err := s.GetRecord(ctx, rec.ResourceID, stage)
		if err != nil {
			t.Fatalf("GetRecord(%s): %v", stage, err)
		}
		if got.Token != rec.Token || got.Stage != stage || got.ResourceID != rec.ResourceID {
			t.Errorf("GetRecord(%s) = %+v, want %+v", stage, got, rec)
		}

		if err := s.DeleteRecord(ctx, rec.ResourceID, stage); err != nil {
			t.Fatalf("DeleteRecord(%s): %v", stage, err)
		}
		if _, err := s.GetRecord(ctx, rec.ResourceID, stage); !errors.Is(err, volshift.ErrRecordNotFound) {
			t.Errorf("GetRecord after delete: expected ErrRecordNotFound, got %v", err)
		}
	}
}

func testPutConflict(t *testing.T, s correlation.Store) {
	ctx := context.Background()
	rec := &correlation.Record{ResourceID: "vol-0abc", Stage: workflow.StageCreateVolume, Token: "first"}
	if err := s.PutRecord(ctx, rec); err != nil {
		t.Fatalf("PutRecord: %v", err)
	}

	err := s.PutRecord(ctx, &correlation.Record{ResourceID: "vol-0abc", Stage: workflow.StageCreateVolume, Token: "second"})
	if !errors.Is(err, volshift.ErrWriteConflict) {
		t.Fatalf("expected ErrWriteConflict, got %v", err)
	}

	got, err := s.GetRecord(ctx, "vol-0abc", workflow.StageCreateVolume)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Token != "first" {
		t.Errorf("conflicting put overwrote the token: %q", got.Token)
	}
}

func testKeyedByStage(t *testing.T, s correlation.Store) {
	ctx := context.Background()
	resize := &correlation.Record{ResourceID: "i-shared", Stage: workflow.StageResize, Token: "a"}
	shuffle := &correlation.Record{ResourceID: "i-shared", Stage: workflow.StageShuffleAndCopy, Token: "b"}
	for _, r := range []*correlation.Record{resize, shuffle} {
		if err := s.PutRecord(ctx, r); err != nil {
			t.Fatalf("PutRecord(%s): %v", r.Stage, err)
		}
	}

	got, err := s.TakeRecord(ctx, "i-shared", workflow.StageShuffleAndCopy)
	if err != nil {
		t.Fatalf("TakeRecord: %v", err)
	}
	if got.Token != "b" {
		t.Errorf("took %q, want %q", got.Token, "b")
	}
	if _, err := s.GetRecord(ctx, "i-shared", workflow.StageResize); err != nil {
		t.Errorf("resize record should survive, got %v", err)
	}
}

func testTakeOnce(t *testing.T, s correlation.Store) {
	ctx := context.Background()
	rec := &correlation.Record{ResourceID: "i-take", Stage: workflow.StageStopTarget, Token: "tok"}
	if err := s.PutRecord(ctx, rec); err != nil {
		t.Fatalf("PutRecord: %v", err)
	}

	got, err := s.TakeRecord(ctx, rec.ResourceID, rec.Stage)
	if err != nil {
		t.Fatalf("TakeRecord: %v", err)
	}
	if got.Token != "tok" {
		t.Errorf("Token = %q, want %q", got.Token, "tok")
	}

	if _, err := s.TakeRecord(ctx, rec.ResourceID, rec.Stage); !errors.Is(err, volshift.ErrRecordNotFound) {
		t.Errorf("second TakeRecord: expected ErrRecordNotFound, got %v", err)
	}
	if _, err := s.GetRecord(ctx, rec.ResourceID, rec.Stage); !errors.Is(err, volshift.ErrRecordNotFound) {
		t.Errorf("GetRecord after take: expected ErrRecordNotFound, got %v", err)
	}
}

func testConcurrentTake(t *testing.T, s correlation.Store) {
	ctx := context.Background()
	const keys = 8
	const racers = 8

	for k := range keys {
		rec := &correlation.Record{
			ResourceID: fmt.Sprintf("i-race-%d", k),
			Stage:      workflow.StageCreateInstance,
			Token:      fmt.Sprintf("tok-%d", k),
		}
		if err := s.PutRecord(ctx, rec); err != nil {
			t.Fatalf("PutRecord: %v", err)
		}
	}

	var wins atomic.Int64
	var wg sync.WaitGroup
	errs := make(chan error, keys*racers)
	for k := range keys {
		for range racers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.TakeRecord(ctx, fmt.Sprintf("i-race-%d", k), workflow.StageCreateInstance)
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, volshift.ErrRecordNotFound):
				default:
					errs <- err
				}
			}()
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("TakeRecord: %v", err)
	}
	if got := wins.Load(); got != keys {
		t.Errorf("expected %d successful takes, got %d", keys, got)
	}
}

func testDeleteMissing(t *testing.T, s correlation.Store) {
	if err := s.DeleteRecord(context.Background(), "i-none", workflow.StageResize); err != nil {
		t.Errorf("DeleteRecord on missing key: %v", err)
	}
}

func testPutAfterTake(t *testing.T, s correlation.Store) {
	ctx := context.Background()
	rec := &correlation.Record{ResourceID: "i-again", Stage: workflow.StageResize, Token: "one"}
	if err := s.PutRecord(ctx, rec); err != nil {
		t.Fatalf("PutRecord: %v", err)
	}
	if _, err := s.TakeRecord(ctx, rec.ResourceID, rec.Stage); err != nil {
		t.Fatalf("TakeRecord: %v", err)
	}
	rec.Token = "two"
	if err := s.PutRecord(ctx, rec); err != nil {
		t.Fatalf("PutRecord after take: %v", err)
	}
	got, err := s.GetRecord(ctx, rec.ResourceID, rec.Stage)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Token != "two" {
		t.Errorf("Token = %q, want %q", got.Token, "two")
	}
}
