package ext_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/event"
	"github.com/xraph/volshift/ext"
	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/workflow"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnTaskStarted(_ context.Context, _ *task.Task) error {
	e.calls = append(e.calls, "OnTaskStarted")
	return nil
}

func (e *allHooksExt) OnTaskCompleted(_ context.Context, _ *task.Task, _ time.Duration) error {
	e.calls = append(e.calls, "OnTaskCompleted")
	return nil
}

func (e *allHooksExt) OnTaskFailed(_ context.Context, _ *task.Task, _ error) error {
	e.calls = append(e.calls, "OnTaskFailed")
	return nil
}

func (e *allHooksExt) OnStageInitiated(_ context.Context, _ *task.Task, _ string) error {
	e.calls = append(e.calls, "OnStageInitiated")
	return nil
}

func (e *allHooksExt) OnAttachRetrying(_ context.Context, _ *task.Task, _ int, _ error) error {
	e.calls = append(e.calls, "OnAttachRetrying")
	return nil
}

func (e *allHooksExt) OnTokenRedeemed(_ context.Context, _ workflow.Stage, _ string) error {
	e.calls = append(e.calls, "OnTokenRedeemed")
	return nil
}

func (e *allHooksExt) OnCorrelationMiss(_ context.Context, _ event.Kind, _ string) error {
	e.calls = append(e.calls, "OnCorrelationMiss")
	return nil
}

func (e *allHooksExt) OnExecutionStarted(_ context.Context, _, _ string) error {
	e.calls = append(e.calls, "OnExecutionStarted")
	return nil
}

func (e *allHooksExt) OnDLQ(_ context.Context, _ *dlq.Entry) error {
	e.calls = append(e.calls, "OnDLQ")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// missOnlyExt only listens for correlation misses.
type missOnlyExt struct {
	kinds []event.Kind
}

func (e *missOnlyExt) Name() string { return "miss-only" }

func (e *missOnlyExt) OnCorrelationMiss(_ context.Context, k event.Kind, _ string) error {
	e.kinds = append(e.kinds, k)
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnCorrelationMiss(_ context.Context, _ event.Kind, _ string) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown boom")
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(quiet())
	r.Register(&allHooksExt{})

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(quiet())
	all := &allHooksExt{}
	miss := &missOnlyExt{}
	r.Register(all)
	r.Register(miss)

	ctx := context.Background()
	r.EmitCorrelationMiss(ctx, event.KindVolumeNotification, "vol-1")
	if len(all.calls) != 1 || len(miss.kinds) != 1 {
		t.Fatalf("all=%v miss=%v", all.calls, miss.kinds)
	}
	if miss.kinds[0] != event.KindVolumeNotification {
		t.Errorf("kind = %q", miss.kinds[0])
	}

	r.EmitShutdown(ctx)
	if len(all.calls) != 2 || len(miss.kinds) != 1 {
		t.Fatalf("all=%v miss=%v", all.calls, miss.kinds)
	}
}

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(quiet())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	tk := task.New(workflow.StageResize, "token", nil)

	r.EmitTaskStarted(ctx, tk)
	r.EmitStageInitiated(ctx, tk, "i-1")
	r.EmitAttachRetrying(ctx, tk, 1, errors.New("busy"))
	r.EmitTaskCompleted(ctx, tk, time.Second)
	r.EmitTaskFailed(ctx, tk, errors.New("fail"))
	r.EmitTokenRedeemed(ctx, workflow.StageResize, "i-1")
	r.EmitCorrelationMiss(ctx, event.KindAgentActive, "i-2")
	r.EmitExecutionStarted(ctx, "arn:aws:states:::execution:x", "i-1")
	r.EmitDLQ(ctx, &dlq.Entry{})
	r.EmitShutdown(ctx)

	expected := []string{
		"OnTaskStarted", "OnStageInitiated", "OnAttachRetrying",
		"OnTaskCompleted", "OnTaskFailed", "OnTokenRedeemed",
		"OnCorrelationMiss", "OnExecutionStarted", "OnDLQ", "OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(quiet())
	all := &allHooksExt{}
	r.Register(&failingExt{})
	r.Register(all)

	r.EmitCorrelationMiss(context.Background(), event.KindCommandStatusChange, "i-1")

	if len(all.calls) != 1 || all.calls[0] != "OnCorrelationMiss" {
		t.Fatalf("all: expected [OnCorrelationMiss] despite failing ext, got %v", all.calls)
	}
}

func TestRegistry_NilRegistryNoOp(_ *testing.T) {
	var r *ext.Registry
	ctx := context.Background()
	tk := &task.Task{}

	r.EmitTaskStarted(ctx, tk)
	r.EmitTaskCompleted(ctx, tk, time.Second)
	r.EmitTaskFailed(ctx, tk, errors.New("x"))
	r.EmitStageInitiated(ctx, tk, "x")
	r.EmitAttachRetrying(ctx, tk, 1, errors.New("x"))
	r.EmitTokenRedeemed(ctx, workflow.StageResize, "x")
	r.EmitCorrelationMiss(ctx, event.KindUnknown, "x")
	r.EmitExecutionStarted(ctx, "a", "b")
	r.EmitDLQ(ctx, &dlq.Entry{})
	r.EmitShutdown(ctx)
}

func TestRegistry_MultipleExtensionsOrderPreserved(t *testing.T) {
	r := ext.NewRegistry(quiet())
	var order []string
	r.Register(&orderExt{name: "first", order: &order})
	r.Register(&orderExt{name: "second", order: &order})

	r.EmitShutdown(context.Background())

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v", order)
	}
}

type orderExt struct {
	name  string
	order *[]string
}

func (e *orderExt) Name() string { return e.name }

func (e *orderExt) OnShutdown(_ context.Context) error {
	*e.order = append(*e.order, e.name)
	return nil
}
