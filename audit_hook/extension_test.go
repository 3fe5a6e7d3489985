package audithook_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/volshift"
	ah "github.com/xraph/volshift/audit_hook"
	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/event"
	"github.com/xraph/volshift/ext"
	"github.com/xraph/volshift/id"
	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/workflow"
)

// ── Mock recorder ────────────────────────────────────

// mockRecorder captures audit events for verification.
type mockRecorder struct {
	mu     sync.Mutex
	events []*ah.AuditEvent
}

func (m *mockRecorder) Record(_ context.Context, evt *ah.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockRecorder) last() *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockRecorder) findByAction(action string) *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range m.events {
		if evt.Action == action {
			return evt
		}
	}
	return nil
}

// ── Test helpers ─────────────────────────────────────

func newTestTask() *task.Task {
	return task.New(workflow.StageCreateVolume, "token-1", []byte(`{"volumeId":"vol-1"}`))
}

func newTestEntry() *dlq.Entry {
	return &dlq.Entry{
		ID:         id.NewDLQID(),
		Stage:      workflow.StageAttachAndCleanup,
		ResourceID: "i-0worker",
		Code:       workflow.ErrorAttachExhausted,
		Error:      "attach retries exhausted",
	}
}

// ── Tests ────────────────────────────────────────────

func TestExtension_Name(t *testing.T) {
	e := ah.New(&mockRecorder{})
	if e.Name() != "audit-hook" {
		t.Errorf("expected name %q, got %q", "audit-hook", e.Name())
	}
}

func TestExtension_TaskHooks(t *testing.T) {
	ctx := context.Background()
	tk := newTestTask()
	failure := fmt.Errorf("%w: create volume", volshift.ErrExternalCall)

	tests := []struct {
		name     string
		emit     func(e *ah.Extension) error
		action   string
		severity string
		outcome  string
		resource string
		id       string
	}{
		{"started", func(e *ah.Extension) error { return e.OnTaskStarted(ctx, tk) },
			ah.ActionTaskStarted, ah.SeverityInfo, ah.OutcomeSuccess, ah.ResourceTask, tk.ID},
		{"completed", func(e *ah.Extension) error { return e.OnTaskCompleted(ctx, tk, 1500*time.Millisecond) },
			ah.ActionTaskCompleted, ah.SeverityInfo, ah.OutcomeSuccess, ah.ResourceTask, tk.ID},
		{"failed", func(e *ah.Extension) error { return e.OnTaskFailed(ctx, tk, failure) },
			ah.ActionTaskFailed, ah.SeverityCritical, ah.OutcomeFailure, ah.ResourceTask, tk.ID},
		{"initiated", func(e *ah.Extension) error { return e.OnStageInitiated(ctx, tk, "vol-1") },
			ah.ActionStageInitiated, ah.SeverityInfo, ah.OutcomeSuccess, ah.ResourceCorrelation, "vol-1"},
		{"attach retrying", func(e *ah.Extension) error { return e.OnAttachRetrying(ctx, tk, 3, errors.New("IncorrectState")) },
			ah.ActionAttachRetrying, ah.SeverityWarning, ah.OutcomeFailure, ah.ResourceTask, tk.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &mockRecorder{}
			e := ah.New(rec)
			if err := tt.emit(e); err != nil {
				t.Fatalf("hook: %v", err)
			}
			evt := rec.last()
			if evt == nil {
				t.Fatal("expected audit event")
			}
			if evt.Action != tt.action {
				t.Errorf("Action = %q, want %q", evt.Action, tt.action)
			}
			if evt.Severity != tt.severity {
				t.Errorf("Severity = %q, want %q", evt.Severity, tt.severity)
			}
			if evt.Outcome != tt.outcome {
				t.Errorf("Outcome = %q, want %q", evt.Outcome, tt.outcome)
			}
			if evt.Resource != tt.resource {
				t.Errorf("Resource = %q, want %q", evt.Resource, tt.resource)
			}
			if evt.ResourceID != tt.id {
				t.Errorf("ResourceID = %q, want %q", evt.ResourceID, tt.id)
			}
			if evt.Metadata["stage"] != workflow.StageCreateVolume.String() {
				t.Errorf("stage metadata = %v", evt.Metadata["stage"])
			}
		})
	}
}

func TestExtension_TaskFailedCarriesCode(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	err := fmt.Errorf("cleanup: %w", volshift.ErrAttachExhausted)
	if hookErr := e.OnTaskFailed(context.Background(), newTestTask(), err); hookErr != nil {
		t.Fatal(hookErr)
	}
	evt := rec.last()
	if evt.Metadata["code"] != workflow.ErrorAttachExhausted {
		t.Errorf("code = %v, want %q", evt.Metadata["code"], workflow.ErrorAttachExhausted)
	}
	if evt.Reason != err.Error() {
		t.Errorf("Reason = %q", evt.Reason)
	}
}

func TestExtension_EventHooks(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	ctx := context.Background()

	if err := e.OnTokenRedeemed(ctx, workflow.StageStopTarget, "i-0abc"); err != nil {
		t.Fatal(err)
	}
	if err := e.OnCorrelationMiss(ctx, event.KindAgentActive, "i-0worker"); err != nil {
		t.Fatal(err)
	}
	if err := e.OnExecutionStarted(ctx, "arn:aws:states:us-east-1:1:execution:sm:volshift-1", "i-0abc"); err != nil {
		t.Fatal(err)
	}

	miss := rec.findByAction(ah.ActionCorrelationMiss)
	if miss == nil {
		t.Fatal("missing correlation miss event")
	}
	if miss.Severity != ah.SeverityWarning || miss.Metadata["kind"] != string(event.KindAgentActive) {
		t.Errorf("miss = %+v", miss)
	}

	started := rec.findByAction(ah.ActionExecutionStarted)
	if started == nil || started.Metadata["instance_id"] != "i-0abc" {
		t.Errorf("execution started = %+v", started)
	}
}

func TestExtension_DLQ(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	entry := newTestEntry()

	if err := e.OnDLQ(context.Background(), entry); err != nil {
		t.Fatal(err)
	}
	evt := rec.last()
	if evt.ResourceID != entry.ID.String() {
		t.Errorf("ResourceID = %q, want %q", evt.ResourceID, entry.ID.String())
	}
	if evt.Category != ah.CategoryDLQ {
		t.Errorf("Category = %q", evt.Category)
	}
	if evt.Metadata["code"] != workflow.ErrorAttachExhausted {
		t.Errorf("code = %v", evt.Metadata["code"])
	}
}

func TestExtension_WithActions_FiltersDisabled(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec, ah.WithActions(ah.ActionTaskFailed, ah.ActionDLQPushed))

	ctx := context.Background()
	tk := newTestTask()

	// Started is NOT enabled and should be silently skipped.
	if err := e.OnTaskStarted(ctx, tk); err != nil {
		t.Fatalf("OnTaskStarted: %v", err)
	}
	if rec.count() != 0 {
		t.Errorf("expected 0 events (started disabled), got %d", rec.count())
	}

	if err := e.OnTaskFailed(ctx, tk, errors.New("boom")); err != nil {
		t.Fatalf("OnTaskFailed: %v", err)
	}
	if err := e.OnDLQ(ctx, newTestEntry()); err != nil {
		t.Fatalf("OnDLQ: %v", err)
	}
	if rec.count() != 2 {
		t.Errorf("expected 2 events, got %d", rec.count())
	}
}

func TestRecorderFunc(t *testing.T) {
	var captured *ah.AuditEvent
	fn := ah.RecorderFunc(func(_ context.Context, evt *ah.AuditEvent) error {
		captured = evt
		return nil
	})

	if err := ah.New(fn).OnTaskStarted(context.Background(), newTestTask()); err != nil {
		t.Fatalf("OnTaskStarted: %v", err)
	}
	if captured == nil {
		t.Fatal("RecorderFunc was not called")
	}
	if captured.Action != ah.ActionTaskStarted {
		t.Errorf("Action: want %q, got %q", ah.ActionTaskStarted, captured.Action)
	}
}

func TestExtension_RecorderError_DoesNotPropagate(t *testing.T) {
	failingRecorder := ah.RecorderFunc(func(_ context.Context, _ *ah.AuditEvent) error {
		return errors.New("audit backend down")
	})

	e := ah.New(failingRecorder, ah.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err := e.OnTaskStarted(context.Background(), newTestTask()); err != nil {
		t.Fatalf("expected no error (audit failure swallowed), got: %v", err)
	}
}

func TestExtension_ViaRegistry(t *testing.T) {
	rec := &mockRecorder{}
	reg := ext.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	reg.Register(ah.New(rec))

	ctx := context.Background()
	tk := newTestTask()

	reg.EmitTaskStarted(ctx, tk)
	reg.EmitTaskCompleted(ctx, tk, time.Second)
	reg.EmitTaskFailed(ctx, tk, errors.New("fail"))
	reg.EmitStageInitiated(ctx, tk, "vol-1")
	reg.EmitAttachRetrying(ctx, tk, 1, errors.New("IncorrectState"))
	reg.EmitTokenRedeemed(ctx, workflow.StageCreateVolume, "vol-1")
	reg.EmitCorrelationMiss(ctx, event.KindVolumeNotification, "vol-2")
	reg.EmitExecutionStarted(ctx, "arn:exec", "i-0abc")
	reg.EmitDLQ(ctx, newTestEntry())

	allActions := ah.AllActions()
	if rec.count() != len(allActions) {
		t.Fatalf("expected %d events, got %d", len(allActions), rec.count())
	}
	for _, action := range allActions {
		if rec.findByAction(action) == nil {
			t.Errorf("missing event for action %q", action)
		}
	}
}

func TestSlogRecorder(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	e := ah.New(ah.NewSlogRecorder(logger))
	if err := e.OnDLQ(context.Background(), newTestEntry()); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{`"level":"ERROR"`, `"action":"dlq.pushed"`, `"code":"volshift.AttachExhausted"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

func TestAllActions(t *testing.T) {
	if n := len(ah.AllActions()); n != 9 {
		t.Errorf("expected 9 actions, got %d", n)
	}
}
