package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/cloud/cloudtest"
	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/ext"
	"github.com/xraph/volshift/initiator"
	"github.com/xraph/volshift/middleware"
	"github.com/xraph/volshift/store/memory"
	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/workflow"
	"github.com/xraph/volshift/worker"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// hookRecorder records task lifecycle hooks.
type hookRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *hookRecorder) Name() string { return "recorder" }

func (r *hookRecorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *hookRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *hookRecorder) OnTaskStarted(_ context.Context, _ *task.Task) error {
	r.add("started")
	return nil
}

func (r *hookRecorder) OnTaskCompleted(_ context.Context, _ *task.Task, _ time.Duration) error {
	r.add("completed")
	return nil
}

func (r *hookRecorder) OnTaskFailed(_ context.Context, _ *task.Task, _ error) error {
	r.add("failed")
	return nil
}

func (r *hookRecorder) OnDLQ(_ context.Context, _ *dlq.Entry) error {
	r.add("dlq")
	return nil
}

type executorHarness struct {
	sfn   *cloudtest.SFN
	store *memory.Store
	hooks *hookRecorder
}

func newExecutor(t *testing.T, handlers map[workflow.Stage]initiator.Handler, opts ...worker.ExecutorOption) (*worker.Executor, *executorHarness) {
	t.Helper()
	h := &executorHarness{
		sfn:   &cloudtest.SFN{},
		store: memory.New(),
		hooks: &hookRecorder{},
	}
	logger := quietLogger()
	extensions := ext.NewRegistry(logger)
	extensions.Register(h.hooks)

	opts = append([]worker.ExecutorOption{worker.WithMiddleware(middleware.Recover(logger))}, opts...)
	e := worker.NewExecutor(handlers, task.NewSFN(h.sfn), extensions, dlq.NewService(h.store), logger, opts...)
	return e, h
}

func stageTask(stage workflow.Stage) *task.Task {
	return task.New(stage, "token-"+string(stage), []byte(`{"targetInstanceId":"i-0abc","volumeId":"vol-1"}`))
}

func failing(err error) initiator.Handler {
	return func(context.Context, *task.Task) error { return err }
}

func TestExecutor_Success(t *testing.T) {
	e, h := newExecutor(t, map[workflow.Stage]initiator.Handler{
		workflow.StageStopTarget: func(context.Context, *task.Task) error { return nil },
	})

	if err := e.Execute(context.Background(), stageTask(workflow.StageStopTarget)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := h.hooks.snapshot(); len(got) != 1 || got[0] != "completed" {
		t.Errorf("hooks = %v, want [completed]", got)
	}
	if n := h.sfn.Count("SendTaskFailure"); n != 0 {
		t.Errorf("SendTaskFailure called %d times", n)
	}
}

func TestExecutor_FailureRouting(t *testing.T) {
	external := fmt.Errorf("%w: run instances: throttled", volshift.ErrExternalCall)

	tests := []struct {
		name        string
		stage       workflow.Stage
		err         error
		failStalled bool
		wantFail    bool
		wantCode    string
	}{
		{"parking stage fails token", workflow.StageCreateInstance, external, true, true, workflow.ErrorExternalCall},
		{"parking stage left suspended", workflow.StageCreateInstance, external, false, false, ""},
		{"cleanup always fails token", workflow.StageAttachAndCleanup,
			fmt.Errorf("attach: %w", volshift.ErrAttachExhausted), false, true, workflow.ErrorAttachExhausted},
		{"invalid state", workflow.StageShuffleAndCopy,
			fmt.Errorf("%w: no worker instance", volshift.ErrInvalidState), true, true, workflow.ErrorInvalidState},
		{"token already gone", workflow.StageAttachAndCleanup,
			fmt.Errorf("succeed: %w", volshift.ErrTokenRedeemed), true, false, ""},
		{"unclassified error", workflow.StageResize, errors.New("boom"), true, true, workflow.ErrorInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, h := newExecutor(t,
				map[workflow.Stage]initiator.Handler{tt.stage: failing(tt.err)},
				worker.WithFailStalled(tt.failStalled),
			)

			var gotCode string
			h.sfn.SendTaskFailureFn = func(_ context.Context, in *sfn.SendTaskFailureInput) (*sfn.SendTaskFailureOutput, error) {
				gotCode = aws.ToString(in.Error)
				return &sfn.SendTaskFailureOutput{}, nil
			}

			err := e.Execute(context.Background(), stageTask(tt.stage))
			if !errors.Is(err, tt.err) {
				t.Fatalf("Execute error = %v, want %v", err, tt.err)
			}

			failed := h.sfn.Count("SendTaskFailure") == 1
			if failed != tt.wantFail {
				t.Fatalf("token failed = %v, want %v", failed, tt.wantFail)
			}
			if tt.wantFail && gotCode != tt.wantCode {
				t.Errorf("code = %q, want %q", gotCode, tt.wantCode)
			}

			entries, listErr := h.store.ListDLQ(context.Background(), dlq.ListOpts{})
			if listErr != nil {
				t.Fatal(listErr)
			}
			if len(entries) != 1 {
				t.Fatalf("dlq entries = %d, want 1", len(entries))
			}
			if entries[0].Stage != tt.stage {
				t.Errorf("entry stage = %q, want %q", entries[0].Stage, tt.stage)
			}
			if entries[0].ResourceID != "i-0abc" {
				t.Errorf("entry resource = %q, want i-0abc", entries[0].ResourceID)
			}
			if entries[0].TokenHash != dlq.TokenHash("token-"+string(tt.stage)) {
				t.Errorf("entry token hash = %q", entries[0].TokenHash)
			}
		})
	}
}

func TestExecutor_NoHandler(t *testing.T) {
	e, h := newExecutor(t, map[workflow.Stage]initiator.Handler{})

	err := e.Execute(context.Background(), stageTask(workflow.StageResize))
	if !errors.Is(err, volshift.ErrNoStageHandler) {
		t.Fatalf("expected ErrNoStageHandler, got %v", err)
	}
	if n := h.sfn.Count("SendTaskFailure"); n != 1 {
		t.Errorf("SendTaskFailure called %d times, want 1", n)
	}
}

func TestExecutor_PanicFailsToken(t *testing.T) {
	e, h := newExecutor(t, map[workflow.Stage]initiator.Handler{
		workflow.StageAttachAndCleanup: func(context.Context, *task.Task) error { panic("nil volume") },
	})

	if err := e.Execute(context.Background(), stageTask(workflow.StageAttachAndCleanup)); err == nil {
		t.Fatal("expected error from panicking handler")
	}
	if n := h.sfn.Count("SendTaskFailure"); n != 1 {
		t.Errorf("SendTaskFailure called %d times, want 1", n)
	}
	want := []string{"failed", "dlq"}
	got := h.hooks.snapshot()
	if len(got) != len(want) {
		t.Fatalf("hooks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("hooks[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExecutor_SettlesAfterDeadline(t *testing.T) {
	e, h := newExecutor(t, map[workflow.Stage]initiator.Handler{
		workflow.StageAttachAndCleanup: func(ctx context.Context, _ *task.Task) error {
			<-ctx.Done()
			return fmt.Errorf("attach: %w", ctx.Err())
		},
	})
	h.sfn.SendTaskFailureFn = func(ctx context.Context, _ *sfn.SendTaskFailureInput) (*sfn.SendTaskFailureOutput, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &sfn.SendTaskFailureOutput{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := e.Execute(ctx, stageTask(workflow.StageAttachAndCleanup)); err == nil {
		t.Fatal("expected error")
	}
	if n, _ := h.store.CountDLQ(context.Background()); n != 1 {
		t.Errorf("dlq count = %d, want 1", n)
	}
	if n := h.sfn.Count("SendTaskFailure"); n != 1 {
		t.Errorf("SendTaskFailure called %d times, want 1", n)
	}
}
