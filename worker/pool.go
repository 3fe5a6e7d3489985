package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/backoff"
	"github.com/xraph/volshift/cloud"
	"github.com/xraph/volshift/ext"
	"github.com/xraph/volshift/id"
	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/workflow"
)

// Limiter gates how many tasks of a stage run at once. The pool calls
// Acquire before polling a stage activity and Release once the polled task
// has finished or the poll came back empty.
type Limiter interface {
	Acquire(stage workflow.Stage) bool
	Release(stage workflow.Stage)
}

// Activity binds a stage to the orchestrator activity that serves it.
type Activity struct {
	Stage workflow.Stage
	ARN   string
}

// Pool polls stage activities and executes the tasks it receives through
// the Executor.
type Pool struct {
	tasks        cloud.Tasks
	redeemer     task.Redeemer
	executor     *Executor
	extensions   *ext.Registry
	activities   []Activity
	concurrency  int
	pollInterval time.Duration
	workerID     id.WorkerID
	logger       *slog.Logger

	heartbeatInterval time.Duration

	limiter Limiter
	// errBackoff spaces polls after consecutive GetActivityTask errors.
	errBackoff backoff.Strategy

	stopCh     chan struct{}
	pollCancel context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	activeJobs map[string]*activeTask
	activeMu   sync.Mutex
}

type activeTask struct {
	task   *task.Task
	cancel context.CancelFunc
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of pollers per activity.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithActivities sets the activities the pool polls.
func WithActivities(activities []Activity) PoolOption {
	return func(p *Pool) { p.activities = activities }
}

// WithPollInterval sets how long a poller waits after a failed poll or a
// denied slot.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithHeartbeatInterval sets how often the pool heartbeats in-flight
// tasks. A zero value disables heartbeats.
func WithHeartbeatInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.heartbeatInterval = d }
}

// WithLimiter sets the per-stage limiter.
func WithLimiter(l Limiter) PoolOption {
	return func(p *Pool) { p.limiter = l }
}

// WithErrorBackoff sets the delay strategy applied after consecutive
// poll errors. The default doubles from the poll interval up to a minute.
func WithErrorBackoff(s backoff.Strategy) PoolOption {
	return func(p *Pool) { p.errBackoff = s }
}

// WithRedeemer sets the redeemer used for heartbeats.
func WithRedeemer(r task.Redeemer) PoolOption {
	return func(p *Pool) { p.redeemer = r }
}

// NewPool creates a worker pool.
func NewPool(
	tasks cloud.Tasks,
	executor *Executor,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		tasks:        tasks,
		executor:     executor,
		extensions:   extensions,
		concurrency:  1,
		pollInterval: time.Second,
		workerID:     id.NewWorkerID(),
		logger:       logger,
		stopCh:       make(chan struct{}),
		activeJobs:   make(map[string]*activeTask),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.redeemer == nil {
		p.redeemer = task.NewSFN(tasks)
	}
	if p.errBackoff == nil {
		p.errBackoff = backoff.NewExponentialWithJitter(p.pollInterval, time.Minute)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier. It is sent as the
// worker name on every poll.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the pollers. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	pollCtx, cancel := context.WithCancel(context.Background())
	p.pollCancel = cancel

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
		slog.Int("activities", len(p.activities)),
	)

	for _, a := range p.activities {
		for range p.concurrency {
			p.wg.Add(1)
			go p.pollLoop(pollCtx, a)
		}
	}

	if p.heartbeatInterval > 0 {
		p.wg.Add(1)
		go p.heartbeatLoop()
	}

	return nil
}

// Stop signals all pollers to stop and waits for in-flight tasks to
// finish. If the context ends first, in-flight tasks are cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(p.stopCh)
	// Abort outstanding long polls; running tasks keep their own context.
	p.pollCancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active tasks")
		p.cancelActiveJobs()
		p.wg.Wait()
	}

	return nil
}

func (p *Pool) pollLoop(ctx context.Context, a Activity) {
	defer p.wg.Done()

	failures := 0
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		if p.limiter != nil && !p.limiter.Acquire(a.Stage) {
			p.sleep()
			continue
		}

		t, err := p.poll(ctx, a)
		if err != nil {
			p.release(a.Stage)
			if ctx.Err() != nil {
				return
			}
			failures++
			p.logger.Error("activity poll error",
				slog.String("stage", a.Stage.String()),
				slog.Int("failures", failures),
				slog.String("error", err.Error()),
			)
			p.wait(p.errBackoff.Delay(failures))
			continue
		}
		failures = 0
		if t == nil {
			p.release(a.Stage)
			continue
		}

		p.run(t)
		p.release(a.Stage)
	}
}

// poll long-polls the activity. It returns nil when the poll timed out
// without a task.
func (p *Pool) poll(ctx context.Context, a Activity) (*task.Task, error) {
	out, err := p.tasks.GetActivityTask(ctx, &sfn.GetActivityTaskInput{
		ActivityArn: aws.String(a.ARN),
		WorkerName:  aws.String(p.workerID.String()),
	})
	if err != nil {
		return nil, err
	}
	token := aws.ToString(out.TaskToken)
	if token == "" {
		return nil, nil
	}
	return task.New(a.Stage, token, []byte(aws.ToString(out.Input))), nil
}

func (p *Pool) run(t *task.Task) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.extensions.EmitTaskStarted(ctx, t)
	p.trackJob(t, cancel)
	defer p.untrackJob(t.ID)

	if err := p.executor.Execute(ctx, t); err != nil {
		p.logger.Debug("task execution failed",
			slog.String("task_id", t.ID),
			slog.String("stage", t.Stage.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Pool) release(stage workflow.Stage) {
	if p.limiter != nil {
		p.limiter.Release(stage)
	}
}

func (p *Pool) heartbeatLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sendHeartbeats()
		}
	}
}

func (p *Pool) sendHeartbeats() {
	p.activeMu.Lock()
	active := make([]*activeTask, 0, len(p.activeJobs))
	for _, a := range p.activeJobs {
		active = append(active, a)
	}
	p.activeMu.Unlock()

	for _, a := range active {
		err := p.redeemer.Heartbeat(context.Background(), a.task.Token)
		if err == nil {
			continue
		}
		if errors.Is(err, volshift.ErrTokenRedeemed) {
			// The orchestrator timed the task out; stop working on it.
			p.logger.Warn("heartbeat rejected, cancelling task",
				slog.String("task_id", a.task.ID),
				slog.String("stage", a.task.Stage.String()),
			)
			a.cancel()
			continue
		}
		p.logger.Warn("heartbeat failed",
			slog.String("task_id", a.task.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Pool) sleep() { p.wait(p.pollInterval) }

func (p *Pool) wait(d time.Duration) {
	select {
	case <-time.After(d):
	case <-p.stopCh:
	}
}

func (p *Pool) trackJob(t *task.Task, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeJobs[t.ID] = &activeTask{task: t, cancel: cancel}
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(taskID string) {
	p.activeMu.Lock()
	delete(p.activeJobs, taskID)
	p.activeMu.Unlock()
}

// Active returns the number of tasks currently executing.
func (p *Pool) Active() int {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	return len(p.activeJobs)
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for taskID, a := range p.activeJobs {
		p.logger.Warn("cancelling active task", slog.String("task_id", taskID))
		a.cancel()
	}
}
