// Package engine wires all volshift subsystems together: the extension
// registry, the stage initiators and their middleware chain, the activity
// pollers, the event resumers and the maintenance scheduler.
//
// This package sits above every subsystem package and below the
// application layer, so the root volshift package never has to import
// the subsystems it configures.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/attach"
	"github.com/xraph/volshift/cloud"
	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/cron"
	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/event"
	"github.com/xraph/volshift/ext"
	"github.com/xraph/volshift/initiator"
	"github.com/xraph/volshift/limit"
	mw "github.com/xraph/volshift/middleware"
	"github.com/xraph/volshift/observability"
	"github.com/xraph/volshift/resumer"
	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/worker"
	"github.com/xraph/volshift/workflow"
)

// instrumentation scope for engine-built tracers and meters.
const scope = "github.com/xraph/volshift"

// DLQPurgeEntry is the name of the scheduled DLQ retention purge.
const DLQPurgeEntry = "dlq-purge"

// Engine wraps a Runtime with typed subsystem access.
// Use Build() to create one.
type Engine struct {
	rt         *volshift.Runtime
	clients    *cloud.Clients
	extensions *ext.Registry
	records    correlation.Store
	dlqService *dlq.Service
	redeemer   task.Redeemer
	initiator  *initiator.Initiator
	resumer    *resumer.Resumer
	pool       *worker.Pool
	scheduler  *cron.Scheduler
	limits     *limit.Manager
	mws        []mw.Middleware
	logger     *slog.Logger

	activities      map[workflow.Stage]string
	stateMachineARN string
	limitConfigs    []limit.Config
	attachOpts      []attach.Option

	purgeSchedule string
	dlqRetention  time.Duration

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds middleware to the engine's chain. It runs inside
// the default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithActivities sets the activity ARN serving each stage. Stages without
// an activity are not polled.
func WithActivities(activities map[workflow.Stage]string) Option {
	return func(eng *Engine) {
		eng.activities = activities
	}
}

// WithStateMachine sets the state machine alarms start runs of.
func WithStateMachine(arn string) Option {
	return func(eng *Engine) {
		eng.stateMachineARN = arn
	}
}

// WithLimits registers per-stage rate and concurrency limits. Stages not
// listed have no limits.
func WithLimits(configs ...limit.Config) Option {
	return func(eng *Engine) {
		eng.limitConfigs = append(eng.limitConfigs, configs...)
	}
}

// WithAttachOptions passes options to every attach retrier.
func WithAttachOptions(opts ...attach.Option) Option {
	return func(eng *Engine) {
		eng.attachOpts = append(eng.attachOpts, opts...)
	}
}

// WithDLQRetention schedules a purge of DLQ entries older than retention.
// A zero retention disables the purge.
func WithDLQRetention(schedule string, retention time.Duration) Option {
	return func(eng *Engine) {
		eng.purgeSchedule = schedule
		eng.dlqRetention = retention
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider used by the metrics
// middleware and the observability extension.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine on top of rt. The runtime's store must implement
// correlation.Store and dlq.Store.
func Build(rt *volshift.Runtime, clients *cloud.Clients, opts ...Option) (*Engine, error) {
	logger := rt.Logger()
	store := rt.Store()

	if store == nil {
		return nil, volshift.ErrNoStore
	}
	if clients == nil {
		return nil, fmt.Errorf("volshift: no cloud clients")
	}

	records, ok := store.(correlation.Store)
	if !ok {
		return nil, fmt.Errorf("volshift: store does not implement correlation.Store")
	}
	ds, ok := store.(dlq.Store)
	if !ok {
		return nil, fmt.Errorf("volshift: store does not implement dlq.Store")
	}

	eng := &Engine{
		rt:            rt,
		clients:       clients,
		extensions:    ext.NewRegistry(logger),
		records:       records,
		logger:        logger,
		purgeSchedule: "@hourly",
	}

	for _, opt := range opts {
		opt(eng)
	}

	config := rt.Config()
	eng.dlqService = dlq.NewService(ds)
	eng.redeemer = task.NewSFN(clients.Tasks)

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter(scope + "/observability"))
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	eng.initiator = initiator.New(
		clients.Compute, clients.Storage, clients.Commands,
		records, eng.redeemer, config,
		initiator.WithLogger(logger),
		initiator.WithExtensions(eng.extensions),
		initiator.WithAttachOptions(eng.attachOpts...),
	)

	eng.resumer = resumer.New(records, eng.redeemer, clients.Commands, clients.Tasks,
		resumer.WithLogger(logger),
		resumer.WithExtensions(eng.extensions),
		resumer.WithDLQ(eng.dlqService),
		resumer.WithFilter(event.Filter{AlarmPrefix: config.AlarmPrefix}),
		resumer.WithStateMachine(eng.stateMachineARN),
	)

	executor := worker.NewExecutor(
		eng.initiator.Handlers(), eng.redeemer, eng.extensions, eng.dlqService, logger,
		worker.WithFailStalled(config.FailStalledTasks),
		worker.WithMiddleware(eng.middleware(config)...),
	)

	poolOpts := []worker.PoolOption{
		worker.WithActivities(eng.poolActivities()),
		worker.WithPoolConcurrency(config.Concurrency),
		worker.WithPollInterval(config.PollInterval),
		worker.WithHeartbeatInterval(config.HeartbeatInterval),
		worker.WithRedeemer(eng.redeemer),
	}
	if len(eng.limitConfigs) > 0 {
		eng.limits = limit.NewManager(eng.limitConfigs...)
		poolOpts = append(poolOpts, worker.WithLimiter(eng.limits))
	}
	eng.pool = worker.NewPool(clients.Tasks, executor, eng.extensions, logger, poolOpts...)

	// Wire back into the Runtime.
	rt.SetPool(eng.pool)
	rt.SetExtensions(eng.extensions)

	eng.scheduler = cron.NewScheduler(logger)
	if eng.dlqRetention > 0 {
		err := cron.RegisterDefinition(eng.scheduler, cron.Definition[time.Duration]{
			Name:     DLQPurgeEntry,
			Schedule: eng.purgeSchedule,
			Params:   eng.dlqRetention,
			Run: func(ctx context.Context, retention time.Duration) error {
				n, err := eng.dlqService.Purge(ctx, retention)
				if err != nil {
					return err
				}
				if n > 0 {
					logger.Info("dlq purged", slog.Int64("entries", n), slog.Duration("retention", retention))
				}
				return nil
			},
		})
		if err != nil {
			return nil, err
		}
	}

	return eng, nil
}

// middleware builds the default stack: recover → tracing → metrics →
// logging → timeout, followed by user middleware.
func (eng *Engine) middleware(config volshift.Config) []mw.Middleware {
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(scope))
	} else {
		tracingMw = mw.Tracing()
	}

	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(scope))
	} else {
		metricsMw = mw.Metrics()
	}

	timeouts := map[workflow.Stage]time.Duration{
		workflow.StageAttachAndCleanup: config.Attach.Timeout,
	}
	all := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
		mw.Timeout(eng.logger, config.StageTimeout, timeouts),
	}
	return append(all, eng.mws...)
}

func (eng *Engine) poolActivities() []worker.Activity {
	out := make([]worker.Activity, 0, len(eng.activities))
	for _, s := range workflow.Stages() {
		if arn := eng.activities[s]; arn != "" {
			out = append(out, worker.Activity{Stage: s, ARN: arn})
		}
	}
	return out
}

// Start begins polling stage activities and runs the maintenance
// scheduler.
func (eng *Engine) Start(ctx context.Context) error {
	if err := eng.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start cron scheduler: %w", err)
	}
	return eng.rt.Start(ctx)
}

// Stop gracefully shuts down the engine.
func (eng *Engine) Stop(ctx context.Context) error {
	if err := eng.scheduler.Stop(ctx); err != nil {
		eng.logger.Error("cron scheduler stop error", slog.String("error", err.Error()))
	}
	return eng.rt.Stop(ctx)
}

// Handle routes one completion or alarm event to its resumer.
func (eng *Engine) Handle(ctx context.Context, e *event.Envelope) (resumer.Outcome, error) {
	return eng.resumer.Handle(ctx, e)
}

// Definition returns the state machine definition for the configured
// activities.
func (eng *Engine) Definition() workflow.Definition {
	return workflow.Definition{
		Comment:          "volshift volume migration",
		Activities:       eng.activities,
		CleanupHeartbeat: 3 * eng.rt.Config().HeartbeatInterval,
	}
}

// Ping checks the store.
func (eng *Engine) Ping(ctx context.Context) error {
	return eng.rt.Store().Ping(ctx)
}

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Runtime returns the underlying Runtime.
func (eng *Engine) Runtime() *volshift.Runtime { return eng.rt }

// DLQService returns the engine's DLQ service.
func (eng *Engine) DLQService() *dlq.Service { return eng.dlqService }

// Records returns the correlation store.
func (eng *Engine) Records() correlation.Store { return eng.records }

// Initiator returns the stage handlers.
func (eng *Engine) Initiator() *initiator.Initiator { return eng.initiator }

// Resumer returns the event resumer.
func (eng *Engine) Resumer() *resumer.Resumer { return eng.resumer }

// Pool returns the activity poller pool.
func (eng *Engine) Pool() *worker.Pool { return eng.pool }

// Scheduler returns the maintenance scheduler.
func (eng *Engine) Scheduler() *cron.Scheduler { return eng.scheduler }

// Limits returns the stage limit manager, or nil if no limits were
// configured.
func (eng *Engine) Limits() *limit.Manager { return eng.limits }
