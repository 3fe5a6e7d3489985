package volshift

import (
	"context"
	"log/slog"
)

// Option configures a Runtime.
type Option func(*Runtime) error

// Storer is the minimal store interface held by the Runtime. It covers
// lifecycle operations only; store.Store embeds it together with the
// subsystem stores.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// poolRunner is an internal interface for worker pool lifecycle.
type poolRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Runtime owns the configuration, logger and store shared by every
// subsystem and drives the worker pool lifecycle. Build the subsystems on
// top of it with engine.Build.
type Runtime struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	extensions extensionEmitter
	pool       poolRunner

	started bool
}

// New creates a new Runtime with the given options.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Logger returns the runtime's logger.
func (r *Runtime) Logger() *slog.Logger { return r.logger }

// Store returns the runtime's store.
func (r *Runtime) Store() Storer { return r.store }

// Config returns a copy of the runtime's configuration.
func (r *Runtime) Config() Config { return r.config }

// SetPool sets the worker pool (called by the engine package).
func (r *Runtime) SetPool(p poolRunner) { r.pool = p }

// SetExtensions sets the extension emitter (called by the engine package).
func (r *Runtime) SetExtensions(e extensionEmitter) { r.extensions = e }

// Start begins polling stage activities.
func (r *Runtime) Start(ctx context.Context) error {
	if r.store == nil {
		return ErrNoStore
	}
	if r.pool != nil {
		if err := r.pool.Start(ctx); err != nil {
			return err
		}
	}
	r.started = true
	return nil
}

// Stop gracefully shuts down the runtime.
func (r *Runtime) Stop(ctx context.Context) error {
	if r.pool != nil && r.started {
		if err := r.pool.Stop(ctx); err != nil {
			r.logger.Error("pool stop error", slog.String("error", err.Error()))
		}
	}
	if r.extensions != nil {
		r.extensions.EmitShutdown(ctx)
	}
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(r *Runtime) error {
		r.config = cfg
		return nil
	}
}

// WithConcurrency sets the number of pollers per stage.
func WithConcurrency(n int) Option {
	return func(r *Runtime) error {
		r.config.Concurrency = n
		return nil
	}
}

// WithFailStalledTasks controls whether a stage that cannot start its
// external operation fails the orchestrator run.
func WithFailStalledTasks(v bool) Option {
	return func(r *Runtime) error {
		r.config.FailStalledTasks = v
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) error {
		r.logger = l
		return nil
	}
}

// WithStore sets the persistence backend. The store must implement Storer
// at minimum; engine.Build additionally requires correlation.Store.
func WithStore(s Storer) Option {
	return func(r *Runtime) error {
		r.store = s
		return nil
	}
}
