// Package attach retries a storage attach until the volume is admitted.
//
// A volume detached moments ago is still "in-use" or "detaching" for an
// unpredictable interval and the control plane emits no event when it
// becomes attachable, so the only option is to poll by calling attach.
// Retrier bounds that poll: it waits before every attempt and gives up
// with volshift.ErrAttachExhausted after Policy.MaxAttempts.
package attach

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/backoff"
)

// Policy bounds the retry loop.
type Policy struct {
	// MaxAttempts is the number of attach calls before giving up.
	MaxAttempts int
	// Backoff is the wait before each attempt, including the first.
	Backoff backoff.Strategy
	// Permanent, when set, stops the loop early on errors waiting cannot fix.
	Permanent func(error) bool
}

// DefaultPolicy waits 2s before each of at most 150 attempts.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 150,
		Backoff:     backoff.AttachDefault(),
	}
}

// Progress is called after every failed attempt.
type Progress func(attempt int, err error)

// Retrier runs the bounded loop.
type Retrier struct {
	policy   Policy
	logger   *slog.Logger
	progress Progress
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Retrier) { r.logger = l }
}

// WithProgress registers a callback for failed attempts.
func WithProgress(p Progress) Option {
	return func(r *Retrier) { r.progress = p }
}

// WithSleep replaces the wait function. Tests use it to record delays
// without waiting.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Retrier) { r.sleep = fn }
}

// New returns a Retrier. Non-positive MaxAttempts falls back to the
// default bound; the loop is never unbounded.
func New(p Policy, opts ...Option) *Retrier {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = def.Backoff
	}
	r := &Retrier{
		policy: p,
		logger: slog.Default(),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the effective policy.
func (r *Retrier) Policy() Policy { return r.policy }

// Do waits, calls attach, and repeats until attach returns nil, the
// attempts run out, attach fails permanently, or ctx ends. It returns the
// number of attach calls made.
func (r *Retrier) Do(ctx context.Context, attach func(ctx context.Context) error) (int, error) {
	var lastErr error
	for n := 1; n <= r.policy.MaxAttempts; n++ {
		if err := r.sleep(ctx, r.policy.Backoff.Delay(n)); err != nil {
			return n - 1, err
		}

		lastErr = attach(ctx)
		if lastErr == nil {
			if n > 1 {
				r.logger.Info("attach succeeded after retries", slog.Int("attempts", n))
			}
			return n, nil
		}

		if r.progress != nil {
			r.progress(n, lastErr)
		}
		r.logger.Debug("attach attempt failed",
			slog.Int("attempt", n),
			slog.Int("max_attempts", r.policy.MaxAttempts),
			slog.String("error", lastErr.Error()),
		)

		if r.policy.Permanent != nil && r.policy.Permanent(lastErr) {
			return n, fmt.Errorf("volshift/attach: attempt %d: %w", n, lastErr)
		}
	}
	return r.policy.MaxAttempts, fmt.Errorf("%w after %d attempts: %w", volshift.ErrAttachExhausted, r.policy.MaxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
