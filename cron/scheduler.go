// Package cron runs in-process maintenance on cron schedules, such as
// purging old dead letter entries.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due entries.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

type scheduled struct {
	entry    *Entry
	schedule cronlib.Schedule
}

// Scheduler runs registered entries on a tick loop. Entries never overlap
// with themselves: a tick runs due entries one after another.
type Scheduler struct {
	logger       *slog.Logger
	tickInterval time.Duration
	now          func() time.Time

	mu      sync.Mutex
	entries map[string]*scheduled

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewScheduler creates a Scheduler.
func NewScheduler(logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		logger:       logger,
		tickInterval: time.Second,
		now:          func() time.Time { return time.Now().UTC() },
		entries:      make(map[string]*scheduled),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds an entry. The first run is the schedule's next activation
// after now.
func (s *Scheduler) Register(name, expr string, fn Func) error {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return fmt.Errorf("cron %q: parse schedule %q: %w", name, expr, err)
	}

	next := sched.Next(s.now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[name]; dup {
		return fmt.Errorf("cron %q: already registered", name)
	}
	s.entries[name] = &scheduled{
		entry: &Entry{
			Name:      name,
			Schedule:  expr,
			NextRunAt: &next,
			Enabled:   true,
			run:       fn,
		},
		schedule: sched,
	}
	return nil
}

// SetEnabled turns an entry on or off.
func (s *Scheduler) SetEnabled(name string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.entries[name]
	if ok {
		sc.entry.Enabled = enabled
	}
	return ok
}

// Entries returns a snapshot of all entries sorted by name.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, sc := range s.entries {
		out = append(out, *sc.entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start launches the tick goroutine.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true

	s.wg.Add(1)
	go s.tickLoop()
	s.logger.Info("cron scheduler started",
		slog.Int("entries", len(s.entries)),
		slog.Duration("tick_interval", s.tickInterval),
	)
	return nil
}

// Stop signals the scheduler to stop and waits for a running tick.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("cron scheduler stopped")
	return nil
}

func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Tick(context.Background())
		}
	}
}

// Tick runs every enabled entry that is due and returns how many ran.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	var due []*scheduled
	for _, sc := range s.entries {
		if !sc.entry.Enabled || sc.entry.NextRunAt == nil || sc.entry.NextRunAt.After(now) {
			continue
		}
		due = append(due, sc)
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].entry.Name < due[j].entry.Name })
	for _, sc := range due {
		s.fire(ctx, sc, now)
	}
	return len(due)
}

func (s *Scheduler) fire(ctx context.Context, sc *scheduled, now time.Time) {
	err := sc.entry.run(ctx)

	next := sc.schedule.Next(now)
	s.mu.Lock()
	sc.entry.LastRunAt = &now
	sc.entry.NextRunAt = &next
	sc.entry.LastError = ""
	if err != nil {
		sc.entry.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("cron entry failed",
			slog.String("cron_name", sc.entry.Name),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Debug("cron fired",
		slog.String("cron_name", sc.entry.Name),
		slog.Time("next_run_at", next),
	)
}
