// Package limit bounds how fast and how many activity tasks each stage
// takes on. The pollers ask for a slot before they long-poll the
// orchestrator, so a stage at its limit leaves tasks queued there instead
// of holding them.
package limit

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/xraph/volshift/workflow"
)

// Config defines per-stage rate and concurrency limits.
type Config struct {
	// Stage is the stage this config applies to.
	Stage workflow.Stage `yaml:"stage"`

	// MaxConcurrency limits how many tasks of this stage may run at once
	// in this process. Zero means no stage-specific limit.
	MaxConcurrency int `yaml:"max_concurrency"`

	// RateLimit is the maximum sustained tasks per second taken for this
	// stage. Zero disables rate limiting.
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the token-bucket burst. Defaults to 1 when RateLimit
	// is set.
	RateBurst int `yaml:"rate_burst"`
}

type stageState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Manager tracks per-stage limits. It is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	stages map[workflow.Stage]*stageState
}

// NewManager creates a Manager. Stages without a config have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{stages: make(map[workflow.Stage]*stageState, len(configs))}
	for _, cfg := range configs {
		m.stages[cfg.Stage] = newStageState(cfg)
	}
	return m
}

func newStageState(cfg Config) *stageState {
	s := &stageState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

// Acquire reports whether a task of stage may be taken now and, if so,
// counts it as active. The caller MUST call Release when the task ends.
func (m *Manager) Acquire(stage workflow.Stage) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stages[stage]
	if s == nil {
		return true
	}
	if s.config.MaxConcurrency > 0 && s.active >= s.config.MaxConcurrency {
		return false
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return false
	}
	s.active++
	return true
}

// Release marks one task of stage finished.
func (m *Manager) Release(stage workflow.Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.stages[stage]; s != nil && s.active > 0 {
		s.active--
	}
}

// Set replaces (or adds) the config for a stage, keeping its active count.
func (m *Manager) Set(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := newStageState(cfg)
	if existing := m.stages[cfg.Stage]; existing != nil {
		s.active = existing.active
	}
	m.stages[cfg.Stage] = s
}

// Active returns the number of running tasks for a stage.
func (m *Manager) Active(stage workflow.Stage) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.stages[stage]; s != nil {
		return s.active
	}
	return 0
}
