package cron

import (
	"context"
	"time"
)

// Func is the work an entry runs when it is due.
type Func func(ctx context.Context) error

// Entry is one periodic maintenance task.
type Entry struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Enabled   bool       `json:"enabled"`

	run Func
}
