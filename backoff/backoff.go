// Package backoff computes delays between attempts. The attach loop uses a
// constant delay; the activity pollers back off exponentially after
// GetActivityTask errors. Strategies are stateless and safe for
// concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before attempt n (1-indexed). Attempt 1 is
// the first attempt, so a strategy that returns a non-zero Delay(1) waits
// before trying at all.
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Func adapts a plain function to Strategy.
type Func func(attempt int) time.Duration

// Delay calls f.
func (f Func) Delay(attempt int) time.Duration { return f(attempt) }

// Constant always returns the same delay.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Exponential doubles the delay each attempt up to Max. With Jitter set
// the result is drawn uniformly from [0, delay].
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  bool
}

// NewExponential creates an exponential strategy without jitter.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// NewExponentialWithJitter creates an exponential strategy with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay, Jitter: true}
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	if e.Jitter {
		return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
	}
	return time.Duration(base)
}

// Total returns the sum of the first n delays of s: the longest a
// bounded loop of n attempts can spend waiting.
func Total(s Strategy, n int) time.Duration {
	var sum time.Duration
	for i := 1; i <= n; i++ {
		sum += s.Delay(i)
	}
	return sum
}

// AttachDefault is the attach loop's delay: a flat 2 seconds.
func AttachDefault() Strategy {
	return NewConstant(2 * time.Second)
}

// PollDefault is the delay after failed GetActivityTask calls.
func PollDefault() Strategy {
	return NewExponentialWithJitter(500*time.Millisecond, 30*time.Second)
}
