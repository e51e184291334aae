// Package resilience keeps recognition alive when a speech backend starts
// failing: a circuit breaker per provider and a failover wrapper that
// prefers the primary but moves to the next healthy backend mid-session.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned when a breaker is open and its reset timeout has not
// elapsed.
var ErrOpen = errors.New("resilience: breaker open")

const (
	defaultMaxFailures  = 3
	defaultResetTimeout = 30 * time.Second
)

// Breaker is a minimal two-state circuit breaker: it opens after
// MaxFailures consecutive failures and allows a single probe call once
// ResetTimeout has passed. Safe for concurrent use.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
}

// NewBreaker creates a Breaker. Non-positive parameters take defaults
// (3 failures, 30s reset).
func NewBreaker(name string, maxFailures int, resetTimeout time.Duration) *Breaker {
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	if resetTimeout <= 0 {
		resetTimeout = defaultResetTimeout
	}
	return &Breaker{name: name, maxFailures: maxFailures, resetTimeout: resetTimeout}
}

// Allow reports whether a call may proceed. An open breaker admits one
// probe per reset interval.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if time.Since(b.openedAt) < b.resetTimeout {
		return false
	}
	// Probe window: push the reopen time forward so concurrent callers do
	// not all probe at once.
	b.openedAt = time.Now()
	return true
}

// Record feeds a call result back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		if b.open {
			slog.Info("speech backend recovered", "backend", b.name)
		}
		b.open = false
		b.failures = 0
		return
	}
	b.failures++
	if !b.open && b.failures >= b.maxFailures {
		b.open = true
		b.openedAt = time.Now()
		slog.Warn("speech backend tripped, skipping it",
			"backend", b.name, "failures", b.failures, "retry_in", b.resetTimeout)
	}
}
