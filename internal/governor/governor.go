// Package governor guards outbound generation calls with per-session limits:
// a hard quota of calls per session and a cooldown between consecutive calls.
package governor

import (
	"fmt"
	"math"
	"time"
)

const (
	// DefaultMaxCalls is the per-session generation call quota.
	DefaultMaxCalls = 20
	// DefaultCooldown is the minimum gap between admitted calls.
	DefaultCooldown = 5 * time.Second
)

// State holds the per-session counters the governor reads and writes.
// A zero State admits immediately.
type State struct {
	Calls    int
	LastCall time.Time
}

// DeniedError reports why a call was not admitted. RetryAfterSeconds is zero
// when waiting will not help (quota exhausted, session reset required).
type DeniedError struct {
	Reason            string
	RetryAfterSeconds int
}

func (e *DeniedError) Error() string {
	if e.RetryAfterSeconds > 0 {
		return fmt.Sprintf("%s: retry in %ds", e.Reason, e.RetryAfterSeconds)
	}
	return e.Reason
}

// Governor decides whether a session may issue another generation call.
type Governor struct {
	maxCalls int
	cooldown time.Duration
	now      func() time.Time
}

// New builds a governor; non-positive arguments fall back to the defaults.
func New(maxCalls int, cooldown time.Duration) *Governor {
	if maxCalls <= 0 {
		maxCalls = DefaultMaxCalls
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Governor{maxCalls: maxCalls, cooldown: cooldown, now: time.Now}
}

// WithClock replaces the wall clock, used by tests.
func (g *Governor) WithClock(now func() time.Time) *Governor {
	g.now = now
	return g
}

// Admit checks the quota first, then the cooldown. It never mutates state;
// callers invoke Record only after the downstream call has succeeded.
func (g *Governor) Admit(s State) error {
	if s.Calls >= g.maxCalls {
		return &DeniedError{Reason: "session call quota exhausted"}
	}
	if !s.LastCall.IsZero() {
		elapsed := g.now().Sub(s.LastCall)
		if elapsed < g.cooldown {
			remaining := (g.cooldown - elapsed).Seconds()
			return &DeniedError{
				Reason:            "cooldown active",
				RetryAfterSeconds: int(math.Ceil(remaining)) + 1,
			}
		}
	}
	return nil
}

// Record notes a successful generation call against the session.
func (g *Governor) Record(s *State) {
	s.Calls++
	s.LastCall = g.now()
}

// MaxCalls reports the configured per-session quota.
func (g *Governor) MaxCalls() int { return g.maxCalls }
