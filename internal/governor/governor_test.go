package governor

import (
	"errors"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAdmitFreshSession(t *testing.T) {
	g := New(0, 0)
	if err := g.Admit(State{}); err != nil {
		t.Fatalf("fresh session should be admitted: %v", err)
	}
}

func TestQuotaBoundary(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	g := New(20, 5*time.Second).WithClock(fixedClock(now))

	s := State{Calls: 19, LastCall: now.Add(-10 * time.Second)}
	if err := g.Admit(s); err != nil {
		t.Fatalf("call 20 should be admitted: %v", err)
	}
	g.Record(&s)
	if s.Calls != 20 {
		t.Fatalf("expected calls=20 after record, got %d", s.Calls)
	}

	err := g.Admit(s)
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("call 21 should be denied, got %v", err)
	}
	if denied.Reason != "session call quota exhausted" {
		t.Fatalf("unexpected reason %q", denied.Reason)
	}
	if denied.RetryAfterSeconds != 0 {
		t.Fatalf("quota denial must not carry a retry time, got %d", denied.RetryAfterSeconds)
	}
}

func TestCooldownRetryAfter(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	g := New(20, 5*time.Second).WithClock(fixedClock(now))

	s := State{Calls: 3, LastCall: now.Add(-2 * time.Second)}
	err := g.Admit(s)
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("call inside cooldown should be denied, got %v", err)
	}
	if denied.Reason != "cooldown active" {
		t.Fatalf("unexpected reason %q", denied.Reason)
	}
	if denied.RetryAfterSeconds != 4 {
		t.Fatalf("elapsed 2s should yield retryAfter 4, got %d", denied.RetryAfterSeconds)
	}
}

func TestCooldownExpired(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	g := New(20, 5*time.Second).WithClock(fixedClock(now))

	s := State{Calls: 3, LastCall: now.Add(-5 * time.Second)}
	if err := g.Admit(s); err != nil {
		t.Fatalf("call after full cooldown should be admitted: %v", err)
	}
}

func TestDenialDoesNotMutateState(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	g := New(20, 5*time.Second).WithClock(fixedClock(now))

	s := State{Calls: 20, LastCall: now.Add(-time.Minute)}
	before := s
	_ = g.Admit(s)
	if s != before {
		t.Fatalf("Admit mutated governor state: %+v != %+v", s, before)
	}
}

func TestRecordSetsLastCall(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	g := New(20, 5*time.Second).WithClock(fixedClock(now))

	var s State
	g.Record(&s)
	if s.Calls != 1 {
		t.Fatalf("expected calls=1, got %d", s.Calls)
	}
	if !s.LastCall.Equal(now) {
		t.Fatalf("expected lastCall=%v, got %v", now, s.LastCall)
	}
}

func TestQuotaCheckedBeforeCooldown(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	g := New(20, 5*time.Second).WithClock(fixedClock(now))

	// Both rules violated: quota wins.
	s := State{Calls: 20, LastCall: now.Add(-time.Second)}
	var denied *DeniedError
	if !errors.As(g.Admit(s), &denied) {
		t.Fatalf("expected denial")
	}
	if denied.Reason != "session call quota exhausted" {
		t.Fatalf("quota rule must be evaluated first, got %q", denied.Reason)
	}
}
