package ratelimit

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(limit int, window time.Duration) (*Limiter, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(limit, window)
	l.now = c.now
	return l, c
}

func TestAllowDrainsAndRefills(t *testing.T) {
	l, c := newTestLimiter(3, time.Minute)
	for i := range 3 {
		if !l.Allow("ada") {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	if l.Allow("ada") {
		t.Fatal("fourth request within the window allowed")
	}
	if !l.Allow("grace") {
		t.Error("keys are not independent")
	}

	c.t = c.t.Add(20 * time.Second)
	if !l.Allow("ada") {
		t.Error("token not refilled after a third of the window")
	}
	if l.Allow("ada") {
		t.Error("refilled more than one token")
	}
}

func TestRefillCapsAtLimit(t *testing.T) {
	l, c := newTestLimiter(2, time.Second)
	l.Allow("ada")
	c.t = c.t.Add(time.Hour)
	allowed := 0
	for range 5 {
		if l.Allow("ada") {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("allowed %d after long idle, want 2", allowed)
	}
}

func TestSweepAndReset(t *testing.T) {
	l, c := newTestLimiter(1, time.Second)
	l.Allow("ada")
	l.Allow("grace")
	l.Reset("grace")
	if l.Len() != 1 {
		t.Fatalf("Len after reset = %d", l.Len())
	}
	c.t = c.t.Add(3 * time.Second)
	l.sweep()
	if l.Len() != 0 {
		t.Errorf("idle bucket survived sweep")
	}
	if got := l.RetryAfter(); got != time.Second {
		t.Errorf("RetryAfter = %v", got)
	}
}
