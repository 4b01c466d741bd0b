package app

import "time"

// Timer is a single countdown anchored at the session start.
// Remaining time is always derived from the wall clock, never decremented.
type Timer struct {
	deadline time.Time
	fired    bool
	stopped  bool
}

func NewTimer(startedAt time.Time, budget time.Duration) *Timer {
	return &Timer{deadline: startedAt.Add(budget)}
}

// Deadline reports when the countdown reaches zero.
func (t *Timer) Deadline() time.Time {
	return t.deadline
}

// Remaining returns the time left at now, clamped at zero.
func (t *Timer) Remaining(now time.Time) time.Duration {
	if t.stopped {
		return 0
	}
	left := t.deadline.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Check reports true exactly once, on the first call at or after the deadline.
// A stopped timer never fires.
func (t *Timer) Check(now time.Time) bool {
	if t.fired || t.stopped {
		return false
	}
	if now.Before(t.deadline) {
		return false
	}
	t.fired = true
	t.stopped = true
	return true
}

// Stop halts the timer permanently.
func (t *Timer) Stop() {
	t.stopped = true
}

func (t *Timer) Stopped() bool {
	return t.stopped
}
