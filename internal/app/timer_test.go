package app

import (
	"testing"
	"time"
)

func TestTimerFiresOnce(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	timer := NewTimer(start, 30*time.Minute)

	if got := timer.Remaining(start.Add(90 * time.Second)); got != 28*time.Minute+30*time.Second {
		t.Fatalf("unexpected remaining %v", got)
	}
	if timer.Check(start.Add(29 * time.Minute)) {
		t.Fatalf("timer fired early")
	}
	if !timer.Check(start.Add(31 * time.Minute)) {
		t.Fatalf("expected timer to fire after the deadline")
	}
	if timer.Check(start.Add(32 * time.Minute)) {
		t.Fatalf("timer fired twice")
	}
	if got := timer.Remaining(start.Add(40 * time.Minute)); got != 0 {
		t.Fatalf("expected remaining clamped at zero, got %v", got)
	}
}

func TestStoppedTimerNeverFires(t *testing.T) {
	start := time.Now()
	timer := NewTimer(start, time.Minute)
	timer.Stop()
	if timer.Check(start.Add(time.Hour)) {
		t.Fatalf("stopped timer fired")
	}
	if !timer.Stopped() || timer.Remaining(start) != 0 {
		t.Fatalf("expected stopped timer to report no time left")
	}
}

func TestMonitorCountsTransitions(t *testing.T) {
	m := NewMonitor(4)

	for i := 1; i < 4; i++ {
		out := m.AttentionLost()
		if !out.Counted || out.Count != i || out.Tripped {
			t.Fatalf("warning %d: unexpected outcome %+v", i, out)
		}
		if again := m.AttentionLost(); again.Counted || again.Count != i {
			t.Fatalf("repeated signal counted twice: %+v", again)
		}
		m.AttentionRegained()
	}

	out := m.AttentionLost()
	if !out.Tripped || out.Count != 4 {
		t.Fatalf("expected monitor to trip on the 4th warning, got %+v", out)
	}
	m.AttentionRegained()
	if fifth := m.AttentionLost(); fifth.Counted || m.Count() != 4 {
		t.Fatalf("expected events after tripping to be ignored, got %+v", fifth)
	}
}

func TestDetachedMonitorIgnoresEvents(t *testing.T) {
	m := NewMonitor(4)
	m.Detach()
	if out := m.AttentionLost(); out.Counted || m.Count() != 0 {
		t.Fatalf("detached monitor counted %+v", out)
	}
}
