package clock

import (
	"testing"
	"time"
)

func TestVirtualClockAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	vc := NewVirtualClock(start)

	if !vc.Now().Equal(start) {
		t.Fatalf("expected %v, got %v", start, vc.Now())
	}

	vc.Advance(90 * time.Second)
	want := start.Add(90 * time.Second)
	if !vc.Now().Equal(want) {
		t.Fatalf("expected %v, got %v", want, vc.Now())
	}

	vc.Set(start)
	if !vc.Now().Equal(start) {
		t.Fatalf("Set did not pin clock: got %v", vc.Now())
	}
}

func TestRealClockMonotonicallyAdvances(t *testing.T) {
	var rc RealClock
	first := rc.Now()
	time.Sleep(time.Millisecond)
	second := rc.Now()
	if !second.After(first) {
		t.Fatalf("expected second read to be after first: %v vs %v", second, first)
	}
}
