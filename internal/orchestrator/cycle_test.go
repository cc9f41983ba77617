package orchestrator

import (
	"testing"
	"time"
)

func TestCycleBatcherSharesTimestampWithinWindow(t *testing.T) {
	b := newCycleBatcher(350 * time.Millisecond)
	base := time.Now()

	ts1 := b.canonical(1, base)
	ts2 := b.canonical(2, base.Add(50*time.Millisecond))
	ts3 := b.canonical(3, base.Add(100*time.Millisecond))

	if !ts1.Equal(base) {
		t.Errorf("cycle anchor = %v, want first arrival", ts1)
	}
	if !ts2.Equal(ts1) || !ts3.Equal(ts1) {
		t.Error("frames within the window must share the canonical timestamp")
	}
}

func TestCycleBatcherWindowExceededStartsNewCycle(t *testing.T) {
	b := newCycleBatcher(350 * time.Millisecond)
	base := time.Now()

	ts1 := b.canonical(1, base)
	late := base.Add(400 * time.Millisecond)
	ts2 := b.canonical(2, late)

	if ts2.Equal(ts1) {
		t.Error("arrival beyond the window must open a new cycle")
	}
	if !ts2.Equal(late) {
		t.Errorf("new cycle anchor = %v, want its first arrival", ts2)
	}
}

func TestCycleBatcherRepeatDisplayStartsNewCycle(t *testing.T) {
	b := newCycleBatcher(350 * time.Millisecond)
	base := time.Now()

	ts1 := b.canonical(1, base)
	// Same display again, still inside the window: a display appears at most
	// once per cycle, so this must be the next cycle.
	repeat := base.Add(10 * time.Millisecond)
	ts2 := b.canonical(1, repeat)

	if ts2.Equal(ts1) {
		t.Error("repeated display id must close the open cycle")
	}
	if !ts2.Equal(repeat) {
		t.Errorf("new cycle anchor = %v, want the repeat arrival", ts2)
	}
}

func TestCycleBatcherDropDisplay(t *testing.T) {
	b := newCycleBatcher(350 * time.Millisecond)
	base := time.Now()

	ts1 := b.canonical(1, base)
	b.dropDisplay(1)

	// After hot-unplug the reused id must not spuriously close the cycle.
	ts2 := b.canonical(1, base.Add(10*time.Millisecond))
	if !ts2.Equal(ts1) {
		t.Error("dropped display id should rejoin the open cycle")
	}
}

func TestCycleBatcherSetWindow(t *testing.T) {
	b := newCycleBatcher(350 * time.Millisecond)
	base := time.Now()

	ts1 := b.canonical(1, base)
	b.setWindow(10 * time.Millisecond)

	ts2 := b.canonical(2, base.Add(50*time.Millisecond))
	if ts2.Equal(ts1) {
		t.Error("shrinking the window should apply to the open cycle")
	}
}
