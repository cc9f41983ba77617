package orchestrator

import "time"

// captureCycle groups the frames of one round of near-simultaneous captures
// across displays. Every display appears at most once per cycle and all its
// frames share the canonical timestamp.
type captureCycle struct {
	timestamp time.Time // canonical, stamped on every frame of the cycle
	startedAt time.Time // arrival of the cycle's first frame
	seen      map[uint32]struct{}
}

// cycleBatcher maintains the open capture cycle. Only the orchestrator's run
// goroutine touches it.
type cycleBatcher struct {
	window  time.Duration
	current *captureCycle
}

func newCycleBatcher(window time.Duration) *cycleBatcher {
	return &cycleBatcher{window: window}
}

// canonical returns the timestamp the frame should carry. A repeated display
// id, or an arrival beyond the batching window, closes the open cycle and
// anchors a new one at this frame's arrival time.
func (b *cycleBatcher) canonical(displayID uint32, arrival time.Time) time.Time {
	c := b.current
	if c == nil || b.repeats(displayID) || arrival.Sub(c.startedAt) > b.window {
		c = &captureCycle{
			timestamp: arrival,
			startedAt: arrival,
			seen:      make(map[uint32]struct{}, 4),
		}
		b.current = c
	}
	c.seen[displayID] = struct{}{}
	return c.timestamp
}

func (b *cycleBatcher) repeats(displayID uint32) bool {
	_, ok := b.current.seen[displayID]
	return ok
}

// dropDisplay forgets a display from the open cycle after hot-unplug so its
// id does not spuriously close the cycle if reused.
func (b *cycleBatcher) dropDisplay(displayID uint32) {
	if b.current != nil {
		delete(b.current.seen, displayID)
	}
}

// setWindow applies a runtime configuration change.
func (b *cycleBatcher) setWindow(window time.Duration) {
	b.window = window
}
