package orchestrator

import (
	"time"

	"github.com/GriffinCanCode/framewatch/internal/syncx"
)

// Stats is a snapshot of the running capture counters. Reset on every start.
type Stats struct {
	FramesCaptured uint64
	FramesDeduped  uint64
	FramesExcluded uint64
	AvgFrameBytes  float64
	StartedAt      time.Time
	LastFrameAt    time.Time
}

// statsTracker guards the counters; readers may query from any goroutine
// while the run loop updates.
type statsTracker struct {
	g *syncx.RWGuard[Stats]
}

func newStatsTracker() *statsTracker {
	return &statsTracker{g: syncx.NewGuard(Stats{})}
}

func (t *statsTracker) reset() {
	t.g.Set(Stats{StartedAt: time.Now()})
}

func (t *statsTracker) frameSeen(byteSize int) {
	t.g.Write(func(s *Stats) {
		s.FramesCaptured++
		s.AvgFrameBytes += (float64(byteSize) - s.AvgFrameBytes) / float64(s.FramesCaptured)
	})
}

func (t *statsTracker) deduped() {
	t.g.Write(func(s *Stats) { s.FramesDeduped++ })
}

func (t *statsTracker) excluded() {
	t.g.Write(func(s *Stats) { s.FramesExcluded++ })
}

func (t *statsTracker) forwarded(ts time.Time) {
	t.g.Write(func(s *Stats) { s.LastFrameAt = ts })
}

func (t *statsTracker) snapshot() Stats {
	return t.g.Get()
}
