package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/nfnt/resize"

	"github.com/GriffinCanCode/framewatch/internal/frame"
	"github.com/GriffinCanCode/framewatch/internal/screen"
	"github.com/GriffinCanCode/framewatch/internal/trace"
)

// Source is one polling capture unit bound to a single display. It owns a
// repeating timer and writes raw frames into the shared output channel; it
// never reads orchestrator state.
type Source struct {
	display  frame.Display
	capturer screen.Capturer
	out      chan<- *frame.Frame

	mu       sync.Mutex
	interval time.Duration
	maxDim   int
	active   bool
	stop     chan struct{}

	kick chan struct{}
	wg   sync.WaitGroup
}

// NewSource creates an idle source for one display.
func NewSource(d frame.Display, capturer screen.Capturer, out chan<- *frame.Frame) *Source {
	return &Source{
		display:  d,
		capturer: capturer,
		out:      out,
		kick:     make(chan struct{}, 1),
	}
}

// Display returns the display this source is bound to.
func (s *Source) Display() frame.Display {
	return s.display
}

// Start begins the repeating capture timer. No-op when already active.
func (s *Source) Start(ctx context.Context, interval time.Duration, maxDim int) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.interval = interval
	s.maxDim = maxDim
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx, stop)
}

// Stop cancels the timer and waits for the loop to exit. Idempotent.
func (s *Source) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stop)
	s.mu.Unlock()
	s.wg.Wait()
}

// CaptureNow performs one out-of-band capture and restarts the interval
// timer from zero so the next scheduled tick is not redundant. Pending kicks
// coalesce.
func (s *Source) CaptureNow() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// UpdateConfig changes interval and resolution cap; applied on the next tick.
func (s *Source) UpdateConfig(interval time.Duration, maxDim int) {
	s.mu.Lock()
	s.interval = interval
	s.maxDim = maxDim
	s.mu.Unlock()
}

func (s *Source) loop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	timer := time.NewTimer(s.currentInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-timer.C:
			s.captureOnce(ctx, stop)
		case <-s.kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			s.captureOnce(ctx, stop)
		}
		timer.Reset(s.currentInterval())
	}
}

func (s *Source) captureOnce(ctx context.Context, stop <-chan struct{}) {
	f, err := s.capturer.CaptureDisplay(ctx, s.display)
	if err != nil {
		// A failed tick is skipped, never fatal.
		trace.Logger(ctx).Warn("capture tick failed", "display", s.display.StableID, "error", err)
		return
	}
	if maxDim := s.currentMaxDim(); maxDim > 0 {
		f = capResolution(f, maxDim)
	}

	select {
	case s.out <- f:
	case <-ctx.Done():
	case <-stop:
	}
}

func (s *Source) currentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Source) currentMaxDim() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxDim
}

// capResolution downscales frames exceeding maxDim on either axis,
// preserving aspect ratio.
func capResolution(f *frame.Frame, maxDim int) *frame.Frame {
	if f.Width <= maxDim && f.Height <= maxDim {
		return f
	}
	scaled := resize.Thumbnail(uint(maxDim), uint(maxDim), f.Image(), resize.Bilinear)
	return frame.FromImage(scaled, f.DisplayID, f.Timestamp)
}
