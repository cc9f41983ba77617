// Package metadata resolves which window and application own each display.
package metadata

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/GriffinCanCode/framewatch/internal/frame"
	"github.com/GriffinCanCode/framewatch/internal/screen"
	"github.com/GriffinCanCode/framewatch/internal/trace"
)

const (
	// MinWindowAlpha is the visibility floor; windows below it are treated
	// as decorative overlays, not foreground content.
	MinWindowAlpha = 0.05
	// MinWindowDim filters out tiny utility windows (pixels).
	MinWindowDim = 80
	// DefaultCacheTTL bounds how often the OS window list is re-queried
	// during per-frame enrichment.
	DefaultCacheTTL = 250 * time.Millisecond
)

// Resolver snapshots the on-screen window list and assigns each display its
// topmost relevant window. Results are cached for a short TTL so per-frame
// enrichment does not hammer the OS.
type Resolver struct {
	displays screen.Displays
	windows  screen.Windows
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	cached  map[uint32]*frame.Metadata
	fetched time.Time
}

// NewResolver creates a resolver. ttl <= 0 selects DefaultCacheTTL.
func NewResolver(displays screen.Displays, windows screen.Windows, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Resolver{
		displays: displays,
		windows:  windows,
		ttl:      ttl,
		now:      time.Now,
	}
}

// TopWindowPerDisplay returns the topmost relevant window's metadata keyed by
// stable display id. IsFocused is always false here; focus is decided by the
// orchestrator.
func (r *Resolver) TopWindowPerDisplay(ctx context.Context) (map[uint32]*frame.Metadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && r.now().Sub(r.fetched) < r.ttl {
		return r.cached, nil
	}

	resolved, err := r.resolve(ctx)
	if err != nil {
		return nil, err
	}
	r.cached = resolved
	r.fetched = r.now()
	return resolved, nil
}

// Invalidate drops the cache so the next query re-enumerates.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
}

func (r *Resolver) resolve(ctx context.Context) (map[uint32]*frame.Metadata, error) {
	displays, err := r.displays.List(ctx)
	if err != nil {
		return nil, err
	}
	windows, err := r.windows.ListOnScreen(ctx)
	if err != nil {
		return nil, err
	}

	log := trace.Logger(ctx)
	result := make(map[uint32]*frame.Metadata, len(displays))

	// The window list is front-to-back, so the first window assigned to a
	// display is its topmost one.
	for _, w := range windows {
		if len(result) == len(displays) {
			break
		}
		if w.Alpha < MinWindowAlpha {
			continue
		}
		if w.Bounds.Dx() < MinWindowDim || w.Bounds.Dy() < MinWindowDim {
			continue
		}

		d, ok := bestOverlap(w.Bounds, displays)
		if !ok {
			continue
		}
		if _, taken := result[d.StableID]; taken {
			continue
		}

		meta := &frame.Metadata{
			WindowTitle: w.Title,
			DisplayID:   d.StableID,
		}
		if bundle, name, err := r.windows.OwnerInfo(ctx, w.OwnerPID); err != nil {
			log.Debug("window owner lookup failed", "pid", w.OwnerPID, "error", err)
		} else {
			meta.AppBundleID = bundle
			meta.AppName = name
		}
		result[d.StableID] = meta
	}
	return result, nil
}

// bestOverlap picks the display with the largest geometric overlap with the
// window; ties favor the first display considered.
func bestOverlap(w image.Rectangle, displays []frame.Display) (frame.Display, bool) {
	var best frame.Display
	bestArea := 0
	for _, d := range displays {
		i := w.Intersect(d.Bounds)
		area := i.Dx() * i.Dy()
		if area > bestArea {
			bestArea = area
			best = d
		}
	}
	return best, bestArea > 0
}
